package locking

import "sync"

// Strategy is the synchronization contract a pool runs its critical
// sections under.
type Strategy interface {
	Lock()
	Unlock()
}

// NoLock is a Strategy that does nothing. The caller guarantees
// single-goroutine access.
type NoLock struct{}

// Lock is a no-op.
func (NoLock) Lock() {}

// Unlock is a no-op.
func (NoLock) Unlock() {}

// Mutex is a Strategy backed by sync.Mutex. Use it by pointer.
type Mutex struct {
	_  noCopy
	mu sync.Mutex
}

// Lock blocks until the mutex is held.
func (m *Mutex) Lock() { m.mu.Lock() }

// Unlock releases the mutex.
func (m *Mutex) Unlock() { m.mu.Unlock() }

// Name returns a short identifier for the strategy, used in logs and
// configuration.
func Name(s Strategy) string {
	switch s.(type) {
	case NoLock, *NoLock:
		return "none"
	case *Mutex:
		return "mutex"
	default:
		return "custom"
	}
}

var (
	_ Strategy = NoLock{}
	_ Strategy = (*Mutex)(nil)
)

// noCopy may be embedded into structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
