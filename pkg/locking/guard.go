package locking

// Guard holds a Strategy from Acquire until Release.
type Guard[S Strategy] struct {
	access S
	held   bool
}

// Acquire locks s and returns a guard for it. The guard must be released
// exactly once, normally with defer:
//
//	g := locking.Acquire(s)
//	defer g.Release()
func Acquire[S Strategy](s S) *Guard[S] {
	s.Lock()
	return &Guard[S]{access: s, held: true}
}

// Release unlocks the guarded strategy. Calling it again is a no-op.
func (g *Guard[S]) Release() {
	if !g.held {
		return
	}
	g.held = false
	g.access.Unlock()
}

// Held reports whether the guard still holds its strategy.
func (g *Guard[S]) Held() bool {
	return g.held
}

// Scoped runs fn while holding s. The strategy is released when fn returns
// or panics.
func Scoped[S Strategy, R any](s S, fn func() R) R {
	g := Acquire(s)
	defer g.Release()
	return fn()
}
