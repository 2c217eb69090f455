// Package locking provides the synchronization strategies used by object
// pools and a scoped guard that releases a strategy on every exit path.
//
// Two strategies are available:
//   - NoLock: empty Lock/Unlock, for pools owned by a single goroutine
//   - Mutex: sync.Mutex backed, for pools shared between goroutines
//
// Strategies are selected when a pool is constructed and are passed as a
// type parameter, so the single-goroutine case pays nothing for locking.
//
// Example:
//
//	var mu locking.Mutex
//	g := locking.Acquire(&mu)
//	defer g.Release()
//
// Guards are not reentrant: acquiring the same Mutex twice from one
// goroutine deadlocks.
package locking
