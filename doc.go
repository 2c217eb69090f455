// Package objpool is a fixed-size object allocator for programs that create
// and discard many objects of the same size.
//
// Objects are carved out of chunks obtained directly from the operating
// system. Each chunk carries a small header, an occupancy bitmap and an array
// of equally sized slots, so allocation is a bitmap scan and release is a
// bit clear. Chunks that drain are handed back to the operating system, and
// requests a pool cannot serve go to a general-purpose fallback allocator.
//
// # Architecture
//
// The module is organized in layers:
//
// 1. Locking (pkg/locking): the synchronization strategy a pool is
// instantiated with. NoLock costs nothing; Mutex serializes every operation.
//
// 2. Memory sources (pkg/mmap): anonymous page mappings used as chunk memory.
//
// 3. Pools (pkg/pool): Layout computation, chunks, the chunk list with its
// escalation order, the fallback allocator and statistics. A pool is also an
// Apache Arrow memory.Allocator.
//
// 4. Typed access (pkg/allocatable): Allocatable[T] hands out *T values from a
// pool sized for T, and Registry lazily keeps one pool per type.
//
// 5. Tooling: configuration (pkg/config), logging (pkg/logger), Prometheus
// export (pkg/metrics), OpenTelemetry tracing and gauges (pkg/observability),
// a workload driver (internal/bench) and the objpool command (cmd/objpool).
//
// # Quick Start
//
//	import (
//	    "github.com/ajitpratap0/objpool/pkg/pool"
//	)
//
//	func main() {
//	    p, err := pool.NewLocked(64)
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer p.Close()
//
//	    buf := p.Allocate(64)
//	    // use buf
//	    if err := p.Release(buf); err != nil {
//	        panic(err)
//	    }
//	}
//
// Typed objects:
//
//	type point struct{ X, Y, Z float64 }
//
//	a, _ := allocatable.New[point](&locking.Mutex{})
//	pt := a.New()
//	pt.X = 1
//	a.Delete(pt)
//
// # Command Line
//
//	objpool layout --object-size 24 --chunk-size 4096
//	objpool bench --object-size 64 --objects 10000 --pattern random --metrics-addr :9090
//
// # Memory Safety
//
// Pool memory is invisible to the garbage collector. Objects must not hold
// Go pointers, and a slice or *T must not be used after it is released or
// after its pool is closed.
package objpool
