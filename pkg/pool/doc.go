// Package pool implements a fixed-size object-pool allocator. A Pool serves
// many equally sized objects out of larger memory regions ("chunks")
// obtained from the operating system, which keeps the common
// allocate/release path short and returns memory to the system as soon as a
// chunk drains.
//
// Architecture
//
// Every chunk is one contiguous region:
//
//	+--------+----------------------+--------------------------------+
//	| header | bitmap (uint64 words)| slots (ObjectCounter x size)   |
//	+--------+----------------------+--------------------------------+
//	0        BitmapOffset           MemoryOffset                ChunkSize
//
// The Layout describing these offsets is computed once per pool by Setup and
// shared by all of its chunks. A set bitmap bit marks an occupied slot.
//
// Allocation scans the chunk list from the head and takes the lowest free
// slot of the first chunk with room. That chunk is then moved one position
// toward the head ("escalation"), as is a chunk that just gained a free slot
// through a release, so chunks with free capacity gather at the front and
// scans stay short. When no chunk has room a new one is pushed to the head.
// A chunk whose last object is released is returned to its source at once.
//
// Fallback
//
// Requests larger than the slot size, and requests that arrive when no new
// chunk can be created, are served by a general-purpose allocator (an Apache
// Arrow memory.Allocator, memory.DefaultAllocator unless configured). The
// pool remembers these allocations, so Release can route them back and can
// reject slices it never handed out.
//
// Synchronization
//
// Pools are parameterized by a locking.Strategy chosen at construction:
//
//	p, _ := pool.NewLocked(48)    // *locking.Mutex, safe for concurrent use
//	q, _ := pool.NewUnlocked(48)  // locking.NoLock, single goroutine only
//
// Each operation runs in exactly one critical section. Operations are not
// reentrant.
//
// Usage
//
//	p, err := pool.NewLocked(24, pool.WithChunkSize(pool.MinChunkSize))
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//
//	b := p.Allocate(24)
//	// use b...
//	if err := p.Release(b); err != nil {
//		return err
//	}
//
// Memory Safety
//
// Chunk memory is not scanned by the garbage collector. Slots may hold only
// pointer-free data, and a slice must not be used after it was released:
// with the OS source the pages of a drained chunk are unmapped.
package pool
