package pool

import (
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// fallback forwards requests to a general-purpose allocator and remembers
// what it handed out, so releases can be routed back with the original
// slice.
type fallback struct {
	alloc memory.Allocator
	live  map[uintptr][]byte
	bytes int64
}

func newFallback(a memory.Allocator) *fallback {
	if a == nil {
		a = memory.DefaultAllocator
	}
	return &fallback{alloc: a, live: make(map[uintptr][]byte)}
}

func (f *fallback) allocate(size int) []byte {
	b := f.alloc.Allocate(size)
	if cap(b) == 0 {
		return b
	}
	f.live[addressOf(b)] = b
	f.bytes += int64(len(b))
	return b
}

// release frees b if it came from allocate and reports whether it did.
func (f *fallback) release(addr uintptr) bool {
	b, ok := f.live[addr]
	if !ok {
		return false
	}
	delete(f.live, addr)
	f.bytes -= int64(len(b))
	f.alloc.Free(b)
	return true
}

func (f *fallback) owns(addr uintptr) bool {
	_, ok := f.live[addr]
	return ok
}

// releaseAll frees every outstanding allocation and returns how many there
// were.
func (f *fallback) releaseAll() int {
	n := len(f.live)
	for addr, b := range f.live {
		f.alloc.Free(b)
		delete(f.live, addr)
	}
	f.bytes = 0
	return n
}

func addressOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}
