package pool

import (
	"fmt"
	"sync"

	"github.com/ajitpratap0/objpool/pkg/mmap"
)

// Source supplies the memory regions chunks are carved from. Regions must
// be zero-filled and aligned to at least 8 bytes.
type Source interface {
	Acquire(size int) ([]byte, error)
	Relinquish(b []byte) error
	Name() string
}

// DefaultSource returns a Source backed by anonymous OS mappings.
func DefaultSource() Source {
	return mmap.NewSource()
}

// HeapSource serves chunk regions from the Go heap. Regions are released
// to the garbage collector instead of the operating system.
// A HeapSource is safe for concurrent use.
type HeapSource struct {
	// Limit caps the number of bytes outstanding at once. Zero means no limit.
	Limit int

	mu          sync.Mutex
	outstanding int
}

// Acquire implements Source.
func (h *HeapSource) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("heap source: invalid region size %d", size)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.Limit > 0 && h.outstanding+size > h.Limit {
		return nil, fmt.Errorf("heap source: limit of %d bytes reached", h.Limit)
	}
	h.outstanding += size
	return make([]byte, size), nil
}

// Relinquish implements Source.
func (h *HeapSource) Relinquish(b []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outstanding -= len(b)
	return nil
}

// Name implements Source.
func (h *HeapSource) Name() string { return "heap" }

// Outstanding returns the number of bytes currently handed out.
func (h *HeapSource) Outstanding() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outstanding
}
