// Package mmap obtains chunk memory directly from the operating system
// through anonymous private mappings.
//
// Regions are page backed and live outside the Go heap: the garbage
// collector neither scans nor frees them, so they may only hold
// pointer-free data and must be returned with Relinquish. On platforms
// without mmap support the Source falls back to heap allocations.
package mmap

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Source hands out memory regions for pool chunks.
// A Source is safe for concurrent use.
type Source struct {
	mapped  atomic.Int64 // bytes currently mapped
	regions atomic.Int64 // regions currently mapped
}

// NewSource creates a Source backed by anonymous mappings where the
// platform supports them.
func NewSource() *Source {
	return &Source{}
}

// Acquire returns a zero-filled region of exactly size bytes.
func (s *Source) Acquire(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid region size %d", size)
	}
	b, err := mapAnon(size)
	if err != nil {
		return nil, fmt.Errorf("mmap: failed to map %d bytes: %w", size, err)
	}
	s.mapped.Add(int64(len(b)))
	s.regions.Add(1)
	return b, nil
}

// Relinquish returns a region obtained from Acquire to the operating
// system. The region must not be used afterwards.
func (s *Source) Relinquish(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n := len(b)
	if err := unmap(b); err != nil {
		return fmt.Errorf("mmap: failed to unmap %d bytes: %w", n, err)
	}
	s.mapped.Add(-int64(n))
	s.regions.Add(-1)
	return nil
}

// Name identifies the source in logs and diagnostics.
func (s *Source) Name() string {
	if Supported {
		return "os"
	}
	return "heap"
}

// MappedBytes returns the number of bytes currently held by the source.
func (s *Source) MappedBytes() int64 {
	return s.mapped.Load()
}

// Regions returns the number of regions currently held by the source.
func (s *Source) Regions() int64 {
	return s.regions.Load()
}

// PageSize returns the operating system page size.
func PageSize() int {
	return os.Getpagesize()
}
