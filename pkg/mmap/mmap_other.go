//go:build !unix

package mmap

// Supported reports whether regions come from real OS mappings.
const Supported = false

// mapAnon falls back to a heap allocation.
func mapAnon(size int) ([]byte, error) {
	return make([]byte, size), nil
}

// unmap leaves heap regions to the garbage collector.
func unmap(b []byte) error {
	return nil
}
