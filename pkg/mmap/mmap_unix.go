//go:build unix

package mmap

import (
	"golang.org/x/sys/unix"
)

// Supported reports whether regions come from real OS mappings.
const Supported = true

// mapAnon creates a private anonymous read/write mapping.
func mapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// unmap releases a mapping created by mapAnon.
func unmap(b []byte) error {
	return unix.Munmap(b)
}
