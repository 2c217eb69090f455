package pool

import (
	"math/bits"
	"unsafe"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

const (
	// MinChunkSize is the smallest chunk a pool requests (4 KiB).
	MinChunkSize = 4 * 1024

	// DefaultChunkSize is the chunk size used unless configured (32 KiB).
	DefaultChunkSize = 32 * 1024

	// Alignment is the default slot alignment in bytes.
	Alignment = 8

	// BitsPerWord is the number of slots tracked by one bitmap word.
	BitsPerWord = 64

	// MaxObjectSize bounds the slot size of a pool (16 MiB).
	MaxObjectSize = 16 << 20

	// MaxChunkSize bounds the chunk size of a pool (1 GiB).
	MaxChunkSize = 1 << 30

	// maxAlignment bounds the configurable slot alignment.
	maxAlignment = 4096

	wordBytes  = int(unsafe.Sizeof(uint64(0)))
	headerSize = int(unsafe.Sizeof(chunkHeader{}))
)

// Layout describes how a chunk is carved up. It is computed once per pool
// and shared, read-only, by all of its chunks.
//
// Invariants:
//   - MemoryOffset + MemoryCounter == ChunkSize
//   - ObjectCounter == BitmapCounter * BitsPerWord
//   - ObjectCounter * ObjectSizeOf == MemoryCounter
type Layout struct {
	// ObjectSizeOf is the slot size: the object size aligned up
	ObjectSizeOf int `json:"object_size_of" yaml:"object_size_of"`
	// ObjectCounter is the number of slots per chunk
	ObjectCounter int `json:"object_counter" yaml:"object_counter"`
	// BitmapOffset is the byte offset of the free-list bitmap
	BitmapOffset int `json:"bitmap_offset" yaml:"bitmap_offset"`
	// BitmapCounter is the number of bitmap words
	BitmapCounter int `json:"bitmap_counter" yaml:"bitmap_counter"`
	// MemoryOffset is the byte offset of the slot area
	MemoryOffset int `json:"memory_offset" yaml:"memory_offset"`
	// MemoryCounter is the size of the slot area in bytes
	MemoryCounter int `json:"memory_counter" yaml:"memory_counter"`
	// ChunkSize is the number of bytes requested per chunk
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	// TargetSize is the requested chunk size after clamping to MinChunkSize
	TargetSize int `json:"target_size" yaml:"target_size"`
	// Alignment is the slot alignment the layout was computed with
	Alignment int `json:"alignment" yaml:"alignment"`
	// MinChunkSize is the lower bound the request was clamped to
	MinChunkSize int `json:"min_chunk_size" yaml:"min_chunk_size"`
}

// Setup computes the layout for objects of objectSize bytes in chunks of at
// least chunkSize bytes, using MinChunkSize and Alignment.
func Setup(objectSize, chunkSize int) (Layout, error) {
	return SetupGeometry(objectSize, chunkSize, MinChunkSize, Alignment)
}

// SetupGeometry computes a layout with an explicit minimum chunk size and
// alignment.
//
// The bitmap starts from an estimate of half the chunk filled with slots and
// grows one word at a time until header, bitmap and slots reach the target
// size. The result always holds a whole number of bitmap words and is at
// least as large as requested.
func SetupGeometry(objectSize, chunkSize, minChunkSize, alignment int) (Layout, error) {
	switch {
	case objectSize <= 0:
		return Layout{}, poolerrors.New(poolerrors.ErrorTypeValidation, "object size must be positive").
			WithDetail("object_size", objectSize)
	case objectSize > MaxObjectSize:
		return Layout{}, poolerrors.New(poolerrors.ErrorTypeValidation, "object size exceeds limit").
			WithDetail("object_size", objectSize).
			WithDetail("limit", MaxObjectSize)
	case minChunkSize <= 0 || minChunkSize > MaxChunkSize:
		return Layout{}, poolerrors.New(poolerrors.ErrorTypeValidation, "minimum chunk size out of range").
			WithDetail("min_chunk_size", minChunkSize)
	case chunkSize > MaxChunkSize:
		return Layout{}, poolerrors.New(poolerrors.ErrorTypeValidation, "chunk size exceeds limit").
			WithDetail("chunk_size", chunkSize).
			WithDetail("limit", MaxChunkSize)
	case alignment <= 0 || alignment > maxAlignment || bits.OnesCount(uint(alignment)) != 1:
		return Layout{}, poolerrors.New(poolerrors.ErrorTypeValidation, "alignment must be a power of two").
			WithDetail("alignment", alignment)
	}

	target := chunkSize
	if target < minChunkSize {
		target = minChunkSize
	}

	l := Layout{
		ObjectSizeOf: alignUp(objectSize, alignment),
		BitmapOffset: alignUp(headerSize, max(alignment, wordBytes)),
		TargetSize:   target,
		Alignment:    alignment,
		MinChunkSize: minChunkSize,
	}

	l.BitmapCounter = (target / (l.ObjectSizeOf << 1)) / BitsPerWord
	for {
		l.BitmapCounter++
		l.ObjectCounter = l.BitmapCounter * BitsPerWord
		l.MemoryOffset = l.BitmapOffset + alignUp(l.BitmapCounter*wordBytes, alignment)
		l.MemoryCounter = l.ObjectCounter * l.ObjectSizeOf
		l.ChunkSize = l.MemoryOffset + l.MemoryCounter
		if l.ChunkSize >= target {
			break
		}
	}

	return l, nil
}

// Validate checks the layout invariants.
func (l Layout) Validate() error {
	switch {
	case l.ObjectSizeOf <= 0 || l.BitmapCounter <= 0:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "layout is empty")
	case l.MemoryOffset+l.MemoryCounter != l.ChunkSize:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "slot area does not end the chunk").
			WithDetail("memory_offset", l.MemoryOffset).
			WithDetail("memory_counter", l.MemoryCounter).
			WithDetail("chunk_size", l.ChunkSize)
	case l.ObjectCounter != l.BitmapCounter*BitsPerWord:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "slot count is not a whole number of bitmap words").
			WithDetail("object_counter", l.ObjectCounter)
	case l.ObjectCounter*l.ObjectSizeOf != l.MemoryCounter:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "slot area size mismatch").
			WithDetail("memory_counter", l.MemoryCounter)
	case l.MemoryOffset < l.BitmapOffset+l.BitmapCounter*wordBytes:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "bitmap overlaps slot area")
	case l.ChunkSize < l.TargetSize:
		return poolerrors.New(poolerrors.ErrorTypeInternal, "chunk smaller than requested").
			WithDetail("chunk_size", l.ChunkSize).
			WithDetail("target_size", l.TargetSize)
	}
	return nil
}

// alignUp rounds v up to a multiple of a, which must be a power of two.
func alignUp(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}
