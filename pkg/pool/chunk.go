package pool

import (
	"unsafe"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

// chunkHeader sits at offset 0 of every chunk.
type chunkHeader struct {
	used uint32
	free uint32
	seq  uint64
}

// chunk is one region from a Source, split into header, bitmap and slots
// according to the pool's Layout.
type chunk struct {
	layout *Layout
	mem    []byte
	hdr    *chunkHeader
	bitmap []uint64
	slots  []byte
	base   uintptr
}

func newChunk(layout *Layout, source Source, seq uint64) (*chunk, error) {
	mem, err := source.Acquire(layout.ChunkSize)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeOutOfMemory, "chunk source failed").
			WithDetail("chunk_size", layout.ChunkSize).
			WithDetail("source", source.Name())
	}
	if len(mem) < layout.ChunkSize {
		_ = source.Relinquish(mem)
		return nil, poolerrors.New(poolerrors.ErrorTypeOutOfMemory, "chunk source returned a short region").
			WithDetail("want", layout.ChunkSize).
			WithDetail("got", len(mem))
	}
	start := unsafe.Pointer(unsafe.SliceData(mem))
	if uintptr(start)%uintptr(max(layout.Alignment, wordBytes)) != 0 {
		_ = source.Relinquish(mem)
		return nil, poolerrors.New(poolerrors.ErrorTypeOutOfMemory, "chunk source returned a misaligned region").
			WithDetail("alignment", layout.Alignment)
	}

	c := &chunk{
		layout: layout,
		mem:    mem[:layout.ChunkSize:layout.ChunkSize],
		hdr:    (*chunkHeader)(start),
		bitmap: unsafe.Slice((*uint64)(unsafe.Add(start, layout.BitmapOffset)), layout.BitmapCounter),
		slots:  mem[layout.MemoryOffset:layout.ChunkSize:layout.ChunkSize],
	}
	c.base = uintptr(unsafe.Pointer(unsafe.SliceData(c.slots)))
	clear(c.bitmap)
	c.hdr.used = 0
	c.hdr.free = uint32(layout.ObjectCounter)
	c.hdr.seq = seq
	return c, nil
}

// occupyFreeSlot marks the lowest free slot occupied and returns its index.
func (c *chunk) occupyFreeSlot() (int, bool) {
	return occupyFirst(c.bitmap)
}

// allocate takes a free slot and returns its index.
func (c *chunk) allocate() (int, bool) {
	if c.hdr.free == 0 {
		return 0, false
	}
	index, ok := c.occupyFreeSlot()
	if !ok {
		return 0, false
	}
	c.hdr.free--
	c.hdr.used++
	return index, true
}

// release frees the slot holding addr. owned is false when addr lies outside
// the slot area; wasSet is false when the slot was already free.
func (c *chunk) release(addr uintptr) (owned, wasSet bool) {
	if !c.contains(addr) {
		return false, false
	}
	index := int((addr - c.base) / uintptr(c.layout.ObjectSizeOf))
	if !clearBit(c.bitmap, index) {
		return true, false
	}
	c.hdr.free++
	c.hdr.used--
	return true, true
}

func (c *chunk) contains(addr uintptr) bool {
	return addr >= c.base && addr < c.base+uintptr(c.layout.MemoryCounter)
}

// occupied reports whether slot index is handed out.
func (c *chunk) occupied(index int) bool {
	return testBit(c.bitmap, index)
}

// slot returns the full slot at index.
func (c *chunk) slot(index int) []byte {
	off := index * c.layout.ObjectSizeOf
	return c.slots[off : off+c.layout.ObjectSizeOf : off+c.layout.ObjectSizeOf]
}

func (c *chunk) avail() bool { return c.hdr.free > 0 }
func (c *chunk) empty() bool { return c.hdr.used == 0 }
func (c *chunk) used() int   { return int(c.hdr.used) }
func (c *chunk) free() int   { return int(c.hdr.free) }
func (c *chunk) seq() uint64 { return c.hdr.seq }
