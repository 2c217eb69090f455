package pool

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/objpool/pkg/locking"
)

// ChunkInfo describes one live chunk.
type ChunkInfo struct {
	Sequence uint64 `json:"sequence"`
	Used     int    `json:"used"`
	Free     int    `json:"free"`
}

// Info is a diagnostic snapshot of a pool. Chunks are listed in list order,
// head first.
type Info struct {
	Name         string      `json:"name"`
	Source       string      `json:"source"`
	Locking      string      `json:"locking"`
	Layout       Layout      `json:"layout"`
	Chunks       []ChunkInfo `json:"chunks"`
	FallbackLive int         `json:"fallback_live"`
	Closed       bool        `json:"closed"`
}

// Info returns a snapshot of the layout and per-chunk occupancy.
func (p *Pool[S]) Info() Info {
	g := locking.Acquire(p.access)
	defer g.Release()

	info := Info{
		Name:         p.name,
		Source:       p.source.Name(),
		Locking:      locking.Name(p.access),
		Layout:       p.layout,
		Chunks:       make([]ChunkInfo, 0, len(p.chunks)),
		FallbackLive: len(p.fallback.live),
		Closed:       p.closed,
	}
	for _, c := range p.chunks {
		info.Chunks = append(info.Chunks, ChunkInfo{Sequence: c.seq(), Used: c.used(), Free: c.free()})
	}
	return info
}

// WriteInfo writes a human-readable dump of Info to w.
func (p *Pool[S]) WriteInfo(w io.Writer) error {
	return p.Info().Write(w)
}

// Write writes i in text form to w.
func (i Info) Write(w io.Writer) error {
	l := i.Layout
	if _, err := fmt.Fprintf(w, "pool %s (%s source, %s locking)\n", i.Name, i.Source, i.Locking); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "  slot %d bytes, %d slots per chunk, chunk %d bytes (bitmap @%d x%d, memory @%d)\n",
		l.ObjectSizeOf, l.ObjectCounter, l.ChunkSize, l.BitmapOffset, l.BitmapCounter, l.MemoryOffset); err != nil {
		return err
	}
	var totals Stats
	for _, c := range i.Chunks {
		totals.UsedSlots += c.Used
		totals.FreeSlots += c.Free
	}
	if _, err := fmt.Fprintf(w, "  chunks %d, used %d, free %d, utilization %.1f%%\n",
		len(i.Chunks), totals.UsedSlots, totals.FreeSlots, 100*totals.Utilization()); err != nil {
		return err
	}
	for _, c := range i.Chunks {
		if _, err := fmt.Fprintf(w, "  chunk #%d: used %d, free %d\n", c.Sequence, c.Used, c.Free); err != nil {
			return err
		}
	}
	if i.FallbackLive > 0 {
		if _, err := fmt.Fprintf(w, "  fallback: %d live\n", i.FallbackLive); err != nil {
			return err
		}
	}
	return nil
}
