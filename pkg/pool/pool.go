package pool

import (
	"errors"
	"slices"

	"github.com/ajitpratap0/objpool/pkg/locking"
	"github.com/ajitpratap0/objpool/pkg/logger"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"go.uber.org/zap"
)

const useAfterClose = "objpool: use after Close"

// Pool serves fixed-size slots out of chunks. S decides how operations are
// synchronized; see locking.Strategy.
type Pool[S locking.Strategy] struct {
	access   S
	layout   Layout
	chunks   []*chunk // index 0 is the head
	source   Source
	fallback *fallback
	stats    *counters
	logger   *zap.Logger

	name      string
	maxChunks int
	zeroing   bool
	seq       uint64
	closed    bool
}

// New creates a pool for objects of objectSize bytes synchronized by
// strategy.
func New[S locking.Strategy](strategy S, objectSize int, opts ...Option) (*Pool[S], error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxChunks < 0 {
		return nil, poolerrors.New(poolerrors.ErrorTypeValidation, "max chunks must not be negative").
			WithDetail("max_chunks", o.maxChunks)
	}

	layout, err := SetupGeometry(objectSize, o.chunkSize, o.minChunkSize, o.alignment)
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	if o.source == nil {
		o.source = DefaultSource()
	}
	log := logger.ForPool(o.name)
	if o.logger != nil {
		log = o.logger.With(zap.String("pool", o.name))
	}

	p := &Pool[S]{
		access:    strategy,
		layout:    layout,
		source:    o.source,
		fallback:  newFallback(o.fallback),
		logger:    log,
		name:      o.name,
		maxChunks: o.maxChunks,
		zeroing:   o.zeroing,
	}
	if o.statistics {
		p.stats = &counters{}
	}

	p.logger.Debug("pool created",
		zap.Int("object_size", objectSize),
		zap.Int("slot_size", layout.ObjectSizeOf),
		zap.Int("slots_per_chunk", layout.ObjectCounter),
		zap.Int("chunk_size", layout.ChunkSize),
		zap.String("source", p.source.Name()),
		zap.String("locking", locking.Name(strategy)))
	return p, nil
}

// NewLocked creates a pool that is safe for concurrent use.
func NewLocked(objectSize int, opts ...Option) (*Pool[*locking.Mutex], error) {
	return New(&locking.Mutex{}, objectSize, opts...)
}

// NewUnlocked creates a pool without synchronization. It must only be used
// from one goroutine at a time.
func NewUnlocked(objectSize int, opts ...Option) (*Pool[locking.NoLock], error) {
	return New(locking.NoLock{}, objectSize, opts...)
}

// Allocate returns a slice of length size. Requests up to the slot size are
// served from a chunk and have capacity Layout().ObjectSizeOf; larger ones,
// and any request made while no chunk can be created, come from the
// fallback allocator. A negative size yields nil.
func (p *Pool[S]) Allocate(size int) []byte {
	g := locking.Acquire(p.access)
	defer g.Release()
	p.checkOpen()

	if size < 0 {
		return nil
	}
	if size > p.layout.ObjectSizeOf {
		return p.allocateFallback(size)
	}

	for i, c := range p.chunks {
		if index, ok := c.allocate(); ok {
			p.escalate(i)
			return p.handOut(c, index, size)
		}
	}

	c, err := p.grow()
	if err != nil {
		if p.stats != nil {
			p.stats.chunkFailures++
		}
		p.logger.Warn("chunk creation failed, using fallback allocator",
			zap.Int("size", size),
			zap.Int("chunks", len(p.chunks)),
			zap.Error(err))
		return p.allocateFallback(size)
	}
	index, _ := c.allocate()
	return p.handOut(c, index, size)
}

func (p *Pool[S]) handOut(c *chunk, index, size int) []byte {
	if p.stats != nil {
		p.stats.allocations++
	}
	b := c.slot(index)
	if p.zeroing {
		clear(b)
	}
	return b[:size]
}

func (p *Pool[S]) allocateFallback(size int) []byte {
	if p.stats != nil {
		p.stats.fallbackAllocations++
	}
	return p.fallback.allocate(size)
}

// grow creates a chunk and pushes it to the head of the list.
func (p *Pool[S]) grow() (*chunk, error) {
	if p.maxChunks > 0 && len(p.chunks) >= p.maxChunks {
		return nil, poolerrors.New(poolerrors.ErrorTypeOutOfMemory, "chunk limit reached").
			WithDetail("max_chunks", p.maxChunks)
	}
	p.seq++
	c, err := newChunk(&p.layout, p.source, p.seq)
	if err != nil {
		return nil, err
	}
	p.chunks = slices.Insert(p.chunks, 0, c)
	if p.stats != nil {
		p.stats.chunksCreated++
	}
	p.logger.Debug("chunk created",
		zap.Uint64("sequence", c.seq()),
		zap.Int("chunks", len(p.chunks)))
	return c, nil
}

// Release returns b to the pool. b must start inside a slot handed out by
// Allocate, or be exactly a slice served by the fallback allocator.
// Releasing nil or a zero-capacity slice is a no-op.
func (p *Pool[S]) Release(b []byte) error {
	if cap(b) == 0 {
		return nil
	}
	g := locking.Acquire(p.access)
	defer g.Release()
	if p.closed {
		return poolerrors.New(poolerrors.ErrorTypeClosed, "pool is closed").
			WithDetail("pool", p.name)
	}

	addr := addressOf(b)
	for i, c := range p.chunks {
		owned, wasSet := c.release(addr)
		if !owned {
			continue
		}
		if !wasSet {
			if p.stats != nil {
				p.stats.rejectedReleases++
			}
			return poolerrors.New(poolerrors.ErrorTypeDoubleRelease, "slot is already free").
				WithDetail("pool", p.name).
				WithDetail("chunk", c.seq())
		}
		if p.stats != nil {
			p.stats.releases++
		}
		if c.empty() {
			return p.evict(i)
		}
		p.escalate(i)
		return nil
	}

	if p.fallback.release(addr) {
		if p.stats != nil {
			p.stats.fallbackReleases++
		}
		return nil
	}

	if p.stats != nil {
		p.stats.rejectedReleases++
	}
	return poolerrors.New(poolerrors.ErrorTypeOwnership, "slice not owned by pool").
		WithDetail("pool", p.name).
		WithDetail("len", len(b)).
		WithDetail("cap", cap(b))
}

// evict unlinks chunk i and returns its memory to the source.
func (p *Pool[S]) evict(i int) error {
	c := p.chunks[i]
	p.chunks = slices.Delete(p.chunks, i, i+1)
	if p.stats != nil {
		p.stats.chunksEvicted++
	}
	p.logger.Debug("chunk evicted",
		zap.Uint64("sequence", c.seq()),
		zap.Int("chunks", len(p.chunks)))
	if err := p.source.Relinquish(c.mem); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to return chunk memory").
			WithDetail("pool", p.name)
	}
	return nil
}

// escalate moves chunk i one position toward the head.
func (p *Pool[S]) escalate(i int) {
	if i == 0 {
		return
	}
	p.chunks[i-1], p.chunks[i] = p.chunks[i], p.chunks[i-1]
	if p.stats != nil {
		p.stats.escalations++
	}
}

// Free releases b and logs any error. It makes Pool usable as an Arrow
// memory.Allocator.
func (p *Pool[S]) Free(b []byte) {
	if err := p.Release(b); err != nil {
		p.logger.Warn("release rejected", zap.Error(err))
	}
}

// Reallocate returns a slice of length size holding the contents of b.
// A slot is resized in place while size fits it.
func (p *Pool[S]) Reallocate(size int, b []byte) []byte {
	if cap(b) == 0 {
		return p.Allocate(size)
	}
	if size >= 0 && (size <= len(b) || (size <= cap(b) && p.isSlot(b))) {
		return b[:size]
	}
	nb := p.Allocate(size)
	copy(nb, b)
	p.Free(b)
	return nb
}

// Owns reports whether b was handed out by this pool and is still
// outstanding.
func (p *Pool[S]) Owns(b []byte) bool {
	if cap(b) == 0 {
		return false
	}
	g := locking.Acquire(p.access)
	defer g.Release()
	if p.closed {
		return false
	}
	addr := addressOf(b)
	for _, c := range p.chunks {
		if c.contains(addr) {
			return c.occupied(int((addr - c.base) / uintptr(p.layout.ObjectSizeOf)))
		}
	}
	return p.fallback.owns(addr)
}

// isSlot reports whether b starts at a slot boundary of a live chunk.
func (p *Pool[S]) isSlot(b []byte) bool {
	g := locking.Acquire(p.access)
	defer g.Release()
	addr := addressOf(b)
	for _, c := range p.chunks {
		if c.contains(addr) {
			return (addr-c.base)%uintptr(p.layout.ObjectSizeOf) == 0
		}
	}
	return false
}

// Layout returns the chunk layout of the pool.
func (p *Pool[S]) Layout() Layout {
	return p.layout
}

// Name returns the pool name.
func (p *Pool[S]) Name() string {
	return p.name
}

// Stats returns a snapshot of the pool counters and gauges.
func (p *Pool[S]) Stats() Stats {
	g := locking.Acquire(p.access)
	defer g.Release()

	var s Stats
	p.stats.snapshot(&s)
	s.Chunks = len(p.chunks)
	for _, c := range p.chunks {
		s.UsedSlots += c.used()
		s.FreeSlots += c.free()
	}
	s.ChunkBytes = int64(len(p.chunks)) * int64(p.layout.ChunkSize)
	s.FallbackLive = len(p.fallback.live)
	s.FallbackBytes = p.fallback.bytes
	return s
}

// Close returns every chunk to its source and frees outstanding fallback
// allocations. Slices handed out by the pool must not be used afterwards.
// Calling Close more than once is a no-op.
func (p *Pool[S]) Close() error {
	g := locking.Acquire(p.access)
	defer g.Release()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	used := 0
	for _, c := range p.chunks {
		used += c.used()
		if err := p.source.Relinquish(c.mem); err != nil {
			errs = append(errs, err)
		}
	}
	chunks := len(p.chunks)
	p.chunks = nil
	fallbacks := p.fallback.releaseAll()

	if used > 0 || fallbacks > 0 {
		p.logger.Warn("pool closed with outstanding allocations",
			zap.Int("slots", used),
			zap.Int("fallback", fallbacks))
	}
	p.logger.Debug("pool closed", zap.Int("chunks", chunks))

	if err := errors.Join(errs...); err != nil {
		return poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to return chunk memory").
			WithDetail("pool", p.name)
	}
	return nil
}

func (p *Pool[S]) checkOpen() {
	if p.closed {
		panic(useAfterClose)
	}
}
