package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/locking"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"github.com/ajitpratap0/objpool/pkg/testutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPool struct {
	*Pool[locking.NoLock]
	source *HeapSource
}

func newTestPool(t *testing.T, objectSize int, opts ...Option) testPool {
	t.Helper()
	src := &HeapSource{}
	all := append([]Option{
		WithName(t.Name()),
		WithChunkSize(MinChunkSize),
		WithSource(src),
		WithFallback(testutil.CheckedFallback(t)),
		WithLogger(testutil.TestLogger(t)),
	}, opts...)
	p, err := NewUnlocked(objectSize, all...)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, p.Close()) })
	return testPool{Pool: p, source: src}
}

func TestNewRejectsInvalidGeometry(t *testing.T) {
	_, err := NewLocked(0)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))

	_, err = NewLocked(8, WithAlignment(3))
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))

	_, err = NewLocked(8, WithMaxChunks(-1))
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeValidation))
}

func TestAllocateShape(t *testing.T) {
	p := newTestPool(t, 20)
	slot := p.Layout().ObjectSizeOf
	require.Equal(t, 24, slot)

	b := p.Allocate(20)
	assert.Len(t, b, 20)
	assert.Equal(t, slot, cap(b))
	assert.True(t, p.Owns(b))

	small := p.Allocate(3)
	assert.Len(t, small, 3)
	assert.Equal(t, slot, cap(small))

	empty := p.Allocate(0)
	assert.Len(t, empty, 0)
	assert.Equal(t, slot, cap(empty))

	assert.Nil(t, p.Allocate(-1))

	for _, s := range [][]byte{b, small, empty} {
		require.NoError(t, p.Release(s))
	}
	assert.Zero(t, p.Stats().Chunks)
}

func TestAllocateUniqueAndContained(t *testing.T) {
	p := newTestPool(t, 24)
	const n = 1000

	seen := make(map[uintptr]bool, n)
	live := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		b := p.Allocate(24)
		addr := addressOf(b)
		require.False(t, seen[addr], "address handed out twice")
		seen[addr] = true
		live = append(live, b)

		holders := 0
		for _, c := range p.chunks {
			if c.contains(addr) {
				holders++
			}
		}
		require.Equal(t, 1, holders)
	}

	s := p.Stats()
	assert.Equal(t, n, s.UsedSlots)
	assert.Zero(t, s.FallbackLive)
	assert.Equal(t, (n+p.Layout().ObjectCounter-1)/p.Layout().ObjectCounter, s.Chunks)

	for _, b := range live {
		require.NoError(t, p.Release(b))
	}
	assert.Zero(t, p.Stats().Chunks)
	assert.Zero(t, p.source.Outstanding())
}

func TestTinyChunkRequestEndToEnd(t *testing.T) {
	p := newTestPool(t, 16, WithChunkSize(64))
	l := p.Layout()
	assert.Equal(t, MinChunkSize, l.TargetSize)
	assert.GreaterOrEqual(t, l.ChunkSize, MinChunkSize)

	live := make([][]byte, 10)
	for i := range live {
		live[i] = p.Allocate(16)
	}
	assert.Equal(t, 1, p.Stats().Chunks)

	for _, b := range live {
		require.NoError(t, p.Release(b))
	}
	s := p.Stats()
	assert.Zero(t, s.Chunks)
	assert.Equal(t, uint64(1), s.ChunksCreated)
	assert.Equal(t, uint64(1), s.ChunksEvicted)
	assert.Equal(t, uint64(10), s.Allocations)
	assert.Equal(t, uint64(10), s.Releases)
}

func TestEscalationOnAllocate(t *testing.T) {
	p := newTestPool(t, 16)

	var cs []*chunk
	for i := 0; i < 3; i++ {
		c, err := p.grow()
		require.NoError(t, err)
		cs = append(cs, c)
	}
	a, b, c := cs[2], cs[1], cs[0]
	require.Equal(t, []*chunk{a, b, c}, p.chunks)

	for a.avail() {
		_, ok := a.allocate()
		require.True(t, ok)
	}

	got := p.Allocate(16)
	assert.True(t, b.contains(addressOf(got)))
	assert.Equal(t, []*chunk{b, a, c}, p.chunks)
	assert.Equal(t, uint64(1), p.Stats().Escalations)

	require.NoError(t, p.Release(got))
}

func TestEscalationOnRelease(t *testing.T) {
	p := newTestPool(t, 16)

	var cs []*chunk
	for i := 0; i < 3; i++ {
		c, err := p.grow()
		require.NoError(t, err)
		cs = append(cs, c)
	}
	a, b, c := cs[2], cs[1], cs[0]

	i1, _ := c.allocate()
	i2, _ := c.allocate()
	x, y := c.slot(i1), c.slot(i2)

	require.NoError(t, p.Release(x))
	assert.Equal(t, []*chunk{a, c, b}, p.chunks)

	require.NoError(t, p.Release(y))
	assert.Equal(t, []*chunk{a, b}, p.chunks, "drained chunk is evicted")
	assert.Equal(t, 2*p.Layout().ChunkSize, p.source.Outstanding())
}

func TestNewChunkGoesToHead(t *testing.T) {
	p := newTestPool(t, 16)
	per := p.Layout().ObjectCounter

	first := make([][]byte, per)
	for i := range first {
		first[i] = p.Allocate(16)
	}
	require.Len(t, p.chunks, 1)
	head := p.chunks[0]

	extra := p.Allocate(16)
	require.Len(t, p.chunks, 2)
	assert.True(t, p.chunks[0].contains(addressOf(extra)))
	assert.Same(t, head, p.chunks[1])

	info := p.Info()
	require.Len(t, info.Chunks, 2)
	assert.Equal(t, uint64(2), info.Chunks[0].Sequence)
	assert.Equal(t, 1, info.Chunks[0].Used)
	assert.Equal(t, per, info.Chunks[1].Used)

	for _, b := range append(first, extra) {
		require.NoError(t, p.Release(b))
	}
}

func TestFreeSlotsMoveByOne(t *testing.T) {
	p := newTestPool(t, 32)
	keep := p.Allocate(32)

	free := p.Stats().FreeSlots
	var live [][]byte
	for i := 0; i < 10; i++ {
		live = append(live, p.Allocate(32))
		free--
		require.Equal(t, free, p.Stats().FreeSlots)
	}
	for _, b := range live {
		require.NoError(t, p.Release(b))
		free++
		require.Equal(t, free, p.Stats().FreeSlots)
	}
	require.NoError(t, p.Release(keep))
}

func TestReleaseThenAllocateReusesSlot(t *testing.T) {
	p := newTestPool(t, 32)
	keep := p.Allocate(32)
	b := p.Allocate(32)
	addr := addressOf(b)

	require.NoError(t, p.Release(b))
	again := p.Allocate(32)
	assert.Equal(t, addr, addressOf(again))

	require.NoError(t, p.Release(again))
	require.NoError(t, p.Release(keep))
}

func TestZeroing(t *testing.T) {
	for _, zeroing := range []bool{true, false} {
		p := newTestPool(t, 32, WithZeroing(zeroing))
		keep := p.Allocate(32)

		b := p.Allocate(32)
		copy(b, bytes.Repeat([]byte{0xAB}, 32))
		require.NoError(t, p.Release(b))

		again := p.Allocate(32)
		if zeroing {
			assert.Equal(t, make([]byte, 32), again)
		} else {
			assert.Equal(t, bytes.Repeat([]byte{0xAB}, 32), again)
		}
		require.NoError(t, p.Release(again))
		require.NoError(t, p.Release(keep))
	}
}

func TestOversizedGoesToFallback(t *testing.T) {
	p := newTestPool(t, 32)

	big := p.Allocate(1000)
	require.Len(t, big, 1000)
	assert.True(t, p.Owns(big))

	s := p.Stats()
	assert.Zero(t, s.Chunks)
	assert.Equal(t, 1, s.FallbackLive)
	assert.Equal(t, int64(1000), s.FallbackBytes)
	assert.Equal(t, uint64(1), s.FallbackAllocations)

	require.NoError(t, p.Release(big))
	s = p.Stats()
	assert.Zero(t, s.FallbackLive)
	assert.Equal(t, uint64(1), s.FallbackReleases)
}

func TestMaxChunksFallsBack(t *testing.T) {
	p := newTestPool(t, 16, WithMaxChunks(1))
	per := p.Layout().ObjectCounter

	live := make([][]byte, 0, per+1)
	for i := 0; i < per+1; i++ {
		live = append(live, p.Allocate(16))
	}

	s := p.Stats()
	assert.Equal(t, 1, s.Chunks)
	assert.Equal(t, 1, s.FallbackLive)
	assert.Equal(t, uint64(1), s.ChunkFailures)
	assert.Equal(t, uint64(per), s.Allocations)

	for _, b := range live {
		require.NoError(t, p.Release(b))
	}
	assert.Zero(t, p.Stats().Outstanding())
}

func TestSourceFailureFallsBack(t *testing.T) {
	p := newTestPool(t, 16, WithSource(&HeapSource{Limit: 1}))

	b := p.Allocate(16)
	require.Len(t, b, 16)
	s := p.Stats()
	assert.Zero(t, s.Chunks)
	assert.Equal(t, 1, s.FallbackLive)
	assert.Equal(t, uint64(1), s.ChunkFailures)

	require.NoError(t, p.Release(b))
}

func TestReleaseErrors(t *testing.T) {
	p := newTestPool(t, 16)
	keep := p.Allocate(16)
	b := p.Allocate(16)

	err := p.Release(make([]byte, 16))
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeOwnership))

	require.NoError(t, p.Release(b))
	before := p.Stats()

	err = p.Release(b)
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeDoubleRelease))

	after := p.Stats()
	assert.Equal(t, before.Releases, after.Releases)
	assert.Equal(t, before.UsedSlots, after.UsedSlots)
	assert.Equal(t, before.RejectedReleases+1, after.RejectedReleases)

	assert.NoError(t, p.Release(nil))
	assert.NoError(t, p.Release([]byte{}))
	assert.False(t, p.Owns(b))

	require.NoError(t, p.Release(keep))
}

func TestStatisticsDisabled(t *testing.T) {
	p := newTestPool(t, 16, WithStatistics(false))
	b := p.Allocate(16)

	s := p.Stats()
	assert.False(t, s.Enabled)
	assert.Zero(t, s.Allocations)
	assert.Zero(t, s.ChunksCreated)
	assert.Equal(t, 1, s.UsedSlots)
	assert.Equal(t, 1, s.Chunks)

	require.NoError(t, p.Release(b))
}

func TestReallocate(t *testing.T) {
	p := newTestPool(t, 64)

	b := p.Reallocate(10, nil)
	require.Len(t, b, 10)
	copy(b, "0123456789")

	grown := p.Reallocate(60, b)
	assert.Equal(t, addressOf(b), addressOf(grown), "resized in place")
	assert.Equal(t, []byte("0123456789"), grown[:10])

	moved := p.Reallocate(500, grown)
	require.Len(t, moved, 500)
	assert.Equal(t, []byte("0123456789"), moved[:10])
	assert.False(t, p.Owns(grown))

	s := p.Stats()
	assert.Zero(t, s.UsedSlots)
	assert.Equal(t, 1, s.FallbackLive)

	p.Free(moved)
	assert.Zero(t, p.Stats().Outstanding())
}

func TestArrowBuffer(t *testing.T) {
	p := newTestPool(t, 64)

	buf := memory.NewResizableBuffer(p)
	buf.Resize(32)
	assert.Equal(t, 1, p.Stats().UsedSlots)

	buf.Resize(1024)
	assert.Zero(t, p.Stats().UsedSlots)
	assert.Equal(t, 1, p.Stats().FallbackLive)

	buf.Release()
	assert.Zero(t, p.Stats().Outstanding())
}

func TestClose(t *testing.T) {
	src := &HeapSource{}
	p, err := NewUnlocked(16, WithSource(src), WithFallback(testutil.CheckedFallback(t)), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	b := p.Allocate(16)
	p.Allocate(4096)
	require.Equal(t, p.Layout().ChunkSize, src.Outstanding())

	require.NoError(t, p.Close())
	assert.Zero(t, src.Outstanding())
	assert.True(t, p.Info().Closed)
	assert.NoError(t, p.Close())

	assert.PanicsWithValue(t, useAfterClose, func() { p.Allocate(16) })
	err = p.Release(b)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeClosed))
	assert.False(t, p.Owns(b))
}

func TestWriteInfo(t *testing.T) {
	p := newTestPool(t, 24)
	b := p.Allocate(24)

	var out bytes.Buffer
	require.NoError(t, p.WriteInfo(&out))
	assert.Contains(t, out.String(), "pool "+t.Name()+" (heap source, none locking)")
	assert.Contains(t, out.String(), "slot 24 bytes, 192 slots per chunk")
	assert.Contains(t, out.String(), "chunk #1: used 1, free 191")
	assert.Contains(t, out.String(), "chunks 1, used 1, free 191, utilization 0.5%")

	require.NoError(t, p.Release(b))

	out.Reset()
	require.NoError(t, p.WriteInfo(&out))
	assert.Contains(t, out.String(), "chunks 0, used 0, free 0, utilization 0.0%")
}

func TestStatsUtilization(t *testing.T) {
	p := newTestPool(t, 24)
	assert.Zero(t, p.Stats().Utilization())

	held := make([][]byte, 48)
	for i := range held {
		held[i] = p.Allocate(24)
	}
	s := p.Stats()
	assert.Equal(t, 48, s.UsedSlots)
	assert.InDelta(t, 0.25, s.Utilization(), 1e-9)

	for _, b := range held {
		require.NoError(t, p.Release(b))
	}
}

func TestNewDefaultsToGlobalLogger(t *testing.T) {
	p, err := NewUnlocked(16, WithName("quiet"), WithSource(&HeapSource{}))
	require.NoError(t, err)
	defer p.Close()

	require.NotNil(t, p.logger)
	assert.Equal(t, "pool", p.logger.Name())
	p.Free(make([]byte, 8))
}

func TestLockedPoolConcurrent(t *testing.T) {
	p, err := NewLocked(40,
		WithSource(&HeapSource{}),
		WithChunkSize(MinChunkSize),
		WithFallback(testutil.CheckedFallback(t)))
	require.NoError(t, err)
	defer p.Close()

	const workers, rounds, batch = 8, 200, 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(marker byte) {
			defer wg.Done()
			live := make([][]byte, 0, batch)
			for r := 0; r < rounds; r++ {
				for i := 0; i < batch; i++ {
					b := p.Allocate(40)
					for j := range b {
						b[j] = marker
					}
					live = append(live, b)
				}
				for _, b := range live {
					if !bytes.Equal(b, bytes.Repeat([]byte{marker}, 40)) {
						errs <- poolerrors.New(poolerrors.ErrorTypeInternal, "slot shared between goroutines")
						return
					}
					if err := p.Release(b); err != nil {
						errs <- err
						return
					}
				}
				live = live[:0]
			}
		}(byte(w + 1))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s := p.Stats()
	assert.Zero(t, s.Outstanding())
	assert.Zero(t, s.Chunks)
	assert.Equal(t, uint64(workers*rounds*batch), s.Allocations)
	assert.Equal(t, uint64(workers*rounds*batch), s.Releases)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultPool()
	cfg.Name = "configured"
	cfg.ObjectSize = 48
	cfg.ChunkSize = 8192
	cfg.Source = config.SourceHeap
	cfg.Locking = config.LockingNone

	a, err := FromConfig(cfg, WithFallback(testutil.CheckedFallback(t)))
	require.NoError(t, err)
	defer a.Close()

	info := a.Info()
	assert.Equal(t, "configured", info.Name)
	assert.Equal(t, "heap", info.Source)
	assert.Equal(t, "none", info.Locking)
	assert.Equal(t, 48, a.Layout().ObjectSizeOf)
	assert.GreaterOrEqual(t, a.Layout().ChunkSize, 8192)

	b := a.Allocate(48)
	require.NoError(t, a.Release(b))

	cfg.Locking = "spin"
	_, err = FromConfig(cfg)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))

	locked := config.DefaultPool()
	locked.Source = config.SourceHeap
	a, err = FromConfig(locked)
	require.NoError(t, err)
	assert.Equal(t, "mutex", a.Info().Locking)
	require.NoError(t, a.Close())
}
