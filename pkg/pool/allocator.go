package pool

import (
	"io"
	"strings"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/locking"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Allocator is the strategy-independent view of a Pool. Every *Pool[S]
// implements it, and through it the Arrow memory.Allocator interface.
type Allocator interface {
	memory.Allocator

	Release(b []byte) error
	Owns(b []byte) bool
	Layout() Layout
	Name() string
	Stats() Stats
	Info() Info
	WriteInfo(w io.Writer) error
	Close() error
}

var (
	_ Allocator = (*Pool[*locking.Mutex])(nil)
	_ Allocator = (*Pool[locking.NoLock])(nil)
)

// FromConfig builds a pool from cfg. opts are applied after the settings
// taken from cfg.
func FromConfig(cfg config.PoolConfig, opts ...Option) (Allocator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all := []Option{
		WithName(cfg.Name),
		WithChunkSize(cfg.ChunkSize),
		WithMinChunkSize(cfg.MinChunkSize),
		WithAlignment(cfg.Alignment),
		WithMaxChunks(cfg.MaxChunks),
		WithStatistics(cfg.Statistics),
		WithZeroing(cfg.Zeroing),
	}
	switch strings.ToLower(cfg.Source) {
	case "", config.SourceOS:
	case config.SourceHeap:
		all = append(all, WithSource(&HeapSource{}))
	default:
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "unknown chunk source").
			WithDetail("source", cfg.Source)
	}
	all = append(all, opts...)

	switch strings.ToLower(cfg.Locking) {
	case "", config.LockingMutex:
		p, err := NewLocked(cfg.ObjectSize, all...)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.LockingNone:
		p, err := NewUnlocked(cfg.ObjectSize, all...)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "unknown locking strategy").
			WithDetail("locking", cfg.Locking)
	}
}
