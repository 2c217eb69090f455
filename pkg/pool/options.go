package pool

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"
)

type options struct {
	name         string
	chunkSize    int
	minChunkSize int
	alignment    int
	maxChunks    int
	statistics   bool
	zeroing      bool
	source       Source
	fallback     memory.Allocator
	logger       *zap.Logger
}

func defaultOptions() options {
	return options{
		name:         "objpool",
		chunkSize:    DefaultChunkSize,
		minChunkSize: MinChunkSize,
		alignment:    Alignment,
		statistics:   true,
		zeroing:      true,
	}
}

// Option configures a Pool.
type Option func(*options)

// WithName sets the name used in logs, metrics and Info.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithChunkSize sets the requested chunk size. Sizes below the minimum are
// clamped up to it.
func WithChunkSize(size int) Option {
	return func(o *options) { o.chunkSize = size }
}

// WithMinChunkSize sets the lower bound for chunk sizes.
func WithMinChunkSize(size int) Option {
	return func(o *options) { o.minChunkSize = size }
}

// WithAlignment sets the slot alignment. It must be a power of two.
func WithAlignment(alignment int) Option {
	return func(o *options) { o.alignment = alignment }
}

// WithMaxChunks caps the number of live chunks. Requests arriving when the
// cap is reached go to the fallback allocator. Zero means no cap.
func WithMaxChunks(n int) Option {
	return func(o *options) { o.maxChunks = n }
}

// WithStatistics turns counter maintenance on or off.
func WithStatistics(enabled bool) Option {
	return func(o *options) { o.statistics = enabled }
}

// WithZeroing controls whether slots are cleared before they are handed out.
func WithZeroing(enabled bool) Option {
	return func(o *options) { o.zeroing = enabled }
}

// WithSource sets where chunk memory comes from.
func WithSource(s Source) Option {
	return func(o *options) { o.source = s }
}

// WithFallback sets the allocator for oversized requests and for requests
// arriving when no chunk can be created.
func WithFallback(a memory.Allocator) Option {
	return func(o *options) { o.fallback = a }
}

// WithLogger sets the pool logger. Pools log through the global logger
// otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}
