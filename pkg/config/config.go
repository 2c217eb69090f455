package config

import (
	"math/bits"
	"runtime"
	"strings"
	"time"

	"github.com/ajitpratap0/objpool/pkg/poolerrors"
)

// Chunk sources
const (
	SourceOS   = "os"
	SourceHeap = "heap"
)

// Locking strategies
const (
	LockingMutex = "mutex"
	LockingNone  = "none"
)

// Benchmark patterns
const (
	PatternLIFO    = "lifo"
	PatternFIFO    = "fifo"
	PatternRandom  = "random"
	PatternHandoff = "handoff"
)

// Config is the root configuration.
type Config struct {
	// Pool configures the allocator under test or in use
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Logging configures the zap logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures span export
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Bench configures the workload driver
	Bench BenchConfig `yaml:"bench" json:"bench"`
}

// PoolConfig describes one pool.
type PoolConfig struct {
	// Name identifies the pool in logs and metrics
	Name string `yaml:"name" json:"name"`
	// ObjectSize is the requested object size in bytes
	ObjectSize int `yaml:"object_size" json:"object_size"`
	// ChunkSize is the requested chunk size in bytes
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// MinChunkSize is the lower bound chunk sizes are clamped to
	MinChunkSize int `yaml:"min_chunk_size" json:"min_chunk_size"`
	// Alignment is the slot alignment, a power of two
	Alignment int `yaml:"alignment" json:"alignment"`
	// MaxChunks caps live chunks (0 = unlimited)
	MaxChunks int `yaml:"max_chunks" json:"max_chunks"`
	// Statistics enables allocation counters
	Statistics bool `yaml:"statistics" json:"statistics"`
	// Zeroing clears slots before they are handed out
	Zeroing bool `yaml:"zeroing" json:"zeroing"`
	// Locking selects the synchronization strategy (mutex, none)
	Locking string `yaml:"locking" json:"locking"`
	// Source selects where chunk memory comes from (os, heap)
	Source string `yaml:"source" json:"source"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Development enables the human-friendly console encoder
	Development bool `yaml:"development" json:"development"`
}

// MetricsConfig configures metrics exposition.
type MetricsConfig struct {
	// Enabled registers the pool collector
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Address is the listen address of the /metrics endpoint
	Address string `yaml:"address" json:"address"`
	// Namespace prefixes every metric name
	Namespace string `yaml:"namespace" json:"namespace"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Enabled turns tracing on
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName is reported as the service.name resource attribute
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
	// PrettyPrint indents exported spans
	PrettyPrint bool `yaml:"pretty_print" json:"pretty_print"`
}

// BenchConfig configures the workload driver.
type BenchConfig struct {
	// Objects is the number of live objects per round and worker
	Objects int `yaml:"objects" json:"objects"`
	// Rounds is the number of allocate/release rounds
	Rounds int `yaml:"rounds" json:"rounds"`
	// Pattern selects the release order (lifo, fifo, random, handoff)
	Pattern string `yaml:"pattern" json:"pattern"`
	// Workers is the number of concurrent goroutines
	Workers int `yaml:"workers" json:"workers"`
	// Seed seeds the random pattern
	Seed int64 `yaml:"seed" json:"seed"`
	// SampleInterval is the RSS sampling period
	SampleInterval time.Duration `yaml:"sample_interval" json:"sample_interval"`
}

// Default returns a configuration with production-ready values.
func Default() *Config {
	return &Config{
		Pool: DefaultPool(),
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Address:   ":9090",
			Namespace: "objpool",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "objpool",
			SampleRate:  1.0,
		},
		Bench: BenchConfig{
			Objects:        10000,
			Rounds:         100,
			Pattern:        PatternLIFO,
			Workers:        runtime.NumCPU(),
			Seed:           1,
			SampleInterval: 100 * time.Millisecond,
		},
	}
}

// DefaultPool returns the default pool configuration.
func DefaultPool() PoolConfig {
	return PoolConfig{
		Name:         "objpool",
		ObjectSize:   64,
		ChunkSize:    32 * 1024,
		MinChunkSize: 4 * 1024,
		Alignment:    8,
		Statistics:   true,
		Zeroing:      true,
		Locking:      LockingMutex,
		Source:       SourceOS,
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return invalid("tracing.sample_rate", c.Tracing.SampleRate, "must be within [0, 1]")
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return invalid("metrics.address", c.Metrics.Address, "is required when metrics are enabled")
	}
	return c.Bench.Validate()
}

// Validate checks the pool section.
func (p *PoolConfig) Validate() error {
	if p.ObjectSize <= 0 {
		return invalid("pool.object_size", p.ObjectSize, "must be positive")
	}
	if p.ChunkSize < 0 {
		return invalid("pool.chunk_size", p.ChunkSize, "cannot be negative")
	}
	if p.MinChunkSize <= 0 {
		return invalid("pool.min_chunk_size", p.MinChunkSize, "must be positive")
	}
	if p.Alignment <= 0 || bits.OnesCount(uint(p.Alignment)) != 1 {
		return invalid("pool.alignment", p.Alignment, "must be a power of two")
	}
	if p.MaxChunks < 0 {
		return invalid("pool.max_chunks", p.MaxChunks, "cannot be negative")
	}
	switch strings.ToLower(p.Locking) {
	case "", LockingMutex, LockingNone:
	default:
		return invalid("pool.locking", p.Locking, "must be mutex or none")
	}
	switch strings.ToLower(p.Source) {
	case "", SourceOS, SourceHeap:
	default:
		return invalid("pool.source", p.Source, "must be os or heap")
	}
	return nil
}

// Validate checks the logging section.
func (l *LoggingConfig) Validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return invalid("logging.level", l.Level, "must be debug, info, warn or error")
}

// Validate checks the bench section.
func (b *BenchConfig) Validate() error {
	if b.Objects <= 0 {
		return invalid("bench.objects", b.Objects, "must be positive")
	}
	if b.Rounds <= 0 {
		return invalid("bench.rounds", b.Rounds, "must be positive")
	}
	switch strings.ToLower(b.Pattern) {
	case PatternLIFO, PatternFIFO, PatternRandom, PatternHandoff:
	default:
		return invalid("bench.pattern", b.Pattern, "must be lifo, fifo, random or handoff")
	}
	if strings.EqualFold(b.Pattern, PatternHandoff) && b.Workers == 1 {
		return invalid("bench.workers", b.Workers, "handoff needs at least two workers")
	}
	return nil
}

// GetWorkers returns the number of workers, ensuring it's at least 1
func (b *BenchConfig) GetWorkers() int {
	if b.Workers <= 0 {
		return runtime.NumCPU()
	}
	return b.Workers
}

func invalid(field string, value interface{}, reason string) error {
	return poolerrors.New(poolerrors.ErrorTypeConfig, field+" "+reason).
		WithDetail("field", field).
		WithDetail("value", value)
}
