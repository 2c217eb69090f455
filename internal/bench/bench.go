// Package bench drives allocation workloads against a pool and reports
// throughput, round latency and memory footprint.
package bench

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/logger"
	"github.com/ajitpratap0/objpool/pkg/metrics"
	"github.com/ajitpratap0/objpool/pkg/observability"
	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options configures a run.
type Options struct {
	Pool  config.PoolConfig
	Bench config.BenchConfig

	// Logger defaults to a no-op logger
	Logger *zap.Logger
	// Tracing defaults to disabled tracing
	Tracing *observability.Tracing
	// Collector, when set, exports the pool while the run lasts
	Collector *metrics.PoolCollector
	// Registerer, when set, receives the throughput gauge
	Registerer prometheus.Registerer
	// Meter, when set, receives the pool gauges while the run lasts
	Meter metric.Meter
	// OnComplete runs after the workload, before the pool is closed
	OnComplete func(ctx context.Context, alloc pool.Allocator) error
	// PoolOptions are applied after the pool configuration
	PoolOptions []pool.Option
}

// Result summarizes a run.
type Result struct {
	Pattern      Pattern       `json:"pattern"`
	Workers      int           `json:"workers"`
	Objects      int           `json:"objects"`
	Rounds       int           `json:"rounds"`
	Operations   int64         `json:"operations"`
	Elapsed      time.Duration `json:"elapsed"`
	OpsPerSecond float64       `json:"ops_per_second"`
	RoundP50     time.Duration `json:"round_p50"`
	RoundP99     time.Duration `json:"round_p99"`
	PeakRSS      uint64        `json:"peak_rss"`
	Layout       pool.Layout   `json:"layout"`
	Stats        pool.Stats    `json:"stats"`
}

// Run executes the workload described by opts.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Pool.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Bench.Validate(); err != nil {
		return nil, err
	}
	pattern, err := ParsePattern(opts.Bench.Pattern)
	if err != nil {
		return nil, err
	}
	workers := opts.Bench.GetWorkers()
	if pattern == Handoff && workers < 2 {
		workers = 2
	}
	if strings.EqualFold(opts.Pool.Locking, config.LockingNone) && workers > 1 {
		return nil, poolerrors.New(poolerrors.ErrorTypeConfig, "an unlocked pool needs a single worker").
			WithDetail("workers", workers).
			WithDetail("pattern", string(pattern))
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	tracing := opts.Tracing
	if tracing == nil {
		if tracing, err = observability.NewTracing(config.TracingConfig{}, nil); err != nil {
			return nil, err
		}
	}

	alloc, err := pool.FromConfig(opts.Pool, append([]pool.Option{pool.WithLogger(log)}, opts.PoolOptions...)...)
	if err != nil {
		return nil, err
	}
	defer alloc.Close()
	if opts.Collector != nil {
		opts.Collector.Add(alloc)
		defer opts.Collector.Remove(alloc)
	}
	if opts.Meter != nil {
		reg, err := observability.RegisterPoolGauges(opts.Meter, alloc)
		if err != nil {
			return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to register pool gauges")
		}
		defer func() { _ = reg.Unregister() }()
	}

	r := &runner{
		alloc:      alloc,
		size:       opts.Pool.ObjectSize,
		objects:    opts.Bench.Objects,
		rounds:     opts.Bench.Rounds,
		seed:       opts.Bench.Seed,
		pattern:    pattern,
		tracing:    tracing,
		latency:    metrics.NewLatencyTracker(workers * opts.Bench.Rounds),
		throughput: metrics.NewThroughputTracker(opts.Registerer, "objpool", string(pattern)),
		log:        log,
	}

	monitor, err := NewResourceMonitor()
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeInternal, "failed to open process stats")
	}
	sampleCtx, stopSampling := context.WithCancel(ctx)
	var sampling sync.WaitGroup
	sampling.Add(2)
	go func() {
		defer sampling.Done()
		monitor.Run(sampleCtx, opts.Bench.SampleInterval)
	}()
	go func() {
		defer sampling.Done()
		r.publishThroughput(sampleCtx, opts.Bench.SampleInterval)
	}()

	ctx, span := tracing.Start(ctx, "bench.run", observability.LayoutAttributes(alloc.Name(), alloc.Layout())...)
	defer span.End()
	span.SetAttribute("pattern", string(pattern))
	span.SetAttribute("workers", workers)

	log.Info("benchmark started",
		zap.String("pattern", string(pattern)),
		zap.Int("workers", workers),
		zap.Int("objects", r.objects),
		zap.Int("rounds", r.rounds),
		zap.Int("slot_size", alloc.Layout().ObjectSizeOf))

	start := time.Now()
	if pattern == Handoff {
		err = r.handoff(ctx, workers)
	} else {
		err = r.local(ctx, workers)
	}
	elapsed := time.Since(start)

	stopSampling()
	sampling.Wait()

	if err != nil {
		span.Fail(err)
		return nil, err
	}

	stats := alloc.Stats()
	span.SetAttributes(observability.StatsAttributes(stats)...)
	if n := stats.Outstanding(); n != 0 {
		err := poolerrors.New(poolerrors.ErrorTypeInternal, "allocations outstanding after run").
			WithDetail("outstanding", n)
		span.Fail(err)
		return nil, err
	}
	if opts.OnComplete != nil {
		if err := opts.OnComplete(ctx, alloc); err != nil {
			span.Fail(err)
			return nil, err
		}
	}

	ops := r.operations()
	res := &Result{
		Pattern:    pattern,
		Workers:    workers,
		Objects:    r.objects,
		Rounds:     r.rounds,
		Operations: ops,
		Elapsed:    elapsed,
		RoundP50:   r.latency.Percentile(50),
		RoundP99:   r.latency.Percentile(99),
		PeakRSS:    monitor.PeakRSS(),
		Layout:     alloc.Layout(),
		Stats:      stats,
	}
	if elapsed > 0 {
		res.OpsPerSecond = float64(ops) / elapsed.Seconds()
	}

	log.Info("benchmark finished",
		zap.Int64("operations", ops),
		zap.Duration("elapsed", elapsed),
		zap.Float64("ops_per_second", res.OpsPerSecond),
		zap.Uint64("peak_rss", res.PeakRSS),
		zap.Uint64("chunks_created", stats.ChunksCreated),
		zap.Uint64("fallback_allocations", stats.FallbackAllocations))
	return res, nil
}

type runner struct {
	alloc      pool.Allocator
	size       int
	objects    int
	rounds     int
	seed       int64
	pattern    Pattern
	tracing    *observability.Tracing
	latency    *metrics.LatencyTracker
	throughput *metrics.ThroughputTracker
	log        *zap.Logger

	mu  sync.Mutex
	ops int64
}

func (r *runner) count(n int64) {
	r.throughput.Increment(n)
	r.mu.Lock()
	r.ops += n
	r.mu.Unlock()
}

// publishThroughput updates the throughput gauge every interval until ctx
// is done.
func (r *runner) publishThroughput(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rate := r.throughput.GetAndReset()
			r.log.Debug("throughput", zap.Float64("ops_per_second", rate))
		}
	}
}

func (r *runner) operations() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ops
}

// local runs workers that each allocate a batch and release it in pattern
// order.
func (r *runner) local(ctx context.Context, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return r.worker(ctx, w)
		})
	}
	return g.Wait()
}

func (r *runner) worker(ctx context.Context, id int) error {
	ctx = context.WithValue(ctx, logger.WorkerKey, id)
	log := r.log.With(logger.Fields(ctx)...)
	ctx, span := r.tracing.Start(ctx, "bench.worker")
	defer span.End()
	span.SetAttribute("worker", id)

	rng := rand.New(rand.NewPCG(uint64(r.seed), uint64(id)))
	live := make([][]byte, r.objects)
	order := make([]int, r.objects)
	stamp := byte(id + 1)

	// release whatever is still live when a round is cut short
	defer func() {
		for i, b := range live {
			if b != nil {
				_ = r.alloc.Release(b)
				live[i] = nil
			}
		}
	}()

	for round := 0; round < r.rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		for i := range live {
			b := r.alloc.Allocate(r.size)
			if len(b) > 0 {
				b[0] = stamp
			}
			live[i] = b
		}
		r.pattern.releaseOrder(order, rng)
		for _, i := range order {
			b := live[i]
			if len(b) > 0 && b[0] != stamp {
				err := poolerrors.New(poolerrors.ErrorTypeInternal, "object overwritten by another worker").
					WithDetail("worker", id).
					WithDetail("round", round)
				span.Fail(err)
				return err
			}
			if err := r.alloc.Release(b); err != nil {
				span.Fail(err)
				return err
			}
			live[i] = nil
		}
		r.latency.Record(time.Since(start))
		r.count(int64(2 * r.objects))
	}
	log.Debug("worker finished", zap.Int("rounds", r.rounds))
	return nil
}

// handoff runs producers that allocate and consumers that release what
// the producers hand them.
func (r *runner) handoff(ctx context.Context, workers int) error {
	producers := workers / 2
	consumers := workers - producers
	ch := make(chan []byte, r.objects)

	g, ctx := errgroup.WithContext(ctx)
	var produced sync.WaitGroup
	for p := 0; p < producers; p++ {
		produced.Add(1)
		g.Go(func() error {
			defer produced.Done()
			return r.produce(ctx, p, ch)
		})
	}
	go func() {
		produced.Wait()
		close(ch)
	}()
	for c := 0; c < consumers; c++ {
		g.Go(func() error {
			return r.consume(ch)
		})
	}
	return g.Wait()
}

func (r *runner) produce(ctx context.Context, id int, ch chan<- []byte) error {
	ctx = context.WithValue(ctx, logger.WorkerKey, id)
	_, span := r.tracing.Start(ctx, "bench.producer")
	defer span.End()
	span.SetAttribute("worker", id)
	log := r.log.With(logger.Fields(ctx)...)

	for round := 0; round < r.rounds; round++ {
		start := time.Now()
		for i := 0; i < r.objects; i++ {
			b := r.alloc.Allocate(r.size)
			select {
			case ch <- b:
			case <-ctx.Done():
				_ = r.alloc.Release(b)
				log.Debug("producer cancelled", zap.Int("round", round))
				return ctx.Err()
			}
		}
		r.latency.Record(time.Since(start))
	}
	log.Debug("producer finished", zap.Int("rounds", r.rounds))
	return nil
}

// consume drains ch even after a failure so producers never block and
// every object is returned.
func (r *runner) consume(ch <-chan []byte) error {
	var first error
	for b := range ch {
		if err := r.alloc.Release(b); err != nil && first == nil {
			first = err
		}
		r.count(2)
	}
	return first
}
