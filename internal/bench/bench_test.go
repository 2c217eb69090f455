package bench

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/metrics"
	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"github.com/ajitpratap0/objpool/pkg/testutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testOptions(t *testing.T, pattern string, workers int) Options {
	cfg := config.Default()
	cfg.Pool.Source = config.SourceHeap
	cfg.Pool.ObjectSize = 40
	cfg.Pool.ChunkSize = 4096
	cfg.Bench.Objects = 300
	cfg.Bench.Rounds = 5
	cfg.Bench.Workers = workers
	cfg.Bench.Pattern = pattern
	cfg.Bench.SampleInterval = 5 * time.Millisecond
	return Options{
		Pool:   cfg.Pool,
		Bench:  cfg.Bench,
		Logger: testutil.TestLogger(t),
	}
}

func TestRunPatterns(t *testing.T) {
	for _, pattern := range []string{config.PatternLIFO, config.PatternFIFO, config.PatternRandom} {
		t.Run(pattern, func(t *testing.T) {
			ctx, cancel := testutil.TestContext(t)
			defer cancel()

			res, err := Run(ctx, testOptions(t, pattern, 4))
			require.NoError(t, err)

			assert.Equal(t, Pattern(pattern), res.Pattern)
			assert.Equal(t, int64(4*5*300*2), res.Operations)
			assert.Equal(t, uint64(4*5*300), res.Stats.Allocations)
			assert.Equal(t, uint64(4*5*300), res.Stats.Releases)
			assert.Zero(t, res.Stats.Outstanding())
			assert.Greater(t, res.RoundP99, time.Duration(0))
			assert.GreaterOrEqual(t, res.RoundP99, res.RoundP50)
		})
	}
}

func TestRunHandoff(t *testing.T) {
	opts := testOptions(t, config.PatternHandoff, 4)
	reg := prometheus.NewRegistry()
	opts.Registerer = reg
	opts.Collector = metrics.NewPoolCollector("objpool")

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Workers)
	// two producers
	assert.Equal(t, int64(2*5*300*2), res.Operations)
	assert.Zero(t, res.Stats.Outstanding())
	assert.Greater(t, res.OpsPerSecond, 0.0)
}

func TestRunSingleWorkerUnlocked(t *testing.T) {
	opts := testOptions(t, config.PatternLIFO, 1)
	opts.Pool.Locking = config.LockingNone

	res, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Workers)
	assert.GreaterOrEqual(t, res.Stats.ChunksCreated, uint64(1))
	assert.Equal(t, res.Stats.ChunksCreated, res.Stats.ChunksEvicted)
}

func TestRunRejectsSharedUnlockedPool(t *testing.T) {
	opts := testOptions(t, config.PatternFIFO, 2)
	opts.Pool.Locking = config.LockingNone

	_, err := Run(context.Background(), opts)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testOptions(t, config.PatternRandom, 2))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePattern(t *testing.T) {
	p, err := ParsePattern("LIFO")
	require.NoError(t, err)
	assert.Equal(t, LIFO, p)

	_, err = ParsePattern("zigzag")
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), `unknown pattern "zigzag"`)
}

func TestReleaseOrder(t *testing.T) {
	order := make([]int, 5)
	rng := rand.New(rand.NewPCG(1, 2))

	LIFO.releaseOrder(order, rng)
	assert.Equal(t, []int{4, 3, 2, 1, 0}, order)

	FIFO.releaseOrder(order, rng)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	Random.releaseOrder(order, rng)
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, order)
}

func TestResourceMonitor(t *testing.T) {
	rm, err := NewResourceMonitor()
	require.NoError(t, err)

	usage, err := rm.Sample()
	require.NoError(t, err)
	assert.Greater(t, usage.MemoryRSS, uint64(0))
	assert.Greater(t, usage.GoroutineCount, 0)
	assert.Equal(t, usage.MemoryRSS, rm.PeakRSS())

	ctx, cancel := testutil.TestContext(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		rm.Run(ctx, 5*time.Millisecond)
	}()
	testutil.AssertEventually(t, func() bool { return rm.Samples() >= 3 }, time.Second, "monitor kept sampling")
	cancel()
	<-done
}

func TestRunPublishesGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var names []string
	opts := testOptions(t, config.PatternLIFO, 2)
	opts.Meter = provider.Meter("bench")
	opts.OnComplete = func(ctx context.Context, alloc pool.Allocator) error {
		var rm metricdata.ResourceMetrics
		if err := reader.Collect(ctx, &rm); err != nil {
			return err
		}
		for _, sm := range rm.ScopeMetrics {
			for _, m := range sm.Metrics {
				names = append(names, m.Name)
			}
		}
		return nil
	}

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Contains(t, names, "objpool.chunks")
	assert.Contains(t, names, "objpool.slots.used")
	assert.Contains(t, names, "objpool.fallback.live")
}

func TestRunOnCompleteError(t *testing.T) {
	opts := testOptions(t, config.PatternFIFO, 1)
	opts.OnComplete = func(context.Context, pool.Allocator) error {
		return poolerrors.New(poolerrors.ErrorTypeInternal, "report failed")
	}
	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, poolerrors.IsType(err, poolerrors.ErrorTypeInternal))
}

func throughputGauge(t *testing.T, reg *prometheus.Registry) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "objpool_bench_ops_per_second" {
			require.Len(t, mf.GetMetric(), 1)
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("throughput gauge not registered")
	return 0
}

func TestRunPublishesThroughputWhileRunning(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	opts := testOptions(t, config.PatternLIFO, 2)
	opts.Bench.Objects = 2000
	opts.Bench.Rounds = 100
	opts.Bench.SampleInterval = time.Millisecond
	reg := prometheus.NewRegistry()
	opts.Registerer = reg

	var live float64
	opts.OnComplete = func(context.Context, pool.Allocator) error {
		live = throughputGauge(t, reg)
		return nil
	}

	res, err := Run(ctx, opts)
	require.NoError(t, err)
	assert.Greater(t, live, 0.0)
	assert.Greater(t, res.OpsPerSecond, 0.0)
}

func TestRunLogsWorkerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts := testOptions(t, config.PatternFIFO, 2)
	opts.Logger = zap.New(core)

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	finished := logs.FilterMessage("worker finished").All()
	require.Len(t, finished, 2)
	var workers []int64
	for _, e := range finished {
		workers = append(workers, e.ContextMap()["worker"].(int64))
	}
	assert.ElementsMatch(t, []int64{0, 1}, workers)
}
