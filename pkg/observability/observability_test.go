package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func testTracing(t *testing.T) (*Tracing, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	cfg := config.Default().Tracing
	cfg.Enabled = true
	tr, err := newTracing(cfg, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	return tr, exporter
}

func TestSpanAttributes(t *testing.T) {
	tr, exporter := testTracing(t)

	l, err := pool.Setup(24, 4096)
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "bench.round", LayoutAttributes("points", l)...)
	span.SetAttribute("round", 3)
	span.SetAttribute("pattern", "lifo")
	span.AddEvent("drained")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "bench.round", got.Name)

	attrs := attribute.NewSet(got.Attributes...)
	v, ok := attrs.Value("pool.slots_per_chunk")
	require.True(t, ok)
	assert.Equal(t, int64(192), v.AsInt64())
	v, ok = attrs.Value("round")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())
	_, ok = attrs.Value("elapsed_ns")
	assert.True(t, ok)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "drained", got.Events[0].Name)
}

func TestSpanFail(t *testing.T) {
	tr, exporter := testTracing(t)

	_, span := tr.Start(context.Background(), "bench.worker")
	span.Fail(errors.New("boom"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
}

func TestDisabledTracingIsNoop(t *testing.T) {
	var out bytes.Buffer
	tr, err := NewTracing(config.Default().Tracing, &out)
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "ignored")
	span.SetAttribute("k", 1)
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Zero(t, out.Len())
}

func TestStdoutExporter(t *testing.T) {
	var out bytes.Buffer
	cfg := config.Default().Tracing
	cfg.Enabled = true
	tr, err := NewTracing(cfg, &out)
	require.NoError(t, err)

	_, span := tr.Start(context.Background(), "bench.run")
	span.End()
	require.NoError(t, tr.Shutdown(context.Background()))
	assert.Contains(t, out.String(), "bench.run")
}

func TestStatsAttributes(t *testing.T) {
	attrs := attribute.NewSet(StatsAttributes(pool.Stats{Allocations: 5, Chunks: 2, UsedSlots: 1, FreeSlots: 3})...)
	v, ok := attrs.Value("pool.allocations")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt64())
	v, ok = attrs.Value("pool.chunks")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
	v, ok = attrs.Value("pool.utilization")
	require.True(t, ok)
	assert.Equal(t, 0.25, v.AsFloat64())
}

// capturingMeter keeps registered callbacks so tests can run them.
type capturingMeter struct {
	noop.Meter
	callbacks []metric.Callback
}

func (m *capturingMeter) RegisterCallback(f metric.Callback, _ ...metric.Observable) (metric.Registration, error) {
	m.callbacks = append(m.callbacks, f)
	return noop.Meter{}.RegisterCallback(f)
}

type recordingObserver struct {
	embedded.Observer
	values []int64
}

func (o *recordingObserver) ObserveFloat64(metric.Float64Observable, float64, ...metric.ObserveOption) {}

func (o *recordingObserver) ObserveInt64(_ metric.Int64Observable, v int64, _ ...metric.ObserveOption) {
	o.values = append(o.values, v)
}

func TestRegisterPoolGauges(t *testing.T) {
	p, err := pool.NewLocked(32, pool.WithName("gauged"), pool.WithSource(&pool.HeapSource{}))
	require.NoError(t, err)
	defer p.Close()

	meter := &capturingMeter{}
	reg, err := RegisterPoolGauges(meter, p)
	require.NoError(t, err)
	defer reg.Unregister()
	require.Len(t, meter.callbacks, 1)

	b := p.Allocate(32)
	big := p.Allocate(4096)

	obs := &recordingObserver{}
	require.NoError(t, meter.callbacks[0](context.Background(), obs))
	per := int64(p.Layout().ObjectCounter)
	assert.Equal(t, []int64{1, 1, per - 1, 1}, obs.values)

	require.NoError(t, p.Release(b))
	require.NoError(t, p.Release(big))
}
