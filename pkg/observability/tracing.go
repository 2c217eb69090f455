// Package observability traces benchmark runs with OpenTelemetry and
// publishes pool gauges through the OpenTelemetry metric API.
package observability

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ajitpratap0/objpool/pkg/config"
	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/ajitpratap0/objpool/pkg/poolerrors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracing owns a tracer provider. The zero value is not usable; see
// NewTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracing creates a tracer that writes finished spans to w. When tracing
// is disabled the returned Tracing hands out no-op spans.
func NewTracing(cfg config.TracingConfig, w io.Writer) (*Tracing, error) {
	if !cfg.Enabled {
		return &Tracing{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if cfg.PrettyPrint {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create stdout exporter")
	}
	return newTracing(cfg, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(time.Second)))
}

func newTracing(cfg config.TracingConfig, processor sdktrace.TracerProviderOption) (*Tracing, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, poolerrors.Wrap(err, poolerrors.ErrorTypeConfig, "failed to create resource")
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
		processor,
	)
	return &Tracing{provider: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Start begins a span.
func (t *Tracing) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Span{span: span, startTime: time.Now()}
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// Span wraps a trace span. Attributes are batched until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case time.Duration:
		attr = attribute.String(key, v.String())
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// SetAttributes adds typed attributes to the span
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.attributes = append(s.attributes, attrs...)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail records err and marks the span as failed
func (s *Span) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End sets the batched attributes and the elapsed time, then ends the span
func (s *Span) End() {
	s.attributes = append(s.attributes, attribute.Int64("elapsed_ns", time.Since(s.startTime).Nanoseconds()))
	s.span.SetAttributes(s.attributes...)
	s.span.End()
}

// LayoutAttributes describes a pool layout.
func LayoutAttributes(name string, l pool.Layout) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("pool.name", name),
		attribute.Int("pool.slot_size", l.ObjectSizeOf),
		attribute.Int("pool.slots_per_chunk", l.ObjectCounter),
		attribute.Int("pool.chunk_size", l.ChunkSize),
	}
}

// StatsAttributes describes a statistics snapshot.
func StatsAttributes(s pool.Stats) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("pool.allocations", int64(s.Allocations)),
		attribute.Int64("pool.releases", int64(s.Releases)),
		attribute.Int64("pool.fallback_allocations", int64(s.FallbackAllocations)),
		attribute.Int64("pool.chunks_created", int64(s.ChunksCreated)),
		attribute.Int64("pool.chunks_evicted", int64(s.ChunksEvicted)),
		attribute.Int64("pool.escalations", int64(s.Escalations)),
		attribute.Int("pool.chunks", s.Chunks),
		attribute.Float64("pool.utilization", s.Utilization()),
	}
}
