package observability

import (
	"context"

	"github.com/ajitpratap0/objpool/pkg/pool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterPoolGauges publishes the gauges of alloc on meter. The pool is
// sampled once per collection. Unregister the returned registration before
// closing the pool.
func RegisterPoolGauges(meter metric.Meter, alloc pool.Allocator) (metric.Registration, error) {
	chunks, err := meter.Int64ObservableGauge("objpool.chunks",
		metric.WithDescription("Live chunks"))
	if err != nil {
		return nil, err
	}
	used, err := meter.Int64ObservableGauge("objpool.slots.used",
		metric.WithDescription("Occupied slots across live chunks"))
	if err != nil {
		return nil, err
	}
	free, err := meter.Int64ObservableGauge("objpool.slots.free",
		metric.WithDescription("Free slots across live chunks"))
	if err != nil {
		return nil, err
	}
	fallback, err := meter.Int64ObservableGauge("objpool.fallback.live",
		metric.WithDescription("Outstanding fallback allocations"))
	if err != nil {
		return nil, err
	}

	set := metric.WithAttributeSet(attribute.NewSet(attribute.String("pool", alloc.Name())))
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := alloc.Stats()
		o.ObserveInt64(chunks, int64(s.Chunks), set)
		o.ObserveInt64(used, int64(s.UsedSlots), set)
		o.ObserveInt64(free, int64(s.FreeSlots), set)
		o.ObserveInt64(fallback, int64(s.FallbackLive), set)
		return nil
	}, chunks, used, free, fallback)
}
