// Package metrics exports pool statistics to Prometheus and tracks
// benchmark throughput and latency.
//
// # Overview
//
// PoolCollector reads Stats from one or more pools on every scrape, so the
// hot allocate/release path never touches Prometheus:
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewPoolCollector("objpool")
//	c.Add(p)
//	reg.MustRegister(c)
//
// ThroughputTracker and LatencyTracker summarize benchmark rounds.
//
// # Metric Types
//
// Counter: allocations, releases, fallbacks, chunk churn, escalations
// Gauge: live chunks, used and free slots, fallback allocations, bytes held
package metrics

import (
	"slices"
	"sync"
	"time"

	"github.com/ajitpratap0/objpool/pkg/pool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolCollector is a prometheus.Collector over pool statistics.
type PoolCollector struct {
	mu    sync.RWMutex
	pools []pool.Allocator

	allocations         *prometheus.Desc
	releases            *prometheus.Desc
	fallbackAllocations *prometheus.Desc
	fallbackReleases    *prometheus.Desc
	chunksCreated       *prometheus.Desc
	chunksEvicted       *prometheus.Desc
	chunkFailures       *prometheus.Desc
	escalations         *prometheus.Desc
	rejectedReleases    *prometheus.Desc

	chunks        *prometheus.Desc
	usedSlots     *prometheus.Desc
	freeSlots     *prometheus.Desc
	chunkBytes    *prometheus.Desc
	fallbackLive  *prometheus.Desc
	fallbackBytes *prometheus.Desc
}

// NewPoolCollector creates a collector whose metric names start with
// namespace.
func NewPoolCollector(namespace string) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, []string{"pool"}, nil)
	}
	return &PoolCollector{
		allocations:         desc("allocations_total", "Allocations served from chunks"),
		releases:            desc("releases_total", "Slots returned to chunks"),
		fallbackAllocations: desc("fallback_allocations_total", "Allocations served by the fallback allocator"),
		fallbackReleases:    desc("fallback_releases_total", "Releases forwarded to the fallback allocator"),
		chunksCreated:       desc("chunks_created_total", "Chunks obtained from the source"),
		chunksEvicted:       desc("chunks_evicted_total", "Drained chunks returned to the source"),
		chunkFailures:       desc("chunk_failures_total", "Chunk creations that failed or hit the chunk limit"),
		escalations:         desc("escalations_total", "Chunk moves toward the list head"),
		rejectedReleases:    desc("rejected_releases_total", "Foreign or repeated releases"),

		chunks:        desc("chunks", "Live chunks"),
		usedSlots:     desc("used_slots", "Occupied slots across live chunks"),
		freeSlots:     desc("free_slots", "Free slots across live chunks"),
		chunkBytes:    desc("chunk_bytes", "Bytes held in live chunks"),
		fallbackLive:  desc("fallback_live", "Outstanding fallback allocations"),
		fallbackBytes: desc("fallback_bytes", "Bytes held by outstanding fallback allocations"),
	}
}

// Add starts exporting p.
func (c *PoolCollector) Add(p pool.Allocator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = append(c.pools, p)
}

// Remove stops exporting p. Remove a pool before closing it.
func (c *PoolCollector) Remove(p pool.Allocator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = slices.DeleteFunc(c.pools, func(q pool.Allocator) bool { return q == p })
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.allocations, c.releases, c.fallbackAllocations, c.fallbackReleases,
		c.chunksCreated, c.chunksEvicted, c.chunkFailures, c.escalations, c.rejectedReleases,
		c.chunks, c.usedSlots, c.freeSlots, c.chunkBytes, c.fallbackLive, c.fallbackBytes,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, p := range c.pools {
		s := p.Stats()
		name := p.Name()

		counter := func(d *prometheus.Desc, v uint64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
		}
		gauge := func(d *prometheus.Desc, v float64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, name)
		}

		if s.Enabled {
			counter(c.allocations, s.Allocations)
			counter(c.releases, s.Releases)
			counter(c.fallbackAllocations, s.FallbackAllocations)
			counter(c.fallbackReleases, s.FallbackReleases)
			counter(c.chunksCreated, s.ChunksCreated)
			counter(c.chunksEvicted, s.ChunksEvicted)
			counter(c.chunkFailures, s.ChunkFailures)
			counter(c.escalations, s.Escalations)
			counter(c.rejectedReleases, s.RejectedReleases)
		}

		gauge(c.chunks, float64(s.Chunks))
		gauge(c.usedSlots, float64(s.UsedSlots))
		gauge(c.freeSlots, float64(s.FreeSlots))
		gauge(c.chunkBytes, float64(s.ChunkBytes))
		gauge(c.fallbackLive, float64(s.FallbackLive))
		gauge(c.fallbackBytes, float64(s.FallbackBytes))
	}
}

// ThroughputTracker tracks operations per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Operations since last reset
	lastReset time.Time // Time of last reset
	gauge     prometheus.Gauge
}

// NewThroughputTracker creates a tracker. When reg is not nil the current
// rate is published as <namespace>_bench_ops_per_second{pattern=...}.
func NewThroughputTracker(reg prometheus.Registerer, namespace, pattern string) *ThroughputTracker {
	t := &ThroughputTracker{lastReset: time.Now()}
	if reg != nil {
		t.gauge = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "bench",
			Name:        "ops_per_second",
			Help:        "Allocate plus release operations per second",
			ConstLabels: prometheus.Labels{"pattern": pattern},
		})
	}
	return t
}

// Increment adds n to the operation count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns the rate since the last reset, publishes it and
// starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	if t.gauge != nil {
		t.gauge.Set(throughput)
	}
	return throughput
}

// LatencyTracker keeps the most recent latencies for percentile queries.
type LatencyTracker struct {
	mu      sync.Mutex
	values  []time.Duration
	maxSize int
}

// NewLatencyTracker creates a tracker holding at most maxSize values.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	return &LatencyTracker{
		values:  make([]time.Duration, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record records a latency value
func (l *LatencyTracker) Record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.values) >= l.maxSize {
		l.values = l.values[1:]
	}
	l.values = append(l.values, d)
}

// Percentile returns the p-th percentile (0-100) of the recorded values.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.Lock()
	sorted := slices.Clone(l.values)
	l.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	index := int(float64(len(sorted)) * p / 100)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// Count returns the number of recorded values.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.values)
}
