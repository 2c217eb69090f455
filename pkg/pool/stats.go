package pool

// counters are maintained only when statistics are enabled.
type counters struct {
	allocations         uint64
	releases            uint64
	fallbackAllocations uint64
	fallbackReleases    uint64
	chunksCreated       uint64
	chunksEvicted       uint64
	chunkFailures       uint64
	escalations         uint64
	rejectedReleases    uint64
}

// Stats is a point-in-time view of a pool.
//
// The counters are zero when the pool was built with WithStatistics(false).
// The gauges below them are always derived from the live chunks.
type Stats struct {
	Enabled bool `json:"enabled"`

	Allocations         uint64 `json:"allocations"`
	Releases            uint64 `json:"releases"`
	FallbackAllocations uint64 `json:"fallback_allocations"`
	FallbackReleases    uint64 `json:"fallback_releases"`
	ChunksCreated       uint64 `json:"chunks_created"`
	ChunksEvicted       uint64 `json:"chunks_evicted"`
	ChunkFailures       uint64 `json:"chunk_failures"`
	Escalations         uint64 `json:"escalations"`
	RejectedReleases    uint64 `json:"rejected_releases"`

	Chunks        int   `json:"chunks"`
	UsedSlots     int   `json:"used_slots"`
	FreeSlots     int   `json:"free_slots"`
	ChunkBytes    int64 `json:"chunk_bytes"`
	FallbackLive  int   `json:"fallback_live"`
	FallbackBytes int64 `json:"fallback_bytes"`
}

// Outstanding returns the number of allocations not yet released.
func (s Stats) Outstanding() int {
	return s.UsedSlots + s.FallbackLive
}

// Utilization returns the share of slots in use across live chunks.
func (s Stats) Utilization() float64 {
	total := s.UsedSlots + s.FreeSlots
	if total == 0 {
		return 0
	}
	return float64(s.UsedSlots) / float64(total)
}

func (c *counters) snapshot(s *Stats) {
	if c == nil {
		return
	}
	s.Enabled = true
	s.Allocations = c.allocations
	s.Releases = c.releases
	s.FallbackAllocations = c.fallbackAllocations
	s.FallbackReleases = c.fallbackReleases
	s.ChunksCreated = c.chunksCreated
	s.ChunksEvicted = c.chunksEvicted
	s.ChunkFailures = c.chunkFailures
	s.Escalations = c.escalations
	s.RejectedReleases = c.rejectedReleases
}
