package bench

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	MemoryRSS      uint64 `json:"memory_rss"`
	MemoryVMS      uint64 `json:"memory_vms"`
	HeapAlloc      uint64 `json:"heap_alloc"`
	GoroutineCount int    `json:"goroutines"`
	ThreadCount    int32  `json:"threads"`
}

// ResourceMonitor samples the resource usage of the current process.
type ResourceMonitor struct {
	process *process.Process

	mu      sync.Mutex
	peakRSS uint64
	samples int
}

// NewResourceMonitor creates a resource monitor
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ResourceMonitor{process: proc}, nil
}

// Sample returns current resource usage and updates the peak RSS.
func (rm *ResourceMonitor) Sample() (ResourceUsage, error) {
	var usage ResourceUsage

	memInfo, err := rm.process.MemoryInfo()
	if err != nil {
		return usage, err
	}
	usage.MemoryRSS = memInfo.RSS
	usage.MemoryVMS = memInfo.VMS

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	usage.HeapAlloc = memStats.HeapAlloc

	usage.GoroutineCount = runtime.NumGoroutine()
	usage.ThreadCount, _ = rm.process.NumThreads()

	rm.mu.Lock()
	rm.samples++
	if usage.MemoryRSS > rm.peakRSS {
		rm.peakRSS = usage.MemoryRSS
	}
	rm.mu.Unlock()
	return usage, nil
}

// Run samples every interval until ctx is done.
func (rm *ResourceMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = rm.Sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = rm.Sample()
		}
	}
}

// PeakRSS returns the largest RSS seen so far.
func (rm *ResourceMonitor) PeakRSS() uint64 {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.peakRSS
}

// Samples returns the number of successful samples.
func (rm *ResourceMonitor) Samples() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.samples
}
