// Package metrics keeps in-process latency percentiles and counters for the
// HTTP layer.
package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// LatencyTracker keeps the most recent samples in a ring buffer.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []int64 // microseconds
	next    int
	full    bool
	count   int64
}

// NewLatencyTracker creates a tracker holding windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{samples: make([]int64, windowSize)}
}

// Record records a latency measurement.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.samples[lt.next] = d.Microseconds()
	lt.next++
	lt.count++
	if lt.next == len(lt.samples) {
		lt.next = 0
		lt.full = true
	}
}

// Stats returns latency statistics over the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	n := lt.next
	if lt.full {
		n = len(lt.samples)
	}
	window := slices.Clone(lt.samples[:n])
	count := lt.count
	lt.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}
	slices.Sort(window)

	var sum int64
	for _, v := range window {
		sum += v
	}
	at := func(p float64) time.Duration {
		return time.Duration(window[int(float64(n-1)*p)]) * time.Microsecond
	}

	return LatencyStats{
		Count:   count,
		Min:     time.Duration(window[0]) * time.Microsecond,
		Max:     time.Duration(window[n-1]) * time.Microsecond,
		Avg:     time.Duration(sum/int64(n)) * time.Microsecond,
		P50:     at(0.50),
		P95:     at(0.95),
		P99:     at(0.99),
		Samples: n,
	}
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Count   int64         `json:"count"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	P99     time.Duration `json:"p99"`
	Samples int           `json:"samples"`
}

// ToMap renders the stats in milliseconds.
func (s LatencyStats) ToMap() map[string]any {
	return map[string]any{
		"count":       s.Count,
		"min_ms":      float64(s.Min.Microseconds()) / 1000,
		"max_ms":      float64(s.Max.Microseconds()) / 1000,
		"avg_ms":      float64(s.Avg.Microseconds()) / 1000,
		"p50_ms":      float64(s.P50.Microseconds()) / 1000,
		"p95_ms":      float64(s.P95.Microseconds()) / 1000,
		"p99_ms":      float64(s.P99.Microseconds()) / 1000,
		"sample_size": s.Samples,
	}
}

// Registry holds per-route latency trackers and named counters.
type Registry struct {
	window   int
	trackers sync.Map // string -> *LatencyTracker
	counters sync.Map // string -> *atomic.Uint64
}

// NewRegistry creates a registry whose trackers keep windowSize samples.
func NewRegistry(windowSize int) *Registry {
	return &Registry{window: windowSize}
}

func (r *Registry) Record(route string, d time.Duration) {
	t, ok := r.trackers.Load(route)
	if !ok {
		t, _ = r.trackers.LoadOrStore(route, NewLatencyTracker(r.window))
	}
	t.(*LatencyTracker).Record(d)
}

// Add increases the named counter by n.
func (r *Registry) Add(name string, n uint64) {
	c, ok := r.counters.Load(name)
	if !ok {
		c, _ = r.counters.LoadOrStore(name, new(atomic.Uint64))
	}
	c.(*atomic.Uint64).Add(n)
}

// Latencies returns the stats of every route.
func (r *Registry) Latencies() map[string]LatencyStats {
	out := map[string]LatencyStats{}
	r.trackers.Range(func(k, v any) bool {
		out[k.(string)] = v.(*LatencyTracker).Stats()
		return true
	})
	return out
}

// Counters returns a copy of every counter.
func (r *Registry) Counters() map[string]uint64 {
	out := map[string]uint64{}
	r.counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Uint64).Load()
		return true
	})
	return out
}
