// Package metrics provides publishers for alerts, summaries and ad-hoc
// metrics, plus the small latency helpers the monitor builds on.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// DefaultLatencySamples is the number of request durations the monitor averages over.
const DefaultLatencySamples = 100

// LatencyWindow keeps the most recent N durations in a circular buffer.
type LatencyWindow struct {
	mu     sync.RWMutex
	buffer []time.Duration
	index  int
	count  int
}

// NewLatencyWindow creates a window holding up to size samples.
// A non-positive size falls back to DefaultLatencySamples.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = DefaultLatencySamples
	}
	return &LatencyWindow{buffer: make([]time.Duration, size)}
}

// Add records a sample, overwriting the oldest once the window is full.
// This is O(1) time complexity with no memory allocations.
func (w *LatencyWindow) Add(latency time.Duration) {
	w.mu.Lock()
	w.buffer[w.index] = latency
	w.index = (w.index + 1) % len(w.buffer)
	if w.count < len(w.buffer) {
		w.count++
	}
	w.mu.Unlock()
}

// Len returns the number of samples currently held.
func (w *LatencyWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Samples returns the held samples ordered oldest first.
func (w *LatencyWindow) Samples() []time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]time.Duration, w.count)
	if w.count == 0 {
		return out
	}
	if w.count < len(w.buffer) {
		// Buffer not full yet - data starts at 0
		copy(out, w.buffer[:w.count])
		return out
	}
	// Buffer is full - oldest data starts at index
	firstPart := len(w.buffer) - w.index
	copy(out[:firstPart], w.buffer[w.index:])
	copy(out[firstPart:], w.buffer[:w.index])
	return out
}

// Average returns the mean of the held samples, or 0 when empty.
func (w *LatencyWindow) Average() time.Duration {
	return avgDuration(w.Samples())
}

// Percentile returns the p-th percentile (0-100) of the held samples.
func (w *LatencyWindow) Percentile(p int) time.Duration {
	return percentile(w.Samples(), p)
}

// Reset drops every sample.
func (w *LatencyWindow) Reset() {
	w.mu.Lock()
	w.index = 0
	w.count = 0
	w.mu.Unlock()
}

func avgDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range durations {
		total += d
	}
	return total / time.Duration(len(durations))
}

func percentile(durations []time.Duration, p int) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	idx := (len(sorted) - 1) * p / 100
	return sorted[idx]
}
