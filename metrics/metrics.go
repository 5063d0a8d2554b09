// Package metrics provides the counters, gauges and histograms the harvey
// emulator reports about its harts. Counter and Gauge are lock-free atomics;
// Histogram uses a mutex. Every type is usable as its zero value, and a
// Registry renders its contents in the Prometheus text format.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing count, such as retired instructions.
type Counter struct {
	value atomic.Uint64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n uint64) { c.value.Add(n) }

// Value returns the current count.
func (c *Counter) Value() uint64 { return c.value.Load() }

// Gauge holds the latest value of an unsigned quantity such as an address.
type Gauge struct {
	value atomic.Uint64
}

// Set replaces the gauge value.
func (g *Gauge) Set(v uint64) { g.value.Store(v) }

// Value returns the current gauge value.
func (g *Gauge) Value() uint64 { return g.value.Load() }

// Histogram summarises a stream of observations by count, sum and extremes.
type Histogram struct {
	mu  sync.Mutex
	sum Summary
}

// Summary is a point-in-time view of a Histogram.
type Summary struct {
	Count uint64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns the arithmetic mean, or 0 without observations.
func (s Summary) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &h.sum
	if s.Count == 0 || v < s.Min {
		s.Min = v
	}
	if s.Count == 0 || v > s.Max {
		s.Max = v
	}
	s.Count++
	s.Sum += v
}

// Summary returns the observations recorded so far. Min and Max are 0 when
// nothing has been observed.
func (h *Histogram) Summary() Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Timer measures one operation into a Histogram in fractional milliseconds.
type Timer struct {
	start time.Time
	hist  *Histogram
}

// NewTimer starts a timer that records into h when stopped. A nil h only
// measures.
func NewTimer(h *Histogram) *Timer {
	return &Timer{start: time.Now(), hist: h}
}

// Stop records the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	d := time.Since(t.start)
	if t.hist != nil {
		t.hist.Observe(float64(d) / float64(time.Millisecond))
	}
	return d
}
