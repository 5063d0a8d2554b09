package metrics

import "sync"

// Registry holds named metrics. Lookups create the metric on first use, so
// callers never check for nil. A name may be used once per metric type.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// DefaultRegistry is the process-wide registry harts report to when no
// other registry is configured.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// lookup returns m[name], creating it under the write lock if missing.
func lookup[T any](r *Registry, m map[string]*T, name string) *T {
	r.mu.RLock()
	v, ok := m[name]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok = m[name]; ok {
		return v
	}
	v = new(T)
	m[name] = v
	return v
}

// Counter returns the counter registered under name.
func (r *Registry) Counter(name string) *Counter { return lookup(r, r.counters, name) }

// Gauge returns the gauge registered under name.
func (r *Registry) Gauge(name string) *Gauge { return lookup(r, r.gauges, name) }

// Histogram returns the histogram registered under name.
func (r *Registry) Histogram(name string) *Histogram { return lookup(r, r.histograms, name) }

// Snapshot returns a point-in-time copy of every metric: uint64 for
// counters and gauges, Summary for histograms.
func (r *Registry) Snapshot() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]any, len(r.counters)+len(r.gauges)+len(r.histograms))
	for name, c := range r.counters {
		snap[name] = c.Value()
	}
	for name, g := range r.gauges {
		snap[name] = g.Value()
	}
	for name, h := range r.histograms {
		snap[name] = h.Summary()
	}
	return snap
}
