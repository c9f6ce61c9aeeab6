// Package stats aggregates per-operation counters and computes latency
// percentiles for a finished or in-progress run, and exposes the same
// counters as Prometheus metrics.
package stats

import (
	"sync"
	"time"

	mstats "github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tigrawap/objload/internal/request"
)

// Summary is a point-in-time snapshot of one operation's counters.
type Summary struct {
	Operation      string
	Count          int64
	StatusClasses  map[string]int64 // "2xx", "3xx", "4xx", "5xx", "error", "unknown"
	LatencyP50Ms   float64
	LatencyP95Ms   float64
	LatencyP99Ms   float64
	LatencyMeanMs  float64
}

type opState struct {
	count         int64
	statusClasses map[string]int64
	latenciesMs   []float64
}

// Collector accumulates per-operation counters from the event bus and
// exposes Prometheus counters/histograms alongside computed percentiles.
type Collector struct {
	mu    sync.Mutex
	ops   map[request.Operation]*opState
	registry *prometheus.Registry

	opCounters  map[request.Operation]*prometheus.CounterVec
	opDurations map[request.Operation]prometheus.Histogram
}

// NewCollector constructs a Collector registered against a fresh
// Prometheus registry (so tests and concurrent runs don't collide on the
// global default registry).
func NewCollector(operations []request.Operation) *Collector {
	c := &Collector{
		ops:         make(map[request.Operation]*opState),
		registry:    prometheus.NewRegistry(),
		opCounters:  make(map[request.Operation]*prometheus.CounterVec),
		opDurations: make(map[request.Operation]prometheus.Histogram),
	}
	for _, op := range operations {
		c.ops[op] = &opState{statusClasses: make(map[string]int64)}

		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "objload_" + string(op) + "_ops",
			Help: "Number of " + string(op) + " operations",
		}, []string{"status_class"})
		c.registry.MustRegister(counter)
		c.opCounters[op] = counter

		histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "objload_" + string(op) + "_duration_nanoseconds",
			Help:    "Duration of " + string(op) + " operations in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(64, 2, 25),
		})
		c.registry.MustRegister(histogram)
		c.opDurations[op] = histogram
	}
	return c
}

// Registry exposes the Prometheus registry for wiring into an HTTP
// /metrics handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe records one completed request/response pair.
func (c *Collector) Observe(req *request.Request, resp *request.Response, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.ops[req.Operation]
	if !ok {
		st = &opState{statusClasses: make(map[string]int64)}
		c.ops[req.Operation] = st
	}
	st.count++
	class := statusClass(resp.StatusCode)
	st.statusClasses[class]++
	st.latenciesMs = append(st.latenciesMs, float64(latency.Microseconds())/1000.0)

	if counter, ok := c.opCounters[req.Operation]; ok {
		counter.WithLabelValues(class).Inc()
	}
	if histogram, ok := c.opDurations[req.Operation]; ok {
		histogram.Observe(float64(latency.Nanoseconds()))
	}
}

// ObserveError records a transport-level failure (no response object).
func (c *Collector) ObserveError(op request.Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.ops[op]
	if !ok {
		st = &opState{statusClasses: make(map[string]int64)}
		c.ops[op] = st
	}
	st.count++
	st.statusClasses["error"]++
	if counter, ok := c.opCounters[op]; ok {
		counter.WithLabelValues("error").Inc()
	}
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Snapshot computes a Summary per operation from the counters observed
// so far.
func (c *Collector) Snapshot() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summaries := make([]Summary, 0, len(c.ops))
	for op, st := range c.ops {
		s := Summary{
			Operation:     string(op),
			Count:         st.count,
			StatusClasses: copyCounts(st.statusClasses),
		}
		if len(st.latenciesMs) > 0 {
			s.LatencyP50Ms, _ = mstats.Percentile(st.latenciesMs, 50)
			s.LatencyP95Ms, _ = mstats.Percentile(st.latenciesMs, 95)
			s.LatencyP99Ms, _ = mstats.Percentile(st.latenciesMs, 99)
			s.LatencyMeanMs, _ = mstats.Mean(st.latenciesMs)
		}
		summaries = append(summaries, s)
	}
	return summaries
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
