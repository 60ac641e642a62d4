// Package metrics collects crawl counters in a Prometheus registry.
//
// All methods are safe to call on a nil *Collector, so components can be
// built without metrics in tests.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "papernet"

// Fetch outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeBreakerOpen = "breaker_open"
)

// Cache lookup results.
const (
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheCoalesced = "coalesced"
)

// Collector holds the metrics of one crawl run.
type Collector struct {
	registry *prometheus.Registry

	FetchAttempts  *prometheus.CounterVec
	FetchRetries   *prometheus.CounterVec
	FetchExhausted *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	InFlight       prometheus.Gauge

	CacheRequests *prometheus.CounterVec

	Batches    prometheus.Counter
	GraphNodes prometheus.Gauge
	GraphEdges prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		FetchAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_attempts_total",
				Help:      "Remote fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		FetchRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_retries_total",
				Help:      "Remote fetch retries after a failed attempt",
			},
			[]string{"source"},
		),
		FetchExhausted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "fetch_exhausted_total",
				Help:      "Fetches that gave up after the retry budget",
			},
			[]string{"source"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of single remote fetch attempts",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "fetch_in_flight",
			Help:      "Remote calls currently holding a limiter slot",
		}),
		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_requests_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crawl_batches_total",
			Help:      "Frontier batches processed",
		}),
		GraphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the graph",
		}),
		GraphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "graph_edges",
			Help:      "Edges in the graph",
		}),
	}

	c.registry.MustRegister(
		c.FetchAttempts, c.FetchRetries, c.FetchExhausted, c.FetchDuration, c.InFlight,
		c.CacheRequests, c.Batches, c.GraphNodes, c.GraphEdges,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveAttempt records one remote attempt.
func (c *Collector) ObserveAttempt(source, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.FetchAttempts.WithLabelValues(source, outcome).Inc()
	c.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
}

// IncRetry records a retry.
func (c *Collector) IncRetry(source string) {
	if c == nil {
		return
	}
	c.FetchRetries.WithLabelValues(source).Inc()
}

// IncExhausted records a fetch that used up its retry budget.
func (c *Collector) IncExhausted(source string) {
	if c == nil {
		return
	}
	c.FetchExhausted.WithLabelValues(source).Inc()
}

// AddInFlight adjusts the in-flight gauge.
func (c *Collector) AddInFlight(delta float64) {
	if c == nil {
		return
	}
	c.InFlight.Add(delta)
}

// IncCache records a cache lookup.
func (c *Collector) IncCache(cache, result string) {
	if c == nil {
		return
	}
	c.CacheRequests.WithLabelValues(cache, result).Inc()
}

// IncBatch records a processed frontier batch.
func (c *Collector) IncBatch() {
	if c == nil {
		return
	}
	c.Batches.Inc()
}

// SetGraphSize records the current graph size.
func (c *Collector) SetGraphSize(nodes, edges int) {
	if c == nil {
		return
	}
	c.GraphNodes.Set(float64(nodes))
	c.GraphEdges.Set(float64(edges))
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter's textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
