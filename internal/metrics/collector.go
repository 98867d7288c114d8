// internal/metrics/collector.go
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
)

// Collector owns the service's Prometheus metrics on a private registry, so
// several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	readErrors       prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	persistErrors    prometheus.Counter
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	rateLimited      prometheus.Counter
	ingestedFiles    *prometheus.CounterVec
}

// NewCollector creates and registers all metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutline_analyses_total",
				Help: "Total number of analyses by outcome",
			},
			[]string{"outcome"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scoutline_analysis_duration_seconds",
				Help:    "Time spent sampling, deriving and generating one analysis",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		readErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoutline_sample_read_errors_total",
				Help: "Prefix reads that failed and fell back to an empty prefix",
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoutline_cache_hits_total",
				Help: "Total number of result cache hits",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoutline_cache_misses_total",
				Help: "Total number of result cache misses",
			},
		),
		persistErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoutline_persist_errors_total",
				Help: "Results that could not be written to the store",
			},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutline_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scoutline_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimited: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scoutline_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		ingestedFiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutline_ingested_files_total",
				Help: "Files picked up from the watch folder",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		c.analysesTotal,
		c.analysisDuration,
		c.readErrors,
		c.cacheHits,
		c.cacheMisses,
		c.persistErrors,
		c.requestsTotal,
		c.requestDuration,
		c.rateLimited,
		c.ingestedFiles,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAnalysis records one finished analysis.
func (c *Collector) RecordAnalysis(outcome string, duration time.Duration) {
	c.analysesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeCached {
		c.analysisDuration.Observe(duration.Seconds())
	}
}

// RecordReadError records a prefix read that fell back to an empty prefix.
func (c *Collector) RecordReadError() {
	c.readErrors.Inc()
}

// RecordCacheHit records a cache hit
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss records a cache miss
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// RecordPersistError records a failed store write.
func (c *Collector) RecordPersistError() {
	c.persistErrors.Inc()
}

// RecordRequest records metrics for a request
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRateLimited records a rejected request.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Inc()
}

// RecordIngest records a watch-folder file by outcome.
func (c *Collector) RecordIngest(outcome string) {
	c.ingestedFiles.WithLabelValues(outcome).Inc()
}
