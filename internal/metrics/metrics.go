package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pethealth"

// Collector owns a private registry so several collectors can coexist in one process.
// All methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	CacheLookups       *prometheus.CounterVec
	CacheWriteFailures *prometheus.CounterVec

	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration prometheus.Histogram

	AnalysisJobs     *prometheus.CounterVec
	AnalysisQueueLen prometheus.Gauge

	RealtimeEvents *prometheus.CounterVec

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache reads by tier (list, preview) and result (hit, miss, expired, corrupt).",
		}, []string{"tier", "result"}),

		CacheWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "write_failures_total",
			Help:      "Cache writes swallowed after a storage or serialization error.",
		}, []string{"tier"}),

		ExtractionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "runs_total",
			Help:      "Report extractions by outcome.",
		}, []string{"outcome"}),

		ExtractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "duration_seconds",
			Help:      "OCR plus parsing latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		AnalysisJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "jobs_total",
			Help:      "AI analysis jobs by outcome.",
		}, []string{"outcome"}),

		AnalysisQueueLen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "queue_length",
			Help:      "Jobs waiting in the analysis queue.",
		}),

		RealtimeEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Change-feed events applied to the cache by kind.",
		}, []string{"kind"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CacheLookup(tier, result string) {
	if c == nil {
		return
	}
	c.CacheLookups.WithLabelValues(tier, result).Inc()
}

func (c *Collector) CacheWriteFailed(tier string) {
	if c == nil {
		return
	}
	c.CacheWriteFailures.WithLabelValues(tier).Inc()
}

func (c *Collector) ObserveExtraction(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.ExtractionsTotal.WithLabelValues(outcome).Inc()
	c.ExtractionDuration.Observe(d.Seconds())
}

func (c *Collector) AnalysisJob(outcome string) {
	if c == nil {
		return
	}
	c.AnalysisJobs.WithLabelValues(outcome).Inc()
}

func (c *Collector) SetQueueLength(n int) {
	if c == nil {
		return
	}
	c.AnalysisQueueLen.Set(float64(n))
}

func (c *Collector) RealtimeEvent(kind string) {
	if c == nil {
		return
	}
	c.RealtimeEvents.WithLabelValues(kind).Inc()
}

func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
