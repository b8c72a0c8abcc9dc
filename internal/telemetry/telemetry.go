// Package telemetry provides OpenTelemetry instrumentation for the movies service.
// It exports Prometheus metrics and provides tracing capabilities.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "movies-app"

// Metrics holds all service Prometheus metrics.
type Metrics struct {
	// Fetch job metrics
	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsCancelled prometheus.Counter
	JobsFailed    prometheus.Counter
	ActiveJobs    prometheus.Gauge
	JobDuration   prometheus.Histogram

	// Catalog metrics
	MoviesInserted   prometheus.Counter
	MoviesDuplicated prometheus.Counter
	CatalogRequests  *prometheus.CounterVec
	CatalogDuration  *prometheus.HistogramVec

	// HTTP cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// Provider wraps telemetry providers.
type Provider struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// NewProvider initializes telemetry with Prometheus metrics.
func NewProvider() *Provider {
	return &Provider{
		Tracer:  otel.Tracer(serviceName),
		Metrics: initMetrics(),
	}
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

func initMetrics() *Metrics {
	m := &Metrics{}
	initJobMetrics(m)
	initCatalogMetrics(m)
	initCacheMetrics(m)
	return m
}

func initJobMetrics(m *Metrics) {
	m.JobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_fetch_jobs_started_total",
		Help: "Total fetch jobs started",
	})

	m.JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_fetch_jobs_completed_total",
		Help: "Total fetch jobs that ran to completion",
	})

	m.JobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_fetch_jobs_cancelled_total",
		Help: "Total fetch jobs cancelled before completion",
	})

	m.JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_fetch_jobs_failed_total",
		Help: "Total fetch jobs that failed before producing results",
	})

	m.ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "movies_fetch_jobs_active",
		Help: "Currently running fetch jobs",
	})

	m.JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "movies_fetch_job_duration_seconds",
		Help:    "End-to-end duration of a fetch job",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
}

func initCatalogMetrics(m *Metrics) {
	m.MoviesInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_catalog_inserted_total",
		Help: "Total new movies stored in the catalog",
	})

	m.MoviesDuplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "movies_catalog_duplicates_total",
		Help: "Total movies skipped because the IMDb id already existed",
	})

	m.CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movies_omdb_requests_total",
		Help: "Total upstream catalog API requests by operation and outcome",
	}, []string{"operation", "outcome"})

	m.CatalogDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "movies_omdb_request_duration_seconds",
		Help:    "Upstream catalog API request latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation"})
}

func initCacheMetrics(m *Metrics) {
	m.CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movies_cache_hits_total",
		Help: "Total read-side cache hits by endpoint",
	}, []string{"endpoint"})

	m.CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "movies_cache_misses_total",
		Help: "Total read-side cache misses by endpoint",
	}, []string{"endpoint"})
}

// RecordJobStart records a fetch job start.
func (p *Provider) RecordJobStart() {
	p.Metrics.JobsStarted.Inc()
	p.Metrics.ActiveJobs.Inc()
}

// RecordJobEnd records a finished job with its outcome and duration.
func (p *Provider) RecordJobEnd(outcome string, duration time.Duration) {
	p.Metrics.ActiveJobs.Dec()
	p.Metrics.JobDuration.Observe(duration.Seconds())

	switch outcome {
	case "completed":
		p.Metrics.JobsCompleted.Inc()
	case "cancelled":
		p.Metrics.JobsCancelled.Inc()
	case "failed":
		p.Metrics.JobsFailed.Inc()
	}
}

// RecordMovieStored records the outcome of resolving one discovered movie.
func (p *Provider) RecordMovieStored(inserted bool) {
	if inserted {
		p.Metrics.MoviesInserted.Inc()
		return
	}
	p.Metrics.MoviesDuplicated.Inc()
}

// RecordCatalogRequest records one upstream API call.
func (p *Provider) RecordCatalogRequest(operation string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.Metrics.CatalogRequests.WithLabelValues(operation, outcome).Inc()
	p.Metrics.CatalogDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCacheLookup records a read-side cache hit or miss.
func (p *Provider) RecordCacheLookup(endpoint string, hit bool) {
	if hit {
		p.Metrics.CacheHits.WithLabelValues(endpoint).Inc()
		return
	}
	p.Metrics.CacheMisses.WithLabelValues(endpoint).Inc()
}

// StartSpan starts a new trace span.
// The caller is responsible for ending the span with span.End().
//
//nolint:spancheck // Caller is responsible for ending the span
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := p.Tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, span
}
