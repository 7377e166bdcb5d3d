// Package metrics provides the Prometheus collectors exported by the
// community analyzer service.
package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"

	"github.com/zombar/communityanalyzer/internal/models"
)

// Analysis outcome labels
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// BusinessMetrics tracks analysis pipeline activity
type BusinessMetrics struct {
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	PostsScored      prometheus.Counter
	ISCScore         prometheus.Histogram
	PatternMatches   *prometheus.CounterVec
	QueueWait        prometheus.Histogram
	DraftValidations *prometheus.CounterVec
}

// NewBusinessMetrics registers the business collectors on reg. A nil
// registerer uses the default one.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &BusinessMetrics{
		AnalysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Total subreddit analyses by outcome",
		}, []string{"status"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Time to analyze one subreddit",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PostsScored: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_scored_total",
			Help:      "Total posts scored",
		}),
		ISCScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "isc_score",
			Help:      "Distribution of computed ISC scores",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}),
		PatternMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forbidden_pattern_posts_total",
			Help:      "Posts matching a forbidden pattern category",
		}, []string{"category"}),
		QueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time an analysis task waited in the queue",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		DraftValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_validations_total",
			Help:      "Draft validations by result",
		}, []string{"result"}),
	}
}

// RecordAnalysis counts one analysis outcome and its duration
func (m *BusinessMetrics) RecordAnalysis(ctx context.Context, status string, d time.Duration) {
	m.AnalysesTotal.WithLabelValues(status).Inc()
	ObserveWithExemplar(ctx, m.AnalysisDuration, d.Seconds())
}

// RecordProfile records the scored sample, ISC and pattern counts of a
// finished profile
func (m *BusinessMetrics) RecordProfile(ctx context.Context, p *models.CommunityProfile) {
	if p == nil {
		return
	}
	m.PostsScored.Add(float64(p.SampleSize))
	ObserveWithExemplar(ctx, m.ISCScore, p.ISCScore)
	for category, n := range p.ForbiddenPatterns.ByCategory {
		if n > 0 {
			m.PatternMatches.WithLabelValues(category).Add(float64(n))
		}
	}
}

// RecordValidation counts a draft validation result
func (m *BusinessMetrics) RecordValidation(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	m.DraftValidations.WithLabelValues(result).Inc()
}

// ObserveWithExemplar observes v, attaching the trace ID of ctx as an
// exemplar when the observer supports it and a span is active
func ObserveWithExemplar(ctx context.Context, obs prometheus.Observer, v float64) {
	sc := trace.SpanContextFromContext(ctx)
	if eo, ok := obs.(prometheus.ExemplarObserver); ok && sc.IsValid() {
		eo.ObserveWithExemplar(v, prometheus.Labels{"trace_id": sc.TraceID().String()})
		return
	}
	obs.Observe(v)
}

// DatabaseMetrics exposes sql.DB pool statistics
type DatabaseMetrics struct {
	OpenConnections prometheus.Gauge
	InUse           prometheus.Gauge
	Idle            prometheus.Gauge
	WaitCount       prometheus.Gauge
	WaitDuration    prometheus.Gauge
}

// NewDatabaseMetrics registers the pool gauges on reg
func NewDatabaseMetrics(namespace string, reg prometheus.Registerer) *DatabaseMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		})
	}

	return &DatabaseMetrics{
		OpenConnections: gauge("open_connections", "Established connections"),
		InUse:           gauge("in_use_connections", "Connections currently in use"),
		Idle:            gauge("idle_connections", "Idle connections"),
		WaitCount:       gauge("wait_count", "Total connections waited for"),
		WaitDuration:    gauge("wait_duration_seconds", "Total time blocked waiting for a connection"),
	}
}

// UpdateDBStats copies the current pool statistics into the gauges
func (m *DatabaseMetrics) UpdateDBStats(db *sql.DB) {
	if db == nil {
		return
	}
	stats := db.Stats()
	m.OpenConnections.Set(float64(stats.OpenConnections))
	m.InUse.Set(float64(stats.InUse))
	m.Idle.Set(float64(stats.Idle))
	m.WaitCount.Set(float64(stats.WaitCount))
	m.WaitDuration.Set(stats.WaitDuration.Seconds())
}
