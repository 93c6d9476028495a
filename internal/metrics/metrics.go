// Package metrics records what each compute pass did, for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studylog"

const computeSubsystem = "compute"

// PassMetrics holds the counters and gauges updated by compute passes.
// Each instance owns its registry so tests and runs never share state.
type PassMetrics struct {
	registry *prometheus.Registry

	// RowsWritten counts rows persisted per entity.
	RowsWritten *prometheus.CounterVec

	// Unclassified counts visits whose URL had no page type.
	Unclassified *prometheus.CounterVec

	// UnmatchedRatings counts rating events that aligned with no task period.
	UnmatchedRatings prometheus.Counter

	// DroppedVisits counts reconstructed visits outside every task period.
	DroppedVisits prometheus.Counter

	// LatestGeneration is the compute index most recently written per entity.
	LatestGeneration *prometheus.GaugeVec

	// PassDuration measures wall time per pass.
	PassDuration *prometheus.HistogramVec
}

// New builds a PassMetrics with a fresh registry.
func New() *PassMetrics {
	m := &PassMetrics{
		registry: prometheus.NewRegistry(),
		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "rows_written_total",
				Help:      "Rows written by compute passes, by entity.",
			},
			[]string{"entity"},
		),
		Unclassified: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "unclassified_urls_total",
				Help:      "Visits whose URL had no page type, by entity.",
			},
			[]string{"entity"},
		),
		UnmatchedRatings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "unmatched_ratings_total",
				Help:      "Rating events that aligned with no task period.",
			},
		),
		DroppedVisits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "dropped_visits_total",
				Help:      "Reconstructed visits that fell outside every task period.",
			},
		),
		LatestGeneration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "latest_generation",
				Help:      "Compute index most recently written, by entity.",
			},
			[]string{"entity"},
		),
		PassDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: computeSubsystem,
				Name:      "pass_duration_seconds",
				Help:      "Wall time of compute passes, by entity.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"entity"},
		),
	}

	m.registry.MustRegister(
		m.RowsWritten,
		m.Unclassified,
		m.UnmatchedRatings,
		m.DroppedVisits,
		m.LatestGeneration,
		m.PassDuration,
	)
	return m
}

// Registry exposes the underlying registry as a Gatherer.
func (m *PassMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePass records the outcome of one completed pass.
func (m *PassMetrics) ObservePass(entity string, generation int64, rows int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(entity).Add(float64(rows))
	m.LatestGeneration.WithLabelValues(entity).Set(float64(generation))
	m.PassDuration.WithLabelValues(entity).Observe(elapsed.Seconds())
}

// AddUnclassified records n visits with no page type.
func (m *PassMetrics) AddUnclassified(entity string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Unclassified.WithLabelValues(entity).Add(float64(n))
}

// AddUnmatchedRatings records n ratings that found no period.
func (m *PassMetrics) AddUnmatchedRatings(n int) {
	if m == nil || n == 0 {
		return
	}
	m.UnmatchedRatings.Add(float64(n))
}

// AddDroppedVisits records n visits outside every period.
func (m *PassMetrics) AddDroppedVisits(n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedVisits.Add(float64(n))
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The write is atomic (temp file + rename), as the textfile collector expects.
func (m *PassMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
