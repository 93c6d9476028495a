package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePass(t *testing.T) {
	m := New()

	m.ObservePass("task_periods", 3, 12, 250*time.Millisecond)
	m.ObservePass("task_periods", 4, 8, 100*time.Millisecond)

	assert.Equal(t, float64(20), testutil.ToFloat64(m.RowsWritten.WithLabelValues("task_periods")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.LatestGeneration.WithLabelValues("task_periods")))
}

func TestCountersIgnoreZero(t *testing.T) {
	m := New()

	m.AddUnmatchedRatings(0)
	m.AddDroppedVisits(2)
	m.AddUnclassified("navigation_graph", 0)
	m.AddUnclassified("navigation_graph", 5)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.UnmatchedRatings))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.DroppedVisits))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.Unclassified.WithLabelValues("navigation_graph")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *PassMetrics
	assert.NotPanics(t, func() {
		m.ObservePass("location_visits", 1, 1, time.Second)
		m.AddDroppedVisits(1)
		m.AddUnmatchedRatings(1)
		m.AddUnclassified("navigation_ngrams", 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObservePass("location_ratings", 2, 7, time.Second)

	path := filepath.Join(t.TempDir(), "studylog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `studylog_compute_rows_written_total{entity="location_ratings"} 7`)
	assert.Contains(t, string(data), `studylog_compute_latest_generation{entity="location_ratings"} 2`)
}
