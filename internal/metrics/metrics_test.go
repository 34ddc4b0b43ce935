package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
)

func TestRefreshMetrics_RecordOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewRefreshMetrics(registry)
	require.NoError(t, err)

	m.RecordStage("CA", analysis.StageJoining, 20*time.Millisecond)
	m.RecordOutcome(analysis.RegionOutcome{
		Region:         "CA",
		Mode:           analysis.ModeIncremental,
		Stage:          analysis.StageDone,
		RowsUpserted:   12,
		RowsEvicted:    3,
		DegradedTrails: 1,
	})
	m.RecordOutcome(analysis.RegionOutcome{
		Region: "OR",
		Mode:   analysis.ModeIncremental,
		Stage:  analysis.StageFailed,
		Err:    errors.New("boom"),
	})

	assert.Equal(t, 12.0, testutil.ToFloat64(m.rowsUpserted.WithLabelValues("CA")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rowsEvicted.WithLabelValues("CA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.regionRuns.WithLabelValues("OR", "incremental", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.regionRuns.WithLabelValues("CA", "incremental", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
	assert.Positive(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("CA", "incremental")))
}

func TestNewRefreshMetrics_DoubleRegistrationFails(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := NewRefreshMetrics(registry)
	require.NoError(t, err)

	_, err = NewRefreshMetrics(registry)
	assert.Error(t, err)
}
