package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
)

// RefreshMetrics exposes the refresh pipeline to Prometheus
type RefreshMetrics struct {
	stageDuration  *prometheus.HistogramVec
	regionRuns     *prometheus.CounterVec
	rowsUpserted   *prometheus.CounterVec
	rowsEvicted    *prometheus.CounterVec
	degradedTrails *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec

	collectors []prometheus.Collector
}

var _ analysis.Recorder = (*RefreshMetrics)(nil)

// NewRefreshMetrics creates refresh metrics and registers them
func NewRefreshMetrics(registry prometheus.Registerer) (*RefreshMetrics, error) {
	m := &RefreshMetrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trailbloom_refresh_stage_duration_seconds",
			Help:    "Time spent in each refresh stage",
			Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
		}, []string{"region", "stage"}),
		regionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trailbloom_refresh_region_runs_total",
			Help: "Region refreshes by mode and result",
		}, []string{"region", "mode", "result"}),
		rowsUpserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trailbloom_refresh_rows_upserted_total",
			Help: "Trail summary rows written",
		}, []string{"region"}),
		rowsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trailbloom_refresh_rows_evicted_total",
			Help: "Observations deleted after leaving the window",
		}, []string{"region"}),
		degradedTrails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trailbloom_refresh_degraded_trails_total",
			Help: "Trails written without matches because their geometry could not be buffered",
		}, []string{"region"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "trailbloom_refresh_last_success_timestamp_seconds",
			Help: "Unix time of the last successful refresh per region",
		}, []string{"region", "mode"}),
	}
	m.collectors = []prometheus.Collector{
		m.stageDuration, m.regionRuns, m.rowsUpserted, m.rowsEvicted, m.degradedTrails, m.lastSuccess,
	}

	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *RefreshMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector
func (m *RefreshMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordStage observes one completed stage
func (m *RefreshMetrics) RecordStage(region string, stage analysis.Stage, elapsed time.Duration) {
	m.stageDuration.WithLabelValues(region, stage.String()).Observe(elapsed.Seconds())
}

// RecordOutcome counts a finished region
func (m *RefreshMetrics) RecordOutcome(out analysis.RegionOutcome) {
	result := "success"
	if !out.OK() {
		result = "failure"
	}
	m.regionRuns.WithLabelValues(out.Region, string(out.Mode), result).Inc()
	m.rowsUpserted.WithLabelValues(out.Region).Add(float64(out.RowsUpserted))
	m.rowsEvicted.WithLabelValues(out.Region).Add(float64(out.RowsEvicted))
	m.degradedTrails.WithLabelValues(out.Region).Add(float64(out.DegradedTrails))
	if out.OK() {
		m.lastSuccess.WithLabelValues(out.Region, string(out.Mode)).SetToCurrentTime()
	}
}
