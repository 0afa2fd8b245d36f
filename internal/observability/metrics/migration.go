// Package metrics provides migration metrics for observability.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values for migration_records_total.
const (
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// MigrationMetrics contains Prometheus metrics for migration runs.
type MigrationMetrics struct {
	registry *prometheus.Registry

	recordsTotal *prometheus.CounterVec
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastRunTime  prometheus.Gauge

	collectors []prometheus.Collector
}

// NewMigrationMetrics creates and registers new migration metrics.
func NewMigrationMetrics(registry *prometheus.Registry) (*MigrationMetrics, error) {
	m := &MigrationMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MigrationMetrics) initMetrics() {
	m.recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_records_total",
			Help: "Total number of legacy records processed, by entity and outcome",
		},
		[]string{"entity", "outcome"},
	)

	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "migration_runs_total",
			Help: "Total number of migration runs, by final status",
		},
		[]string{"status"},
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "migration_run_duration_seconds",
			Help:    "Wall-clock duration of migration runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
		},
	)

	m.lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "migration_last_run_timestamp_seconds",
			Help: "Unix timestamp of the most recent migration run",
		},
	)

	m.collectors = []prometheus.Collector{
		m.recordsTotal,
		m.runsTotal,
		m.runDuration,
		m.lastRunTime,
	}
}

// Describe implements the Collector interface.
func (m *MigrationMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface.
func (m *MigrationMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordEntity records the per-record outcomes of one entity sweep.
func (m *MigrationMetrics) RecordEntity(entity string, migrated, skipped, failed int) {
	m.recordsTotal.WithLabelValues(entity, OutcomeMigrated).Add(float64(migrated))
	m.recordsTotal.WithLabelValues(entity, OutcomeSkipped).Add(float64(skipped))
	m.recordsTotal.WithLabelValues(entity, OutcomeFailed).Add(float64(failed))
}

// RecordRun records the completion of one run.
func (m *MigrationMetrics) RecordRun(status string, duration time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastRunTime.SetToCurrentTime()
}
