// Package metrics exposes Prometheus metrics for batch runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "videotext"

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	BatchesTotal    *prometheus.CounterVec
	BatchDuration   prometheus.Histogram
	ItemsTotal      *prometheus.CounterVec
	StageFailures   *prometheus.CounterVec
	PollRoundsTotal *prometheus.CounterVec
	WritesTotal     *prometheus.CounterVec
	PointsBalance   prometheus.Gauge
}

// New creates metrics registered on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batch runs by result",
		}, []string{"result"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   []float64{1, 5, 15, 30, 60, 90, 120, 180, 300},
		}),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items processed by outcome",
		}, []string{"outcome"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Item failures by pipeline stage and error kind",
		}, []string{"stage", "kind"}),
		PollRoundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_rounds_total",
			Help:      "Poll rounds run by stage",
		}, []string{"stage"}),
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_writes_total",
			Help:      "Record text writes by mode and result",
		}, []string{"mode", "result"}),
		PointsBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "points_balance",
			Help:      "Last points balance reported by the service",
		}),
	}
	m.registry = reg
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.BatchesTotal,
		m.BatchDuration,
		m.ItemsTotal,
		m.StageFailures,
		m.PollRoundsTotal,
		m.WritesTotal,
		m.PointsBalance,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// StageFailed counts an item failure.
func (m *Metrics) StageFailed(stage, kind string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

// PollRounds counts the rounds a poll stage ran.
func (m *Metrics) PollRounds(stage string, rounds int) {
	if m == nil || rounds <= 0 {
		return
	}
	m.PollRoundsTotal.WithLabelValues(stage).Add(float64(rounds))
}

// Persisted counts record writes.
func (m *Metrics) Persisted(mode string, succeeded, failed int) {
	if m == nil {
		return
	}
	if succeeded > 0 {
		m.WritesTotal.WithLabelValues(mode, "ok").Add(float64(succeeded))
	}
	if failed > 0 {
		m.WritesTotal.WithLabelValues(mode, "error").Add(float64(failed))
	}
}

// Outcomes is the per-outcome item tally of a batch.
type Outcomes struct {
	Completed int
	RawOnly   int
	Skipped   int
	Failed    int
	Empty     int
}

// BatchFinished records a finished batch.
func (m *Metrics) BatchFinished(result string, outcomes Outcomes, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(result).Inc()
	m.BatchDuration.Observe(elapsed.Seconds())
	for outcome, n := range map[string]int{
		"completed": outcomes.Completed,
		"raw_only":  outcomes.RawOnly,
		"skipped":   outcomes.Skipped,
		"failed":    outcomes.Failed,
		"empty":     outcomes.Empty,
	} {
		if n > 0 {
			m.ItemsTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
}

// SetBalance records the latest points balance.
func (m *Metrics) SetBalance(balance float64) {
	if m == nil {
		return
	}
	m.PointsBalance.Set(balance)
}
