package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики выполнения workflow.
//
// Все методы безопасны для nil: движок без метрик просто ничего не пишет.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepDuration *prometheus.HistogramVec
	activeRuns   prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// nil reg означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowgraph_runs_total",
			Help: "Total number of finished workflow runs by status",
		}, []string{"status"}),
		runDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_run_duration_seconds",
			Help:    "Workflow run duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowgraph_step_duration_seconds",
			Help:    "Step handler duration by kind and result",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "result"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Name: "flowgraph_active_runs",
			Help: "Number of runs currently in progress",
		}),
	}
}

// RunStarted увеличивает число активных runs.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished фиксирует завершение run.
func (m *Metrics) RunFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// StepFinished фиксирует выполнение шага.
func (m *Metrics) StepFinished(kind string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.stepDuration.WithLabelValues(kind, result).Observe(d.Seconds())
}
