package monitoring

import (
	"time"

	"postgame-agent/internal/pipeline"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics records stage and run outcomes. It implements
// pipeline.Observer and owns its registry so tests and repeated
// construction never collide on the global one.
type PipelineMetrics struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	stageOutcomes  *prometheus.CounterVec
	runOutcomes    *prometheus.CounterVec
	qualityRetries prometheus.Counter
}

func NewPipelineMetrics() *PipelineMetrics {
	m := &PipelineMetrics{registry: prometheus.NewRegistry()}

	m.stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "script_writer_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"stage"},
	)
	m.stageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "script_writer_stage_completions_total",
			Help: "Pipeline stage completions by outcome",
		},
		[]string{"stage", "outcome"},
	)
	m.runOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "script_writer_runs_total",
			Help: "Pipeline runs by terminal status",
		},
		[]string{"status"},
	)
	m.qualityRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "script_writer_quality_retries_total",
			Help: "Script regenerations triggered by a failed quality check",
		},
	)

	m.registry.MustRegister(m.stageDuration, m.stageOutcomes, m.runOutcomes, m.qualityRetries)
	return m
}

// Registry exposes the metrics for the /metrics endpoint
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PipelineMetrics) StageCompleted(stage pipeline.StageID, duration time.Duration, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(string(stage)).Observe(duration.Seconds())
	m.stageOutcomes.WithLabelValues(string(stage), outcome).Inc()
	if stage == pipeline.StageIncrementRetry {
		m.qualityRetries.Inc()
	}
}

func (m *PipelineMetrics) RunCompleted(status pipeline.Status, _ time.Duration) {
	m.runOutcomes.WithLabelValues(string(status)).Inc()
}
