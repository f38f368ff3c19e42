package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds the Prometheus collectors of the QA pipeline.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	// runs counts finished runs. Labels: status (verified, failed)
	runs *prometheus.CounterVec
	// stageDuration measures each stage. Labels: stage, status (ok, error)
	stageDuration *prometheus.HistogramVec
	// citations tracks citation counts per run.
	// Labels: kind (emitted, referenced, dangling, unused)
	citations *prometheus.HistogramVec
}

// NewPipelineMetrics registers the pipeline collectors on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citebot",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by final status",
		}, []string{"status"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citebot",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"stage", "status"}),
		citations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citebot",
			Subsystem: "pipeline",
			Name:      "citations",
			Help:      "Citation identifiers per run by kind",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 10, 15, 20},
		}, []string{"kind"}),
	}
}

func (m *PipelineMetrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) RecordStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// RecordCitations records the citation report of one verified run.
func (m *PipelineMetrics) RecordCitations(emitted, referenced, dangling, unused int) {
	if m == nil {
		return
	}
	m.citations.WithLabelValues("emitted").Observe(float64(emitted))
	m.citations.WithLabelValues("referenced").Observe(float64(referenced))
	m.citations.WithLabelValues("dangling").Observe(float64(dangling))
	m.citations.WithLabelValues("unused").Observe(float64(unused))
}
