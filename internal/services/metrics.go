package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"healthbot/internal/models"
)

// Metrics holds all custom Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Message metrics
	Messages        *prometheus.CounterVec
	PipelineLatency prometheus.Histogram

	// Stage metrics
	StageFallbacks *prometheus.CounterVec
	StageLatency   *prometheus.HistogramVec

	// Research metrics
	ResearchLookups *prometheus.CounterVec
}

// InitMetrics registers the metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Incoming messages by channel
		Messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthbot_messages_total",
			Help: "Total number of user messages handled, by channel",
		}, []string{"channel"}),

		// End-to-end pipeline latency
		PipelineLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthbot_pipeline_duration_seconds",
			Help:    "Time from receiving a message to producing a reply",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for LLM responses
		}),

		// Fallbacks by stage and failure kind
		StageFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthbot_stage_fallbacks_total",
			Help: "Pipeline stages that fell back to their default value",
		}, []string{"stage", "kind"}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "healthbot_stage_duration_seconds",
			Help:    "Latency of individual pipeline stages",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),

		// Research lookups by outcome: ok, cached, failed
		ResearchLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "healthbot_research_lookups_total",
			Help: "Research sub-query lookups by outcome",
		}, []string{"outcome"}),
	}
}

// RecordMessage counts an incoming message
func (m *Metrics) RecordMessage(channel models.Channel) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(string(channel)).Inc()
}

// RecordPipelineLatency records end-to-end latency
func (m *Metrics) RecordPipelineLatency(seconds float64) {
	if m == nil {
		return
	}
	m.PipelineLatency.Observe(seconds)
}

// RecordStage records a stage's latency and, if it fell back, its failure kind
func (m *Metrics) RecordStage(stage string, seconds float64, failure models.FailureKind) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(seconds)
	if failure != models.FailureNone {
		m.StageFallbacks.WithLabelValues(stage, string(failure)).Inc()
	}
}

// RecordResearchLookup records the outcome of a single research lookup
func (m *Metrics) RecordResearchLookup(outcome string) {
	if m == nil {
		return
	}
	m.ResearchLookups.WithLabelValues(outcome).Inc()
}
