// Package observability exposes Prometheus instrumentation for the
// analysis pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline's Prometheus collectors. Register them on a
// dedicated registry in tests to avoid duplicate registration.
type Metrics struct {
	AnalysesTotal    prometheus.Counter
	ThreatsDetected  prometheus.Counter
	AnalysisDuration prometheus.Histogram
	PerceptionErrors *prometheus.CounterVec
	LLMRequests      prometheus.Counter
	LLMCacheHits     prometheus.Counter
	LLMErrors        prometheus.Counter
}

// RecordRequest counts one upstream model request.
func (m *Metrics) RecordRequest() { m.LLMRequests.Inc() }

// RecordCacheHit counts one response served from the LLM cache.
func (m *Metrics) RecordCacheHit() { m.LLMCacheHits.Inc() }

// RecordError counts one model request that failed after retries.
func (m *Metrics) RecordError() { m.LLMErrors.Inc() }

// NewMetrics creates and registers the collectors on reg. A nil reg uses
// the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		AnalysesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "suraksha_analyses_total",
			Help: "Total number of completed analyses.",
		}),
		ThreatsDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "suraksha_threats_detected_total",
			Help: "Analyses that scored HIGH or CRITICAL.",
		}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "suraksha_analysis_duration_seconds",
			Help:    "End-to-end analysis latency.",
			Buckets: prometheus.DefBuckets,
		}),
		PerceptionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "suraksha_perception_errors_total",
			Help: "Perception tasks that degraded to a neutral result.",
		}, []string{"modality"}),
		LLMRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "suraksha_llm_requests_total",
			Help: "Upstream model requests, excluding cache hits.",
		}),
		LLMCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "suraksha_llm_cache_hits_total",
			Help: "Model responses served from the response cache.",
		}),
		LLMErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "suraksha_llm_errors_total",
			Help: "Model requests that failed after retries.",
		}),
	}
}
