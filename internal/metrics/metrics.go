package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AnalysesTotal counts completed analyses by type (text|image) and verdict.
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsguard_analyses_total",
		Help: "Completed fact-check analyses by type and verdict.",
	}, []string{"type", "verdict"})

	// SearchFailures counts search branches that degraded to empty results.
	SearchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsguard_search_failures_total",
		Help: "Search queries that failed and contributed no results.",
	})

	// CompletionFailures counts model calls that degraded to a fallback result.
	CompletionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsguard_completion_failures_total",
		Help: "Model completions that failed or returned empty output.",
	})

	// AnalysisDuration observes end-to-end orchestration time per analysis type.
	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "newsguard_analysis_duration_seconds",
		Help:    "End-to-end fact-check duration by analysis type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
