package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AnalysesTotal counts analysis passes by outcome.
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ringtrace",
			Name:      "analyses_total",
			Help:      "Total graph analysis passes by status.",
		},
		[]string{"status"},
	)

	// AnalysisDuration observes full-pass latency.
	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ringtrace",
			Name:      "analysis_duration_seconds",
			Help:      "Graph analysis duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
	)

	// RingsDetectedTotal counts fraud rings found across all passes.
	RingsDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ringtrace",
			Name:      "rings_detected_total",
			Help:      "Total fraud rings detected.",
		},
	)

	// CommunitiesDetectedTotal counts communities found across all passes.
	CommunitiesDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ringtrace",
			Name:      "communities_detected_total",
			Help:      "Total communities detected.",
		},
	)

	// ResultsPrunedTotal counts analysis results removed by retention sweeps.
	ResultsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ringtrace",
			Name:      "analysis_results_pruned_total",
			Help:      "Total analysis results removed by retention sweeps.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		AnalysesTotal,
		AnalysisDuration,
		RingsDetectedTotal,
		CommunitiesDetectedTotal,
		ResultsPrunedTotal,
	)
}

// observeAnalysis returns a completion callback recording one pass.
func observeAnalysis() func(status string) {
	start := time.Now()
	return func(status string) {
		AnalysesTotal.WithLabelValues(status).Inc()
		AnalysisDuration.Observe(time.Since(start).Seconds())
	}
}
