package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	RetrievalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qialchemy",
			Name:      "retrieval_requests_total",
			Help:      "Total number of retrieval requests",
		},
		[]string{"status"},
	)

	RetrievalStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "qialchemy",
			Name:      "retrieval_stage_duration_seconds",
			Help:      "Retrieval stage duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"stage"}, // "graph" / "candidates" / "embed" / "fuse"
	)

	RetrievalCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qialchemy",
			Name:      "retrieval_candidates",
			Help:      "Candidate pool size per retrieval request",
			Buckets:   []float64{0, 5, 10, 20, 40, 60, 80, 120},
		},
	)

	RetrievalGraphConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qialchemy",
			Name:      "retrieval_graph_confidence",
			Help:      "Concept graph confidence per retrieval request",
			Buckets:   []float64{0, 0.1, 0.2, 0.35, 0.5, 0.65, 0.8, 0.95, 1},
		},
	)

	RetrievalDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qialchemy",
			Name:      "retrieval_degraded_total",
			Help:      "Retrieval requests served with a signal channel disabled",
		},
		[]string{"channel"}, // "embedding" / "graph"
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers retrieval pipeline metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(RetrievalRequestsTotal)
	prometheus.MustRegister(RetrievalStageDuration)
	prometheus.MustRegister(RetrievalCandidates)
	prometheus.MustRegister(RetrievalGraphConfidence)
	prometheus.MustRegister(RetrievalDegradedTotal)
	retrievalMetricsRegistered = true
}
