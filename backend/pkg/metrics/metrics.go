package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GraphNodes tracks the number of nodes in the context graph.
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contextpilot_graph_nodes",
		Help: "Number of nodes in the context graph",
	})

	// GraphEdges tracks the number of edges in the context graph.
	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contextpilot_graph_edges",
		Help: "Number of edges in the context graph",
	})

	// VectorEntries tracks the number of embedded snippets in the index.
	VectorEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "contextpilot_vector_entries",
		Help: "Number of text snippets in the vector index",
	})

	// TurnsTotal counts conversation turns by outcome (ok, error).
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextpilot_turns_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"outcome"},
	)

	// CompletionDuration measures LLM completion latency, buckets up to a minute.
	CompletionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "contextpilot_completion_duration_seconds",
		Help:    "Duration of LLM completion calls in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
