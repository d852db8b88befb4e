package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docgraph_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"stage"},
	)

	DocumentsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_documents_processed_total",
			Help: "Total documents processed",
		},
		[]string{"status"},
	)

	SpansExtracted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_spans_extracted_total",
			Help: "Total spans extracted during normalization",
		},
	)

	EpisodesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_episodes_written_total",
			Help: "Total episodes successfully written to the graph",
		},
	)

	QueriesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_guarded_queries_rejected_total",
			Help: "Agent-authored queries rejected by the guarded gateway",
		},
		[]string{"reason"},
	)

	QueriesExecuted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docgraph_guarded_queries_executed_total",
			Help: "Agent-authored queries executed by the guarded gateway",
		},
	)

	ToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_agent_tool_calls_total",
			Help: "Agent tool invocations",
		},
		[]string{"phase", "tool"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docgraph_llm_tokens_used_total",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)
)

func Register() {
	prometheus.MustRegister(
		StageDuration,
		DocumentsProcessed,
		SpansExtracted,
		EpisodesWritten,
		QueriesRejected,
		QueriesExecuted,
		ToolCalls,
		LLMTokensUsed,
	)
}
