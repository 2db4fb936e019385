// Package observability provides Prometheus metrics for the mcpchat client
// and an optional HTTP listener exposing them.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// ToolBuckets covers tool calls from a few milliseconds to the default
// 60s tool timeout.
var ToolBuckets = []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60}

var (
	// ModelRequestsTotal counts requests sent to the chat model backend.
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_model_requests_total",
			Help: "Chat model requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ModelLatency records chat model latency in seconds.
	ModelLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpchat_model_latency_seconds",
			Help:    "Chat model latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ModelTokensTotal counts tokens processed by direction (input/output).
	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_model_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// ToolDuration records tool execution time in seconds.
	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpchat_tool_duration_seconds",
			Help:    "Tool execution duration",
			Buckets: ToolBuckets,
		},
		[]string{"tool_name"},
	)

	// PermissionDecisionsTotal counts consent outcomes. Source is "prompt"
	// when the user answered, "stored" when a previous decision applied.
	PermissionDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_permission_decisions_total",
			Help: "Tool permission decisions",
		},
		[]string{"decision", "source"},
	)

	// CompactionsTotal counts history compactions by outcome.
	CompactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpchat_compactions_total",
			Help: "History compactions",
		},
		[]string{"status"},
	)

	// HistoryMessages tracks the current history length of the active session.
	HistoryMessages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpchat_history_messages",
			Help: "Messages in the active session history",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ModelRequestsTotal,
		ModelLatency,
		ModelTokensTotal,
		ToolExecutionsTotal,
		ToolDuration,
		PermissionDecisionsTotal,
		CompactionsTotal,
		HistoryMessages,
	)
}
