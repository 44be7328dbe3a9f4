package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway metrics
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_gateway_requests_total",
			Help: "Total number of gateway requests",
		},
		[]string{"status"},
	)

	GatewayRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supervisor_gateway_request_duration_seconds",
			Help:    "End-to-end gateway request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_gateway_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_gateway_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Intent metrics
	IntentClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_intent_classified_total",
			Help: "Total number of intent classifications by result",
		},
		[]string{"intent", "classifier"},
	)

	// LLM metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_llm_calls_total",
			Help: "Total number of completion service calls",
		},
		[]string{"component", "status"},
	)

	LLMCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_llm_call_duration_seconds",
			Help:    "Completion service call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)

	// Agent runtime metrics
	AgentInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_agent_invocations_total",
			Help: "Total number of agent runtime invocations",
		},
		[]string{"status"},
	)

	AgentStreamEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_agent_stream_events_total",
			Help: "Total number of agent stream events consumed",
		},
	)

	AgentInvocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "supervisor_agent_invocation_duration_seconds",
			Help:    "Agent invocation duration including stream drain in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Rerank metrics
	RerankRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_rerank_requests_total",
			Help: "Total number of rerank service calls",
		},
		[]string{"status"},
	)

	RerankDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_rerank_degraded_total",
			Help: "Total number of responses returned without reranking after a rerank failure",
		},
	)

	// Session memory metrics
	MemoryReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_memory_reads_total",
			Help: "Total number of session memory reads by result",
		},
		[]string{"result"},
	)

	MemoryWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_memory_writes_total",
			Help: "Total number of session memory writes",
		},
		[]string{"status"},
	)

	MemoryEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_memory_evictions_total",
			Help: "Total number of session memory eviction events",
		},
	)

	MemorySummaryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supervisor_memory_summary_failures_total",
			Help: "Total number of rolling summary failures during eviction",
		},
	)

	// Prompt table metrics
	PromptReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_prompt_reloads_total",
			Help: "Total number of prompt table reloads",
		},
		[]string{"status"},
	)
)
