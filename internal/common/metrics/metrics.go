package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AgentRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_requests_total",
			Help: "Total number of answered requests by intent kind and outcome",
		},
		[]string{"intent", "outcome"},
	)

	AgentRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_request_duration_seconds",
			Help:    "End-to-end request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)

	IntentEscalations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_intent_escalations_total",
			Help: "Remote classifier escalations by result",
		},
		[]string{"result"},
	)

	ToolInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_invocations_total",
			Help: "Tool invocations by tool and status",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_tool_duration_seconds",
			Help:    "Duration of tool invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		},
		[]string{"tool"},
	)

	ToolsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_tools_active",
			Help: "Number of tool invocations currently holding a slot",
		},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_provider_calls_total",
			Help: "Generation provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	ProviderTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_provider_tokens_total",
			Help: "Tokens consumed by provider and direction",
		},
		[]string{"provider", "direction"},
	)

	ProviderCost = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_provider_cost_total",
			Help: "Accumulated generation cost by provider",
		},
		[]string{"provider"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_cache_lookups_total",
			Help: "Response cache lookups by result (hit, miss, shared, error)",
		},
		[]string{"result"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_rate_limit_decisions_total",
			Help: "Rate limiter decisions by class and result",
		},
		[]string{"class", "result"},
	)

	BatchJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agent_batch_jobs_active",
			Help: "Number of batch jobs still processing",
		},
	)

	BatchJobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_batch_jobs_finished_total",
			Help: "Batch jobs finished by final status",
		},
		[]string{"status"},
	)
)
