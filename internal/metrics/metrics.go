// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts fallback-chain provider attempts by outcome
	// (ok, error, quota_blocked).
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "provider_requests_total",
			Help:      "Provider completion attempts by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderFallbacks counts completions served by a non-primary provider.
	ProviderFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "provider_fallback_total",
			Help:      "Completions served by a provider other than the highest-priority one.",
		},
	)

	// ProviderRequestDuration observes completion latency per provider.
	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "maestro",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider completion latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ToolExecutions counts tool calls by tool and outcome.
	ToolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "tool_executions_total",
			Help:      "Tool executions by tool name and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// PlanSteps counts executed plan steps by outcome (ok, error, human_input).
	PlanSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "plan_steps_total",
			Help:      "Orchestration plan steps executed by outcome.",
		},
		[]string{"outcome"},
	)

	// TokensUsed counts tokens consumed per provider.
	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maestro",
			Name:      "tokens_used_total",
			Help:      "Tokens consumed per provider.",
		},
		[]string{"provider"},
	)
)
