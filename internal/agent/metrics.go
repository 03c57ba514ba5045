package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	agentRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "agent_requests_total",
			Help:      "Chat requests handled, by selected agent",
		},
		[]string{"agent"},
	)

	routerFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "router_fallbacks_total",
			Help:      "Router calls without a usable select_agent invocation",
		},
	)

	turnsUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutor",
			Name:      "turns_used",
			Help:      "Reasoning-service calls per request",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"agent"},
	)

	turnCeilingTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "turn_ceiling_reached_total",
			Help:      "Requests that exhausted their turn budget without a final answer",
		},
		[]string{"agent"},
	)
)
