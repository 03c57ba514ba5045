package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "retrieval_stage_total",
			Help:      "Retrieval escalation stages by outcome",
		},
		[]string{"stage", "outcome"},
	)

	evaluatorFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutor",
			Name:      "evaluator_failures_total",
			Help:      "Quality evaluations that fell back to the conservative verdict",
		},
	)
)
