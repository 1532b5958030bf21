package dialog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ajanda",
		Subsystem: "dialog",
		Name:      "turns_total",
		Help:      "Processed turns by route and result kind.",
	}, []string{"route", "kind"})

	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ajanda",
		Subsystem: "dialog",
		Name:      "tool_executions_total",
		Help:      "Tool executions by tool name and status.",
	}, []string{"tool", "status"})

	menuDefaultsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ajanda",
		Subsystem: "dialog",
		Name:      "menu_defaults_applied_total",
		Help:      "Menus resolved by the stage-two default after a failed reprompt.",
	})

	fallbackSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ajanda",
		Subsystem: "dialog",
		Name:      "fallback_steps",
		Help:      "Steps consumed by fallback loop invocations.",
		Buckets:   prometheus.LinearBuckets(1, 1, 8),
	})
)
