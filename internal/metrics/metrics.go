// Package metrics exposes Prometheus instruments and dependency health
// tracking for the support engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echopilot",
		Subsystem: "agent",
		Name:      "turns_total",
		Help:      "Completed turns by outcome",
	}, []string{"outcome"})

	RoundsPerTurn = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "echopilot",
		Subsystem: "agent",
		Name:      "rounds_per_turn",
		Help:      "Reason rounds needed to finish a turn",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echopilot",
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	TicketsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echopilot",
		Subsystem: "tickets",
		Name:      "created_total",
		Help:      "Tickets created by type and whether the external system confirmed them",
	}, []string{"type", "external"})

	RetrievalKept = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "echopilot",
		Subsystem: "retrieval",
		Name:      "kept_documents",
		Help:      "Documents kept after relevance scoring",
		Buckets:   []float64{0, 1, 2, 3, 4, 6, 10},
	})

	ExternalCallSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "echopilot",
		Subsystem: "external",
		Name:      "call_seconds",
		Help:      "Latency of external dependency calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"dependency"})

	DegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "echopilot",
		Name:      "degraded_total",
		Help:      "Failures of external dependencies that were absorbed by a fallback",
	}, []string{"dependency"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "echopilot",
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently held in the registry",
	})
)

// Dependency names used as label values.
const (
	DepLLM         = "llm"
	DepEmbeddings  = "embeddings"
	DepVectorStore = "vectorstore"
	DepTicketing   = "ticketing"
	DepSummary     = "summary_store"
	DepEvents      = "events"
)
