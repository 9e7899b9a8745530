package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderledger_commands_handled_total",
		Help: "Total number of commands handled, labelled by command and outcome.",
	}, []string{"command", "outcome"})

	CommandRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_command_retries_total",
		Help: "Total number of command retries after a concurrency conflict.",
	})

	ConcurrencyConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_concurrency_conflicts_total",
		Help: "Total number of optimistic concurrency conflicts at append time.",
	})

	EventsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_events_appended_total",
		Help: "Total number of events appended to the event store.",
	})

	EventsProjected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_events_projected_total",
		Help: "Total number of events folded into the read model.",
	})

	DuplicateEventsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_duplicate_events_skipped_total",
		Help: "Total number of duplicate event deliveries dropped by the watermark check.",
	})

	GapRefetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_projection_gap_refetches_total",
		Help: "Total number of missing-range refetches triggered by an out-of-order delivery.",
	})

	EventsQuarantined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderledger_events_quarantined_total",
		Help: "Total number of poison events quarantined after bounded retries.",
	})
)
