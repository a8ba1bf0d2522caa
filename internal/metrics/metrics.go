package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "samguk_commands_processed_total",
		Help: "Total number of commands resolved, labelled by kind and outcome.",
	}, []string{"kind", "outcome"})

	CommandsRetried = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samguk_commands_retried_total",
		Help: "Total number of command deliveries returned to the queue for retry.",
	})

	CommandsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samguk_commands_dead_lettered_total",
		Help: "Total number of commands failed after exhausting the retry budget.",
	})

	CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "samguk_command_duration_ms",
		Help:    "Command execution latency in milliseconds, claim to finalize.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	DeferredCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samguk_deferred_completed_total",
		Help: "Total number of deferred commands finalized by the tick sweep.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "samguk_tick_duration_ms",
		Help:    "Wall time of one full scheduler tick in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	TicksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "samguk_ticks_skipped_total",
		Help: "Total number of ticks skipped because the previous one was still running.",
	})

	EventsFired = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "samguk_events_fired_total",
		Help: "Total number of event handlers whose condition matched, labelled by event ID.",
	}, []string{"event_id"})

	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "samguk_actions_executed_total",
		Help: "Total number of event actions executed, labelled by type and status.",
	}, []string{"action_type", "status"})

	PollBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "samguk_poll_batch_size",
		Help:    "Number of commands claimed per poll.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
	})
)
