// Package daemon runs the two loops of the simulation process: the consumer
// that drains the command queue and the scheduler that advances game time.
package daemon

import (
	"context"
	"log/slog"
	"time"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/exec"
	"github.com/parkjunho/samguk/internal/metrics"
	"github.com/parkjunho/samguk/internal/queue"
)

// ConsumerConf tunes the poll loop.
type ConsumerConf struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	MaxIdleWait  time.Duration
}

// Consumer drains the durable queue into the executor. Poll-level ordering
// (one in-flight command per actor) plus the executor's idempotency make the
// worker pool safe: workers only ever hold commands for distinct actors.
type Consumer struct {
	queue *queue.Queue
	exec  *exec.Executor
	conf  ConsumerConf
	log   *slog.Logger
	pool  *workerPool[*command.Command]
}

// NewConsumer creates a Consumer. Zero conf fields get working defaults.
func NewConsumer(q *queue.Queue, ex *exec.Executor, conf ConsumerConf, log *slog.Logger) *Consumer {
	if conf.Workers <= 0 {
		conf.Workers = 4
	}
	if conf.BatchSize <= 0 {
		conf.BatchSize = 16
	}
	if conf.PollInterval <= 0 {
		conf.PollInterval = 100 * time.Millisecond
	}
	if conf.MaxIdleWait <= 0 {
		conf.MaxIdleWait = 2 * time.Second
	}
	return &Consumer{queue: q, exec: ex, conf: conf, log: log}
}

// Run polls until ctx is cancelled. An empty poll backs off exponentially up
// to MaxIdleWait; any claimed command resets the wait.
func (c *Consumer) Run(ctx context.Context) {
	c.pool = newWorkerPool[*command.Command](ctx, c.conf.Workers, c.conf.BatchSize*2, c.handle)
	defer c.pool.Drain()

	if n, err := c.queue.Recover(ctx); err != nil {
		c.log.Error("queue recovery failed", "error", err)
	} else if n > 0 {
		c.log.Info("requeued interrupted commands", "count", n)
	}

	wait := c.conf.PollInterval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		cmds, err := c.queue.Poll(ctx, c.conf.BatchSize)
		if err != nil {
			c.log.Error("poll failed", "error", err)
			wait = c.conf.MaxIdleWait
			continue
		}
		metrics.PollBatchSize.Observe(float64(len(cmds)))

		if len(cmds) == 0 {
			wait *= 2
			if wait > c.conf.MaxIdleWait {
				wait = c.conf.MaxIdleWait
			}
			continue
		}
		wait = c.conf.PollInterval

		for _, cmd := range cmds {
			if c.pool.Submit(cmd) {
				continue
			}
			// Pool saturated: hand the claim back without burning an attempt.
			if err := c.queue.Release(ctx, cmd.ID); err != nil {
				c.log.Error("release after full pool failed", "command", cmd.ID, "error", err)
			}
		}
	}
}

// handle resolves one delivery: execute, then finalize by error class.
// Transient errors go back to the queue with backoff; everything else is a
// definitive failure recorded on the command.
func (c *Consumer) handle(ctx context.Context, cmd *command.Command) {
	start := time.Now()
	res, err := c.exec.Execute(ctx, cmd)
	metrics.CommandDuration.Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		if _, ackErr := c.queue.Ack(ctx, cmd.ID); ackErr != nil {
			c.log.Error("ack failed", "command", cmd.ID, "error", ackErr)
		}
		outcome := string(res.Status)
		if res.AlreadyProcessed {
			outcome = "duplicate"
		} else if res.Deferred {
			outcome = "deferred"
		}
		metrics.CommandsProcessed.WithLabelValues(cmd.Kind, outcome).Inc()
		c.log.Info("command resolved", "command", cmd.ID, "kind", cmd.Kind,
			"actor", cmd.ActorID, "outcome", outcome, "message", res.Message)

	case command.Retryable(err):
		dead, nackErr := c.queue.Nack(ctx, cmd.ID, c.queue.Backoff(cmd.Attempts), err)
		if nackErr != nil {
			c.log.Error("nack failed", "command", cmd.ID, "error", nackErr)
			return
		}
		if dead {
			metrics.CommandsDeadLettered.Inc()
			metrics.CommandsProcessed.WithLabelValues(cmd.Kind, "dead_letter").Inc()
			c.log.Warn("command dead-lettered", "command", cmd.ID, "kind", cmd.Kind, "error", err)
			return
		}
		metrics.CommandsRetried.Inc()
		c.log.Warn("command retried", "command", cmd.ID, "kind", cmd.Kind,
			"attempt", cmd.Attempts+1, "error", err)

	default:
		if failErr := c.queue.Fail(ctx, cmd.ID, err); failErr != nil {
			c.log.Error("fail transition failed", "command", cmd.ID, "error", failErr)
		}
		metrics.CommandsProcessed.WithLabelValues(cmd.Kind, "failed").Inc()
		c.log.Info("command rejected", "command", cmd.ID, "kind", cmd.Kind,
			"actor", cmd.ActorID, "error", err)
	}
}
