// Package queue implements the durable command queue on top of the commands
// table: at-least-once delivery, per-actor ordering, bounded retries with
// backoff, dead-lettering to Failed.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/store"
)

// Queue polls, claims and finalizes commands. The daemon is the only
// consumer, which is what makes the claim step race-free.
type Queue struct {
	db          *sqlx.DB
	maxAttempts int
	baseBackoff time.Duration
}

// Option tunes queue behavior.
type Option func(*Queue)

// WithMaxAttempts bounds retries before dead-lettering.
func WithMaxAttempts(n int) Option {
	return func(q *Queue) { q.maxAttempts = n }
}

// WithBaseBackoff sets the first retry delay; each retry doubles it.
func WithBaseBackoff(d time.Duration) Option {
	return func(q *Queue) { q.baseBackoff = d }
}

// New creates a Queue over the shared store database.
func New(st *store.Store, opts ...Option) *Queue {
	q := &Queue{
		db:          st.DB(),
		maxAttempts: 5,
		baseBackoff: 2 * time.Second,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends a pending command.
func (q *Queue) Enqueue(ctx context.Context, cmd *command.Command) error {
	r := toRow(cmd)
	_, err := q.db.NamedExecContext(ctx, `INSERT INTO commands
		(id, session_id, actor_id, target_id, kind, args, status, attempts,
		 last_error, enqueued_at_ms, not_before_ms, completes_at_ms)
		VALUES (:id, :session_id, :actor_id, :target_id, :kind, :args, :status,
		 :attempts, :last_error, :enqueued_at_ms, :not_before_ms, :completes_at_ms)`, r)
	if err != nil {
		return command.Transientf("enqueue %s: %v", cmd.ID, err)
	}
	return nil
}

// Poll claims up to batchSize runnable commands and marks them Executing.
//
// Ordering guarantee: at most one command per (session, actor) is returned —
// the oldest pending one — and an actor with an in-flight command is skipped
// entirely. Commands for different actors carry no ordering guarantee.
func (q *Queue) Poll(ctx context.Context, batchSize int) ([]*command.Command, error) {
	nowMS := time.Now().UnixMilli()
	var rows []row
	err := q.db.SelectContext(ctx, &rows, `
		SELECT * FROM commands c
		WHERE c.status = 'pending' AND c.not_before_ms <= ?
		  AND NOT EXISTS (
			SELECT 1 FROM commands e
			WHERE e.session_id = c.session_id AND e.actor_id = c.actor_id
			  AND e.status = 'executing')
		  AND c.id = (
			SELECT o.id FROM commands o
			WHERE o.session_id = c.session_id AND o.actor_id = c.actor_id
			  AND o.status = 'pending' AND o.not_before_ms <= ?
			ORDER BY o.enqueued_at_ms, o.id LIMIT 1)
		ORDER BY c.enqueued_at_ms, c.id
		LIMIT ?`, nowMS, nowMS, batchSize)
	if err != nil {
		return nil, command.Transientf("poll: %v", err)
	}

	cmds := make([]*command.Command, 0, len(rows))
	for i := range rows {
		res, err := q.db.ExecContext(ctx,
			`UPDATE commands SET status = 'executing' WHERE id = ? AND status = 'pending'`,
			rows[i].ID)
		if err != nil {
			return cmds, command.Transientf("claim %s: %v", rows[i].ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		c := fromRow(&rows[i])
		c.Status = command.StatusExecuting
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// Ack confirms a processed delivery and returns the command's current
// status. The executor finalizes status inside its own transaction, so Ack
// only verifies the claim was resolved.
func (q *Queue) Ack(ctx context.Context, id string) (command.Status, error) {
	var status string
	if err := q.db.GetContext(ctx, &status,
		`SELECT status FROM commands WHERE id = ?`, id); err != nil {
		return "", command.Transientf("ack %s: %v", id, err)
	}
	return command.Status(status), nil
}

// Nack returns a command to Pending after retryAfter, or dead-letters it to
// Failed once the retry budget is exhausted. The failure is surfaced on the
// row, never silently dropped. Returns true when the command dead-lettered.
func (q *Queue) Nack(ctx context.Context, id string, retryAfter time.Duration, cause error) (bool, error) {
	var attempts int
	if err := q.db.GetContext(ctx, &attempts,
		`SELECT attempts FROM commands WHERE id = ?`, id); err != nil {
		return false, command.Transientf("nack %s: %v", id, err)
	}
	attempts++
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	if attempts >= q.maxAttempts {
		_, err := q.db.ExecContext(ctx, `UPDATE commands
			SET status = 'failed', attempts = ?, last_error = ?
			WHERE id = ? AND status = 'executing'`, attempts, msg, id)
		if err != nil {
			return false, command.Transientf("dead-letter %s: %v", id, err)
		}
		return true, nil
	}

	notBefore := time.Now().Add(retryAfter).UnixMilli()
	_, err := q.db.ExecContext(ctx, `UPDATE commands
		SET status = 'pending', attempts = ?, last_error = ?, not_before_ms = ?
		WHERE id = ? AND status = 'executing'`, attempts, msg, notBefore, id)
	if err != nil {
		return false, command.Transientf("nack %s: %v", id, err)
	}
	return false, nil
}

// Release returns a claimed command to Pending without consuming a retry
// attempt. Used when the consumer claims more than it can process; the retry
// budget is reserved for execution failures, not backpressure.
func (q *Queue) Release(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE commands SET status = 'pending' WHERE id = ? AND status = 'executing'`, id)
	if err != nil {
		return command.Transientf("release %s: %v", id, err)
	}
	return nil
}

// Backoff computes the exponential retry delay for an attempt count.
func (q *Queue) Backoff(attempts int) time.Duration {
	d := q.baseBackoff
	for i := 0; i < attempts; i++ {
		d *= 2
	}
	return d
}

// Fail transitions a command straight to Failed with a reported reason
// (validation, resource and fatal errors are never retried).
func (q *Queue) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := q.db.ExecContext(ctx, `UPDATE commands
		SET status = 'failed', last_error = ?
		WHERE id = ? AND status IN ('pending', 'executing')`, msg, id)
	if err != nil {
		return command.Transientf("fail %s: %v", id, err)
	}
	return nil
}

// Cancel rejects anything but a Pending command: once Executing the caller
// must wait for completion, and terminal states are immutable.
func (q *Queue) Cancel(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `UPDATE commands
		SET status = 'cancelled' WHERE id = ? AND status = 'pending'`, id)
	if err != nil {
		return command.Transientf("cancel %s: %v", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: command %s is not pending", command.ErrCommandState, id)
	}
	return nil
}

// ByID loads one command (failed commands stay queryable with their reason).
func (q *Queue) ByID(ctx context.Context, id string) (*command.Command, error) {
	var r row
	if err := q.db.GetContext(ctx, &r, `SELECT * FROM commands WHERE id = ?`, id); err != nil {
		return nil, wrapGet(err)
	}
	return fromRow(&r), nil
}

// Due lists deferred commands whose completion deadline has passed.
func (q *Queue) Due(ctx context.Context, sessionID string, now time.Time) ([]*command.Command, error) {
	var rows []row
	err := q.db.SelectContext(ctx, &rows, `SELECT * FROM commands
		WHERE session_id = ? AND status = 'executing'
		  AND completes_at_ms > 0 AND completes_at_ms <= ?
		ORDER BY completes_at_ms, id`, sessionID, now.UnixMilli())
	if err != nil {
		return nil, command.Transientf("due: %v", err)
	}
	cmds := make([]*command.Command, len(rows))
	for i := range rows {
		cmds[i] = fromRow(&rows[i])
	}
	return cmds, nil
}

// Recover requeues non-deferred Executing commands after a crash. Redelivery
// is safe: the executor is idempotent per command id.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE commands
		SET status = 'pending' WHERE status = 'executing' AND completes_at_ms = 0`)
	if err != nil {
		return 0, command.Transientf("recover: %v", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
