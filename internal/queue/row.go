package queue

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/parkjunho/samguk/internal/command"
	"github.com/parkjunho/samguk/internal/store"
)

// row is the commands-table shape. Timestamps are unix milliseconds so SQL
// comparisons stay numeric.
type row struct {
	ID            string       `db:"id"`
	SessionID     string       `db:"session_id"`
	ActorID       int64        `db:"actor_id"`
	TargetID      *int64       `db:"target_id"`
	Kind          string       `db:"kind"`
	Args          command.Args `db:"args"`
	Status        string       `db:"status"`
	Attempts      int          `db:"attempts"`
	LastError     string       `db:"last_error"`
	EnqueuedAtMS  int64        `db:"enqueued_at_ms"`
	NotBeforeMS   int64        `db:"not_before_ms"`
	CompletesAtMS int64        `db:"completes_at_ms"`
}

func toRow(c *command.Command) *row {
	r := &row{
		ID:           c.ID,
		SessionID:    c.SessionID,
		ActorID:      c.ActorID,
		TargetID:     c.TargetID,
		Kind:         c.Kind,
		Args:         c.Args,
		Status:       string(c.Status),
		Attempts:     c.Attempts,
		LastError:    c.LastError,
		EnqueuedAtMS: c.EnqueuedAt.UnixMilli(),
	}
	if !c.NotBefore.IsZero() {
		r.NotBeforeMS = c.NotBefore.UnixMilli()
	}
	if !c.CompletesAt.IsZero() {
		r.CompletesAtMS = c.CompletesAt.UnixMilli()
	}
	return r
}

func fromRow(r *row) *command.Command {
	c := &command.Command{
		ID:         r.ID,
		SessionID:  r.SessionID,
		ActorID:    r.ActorID,
		TargetID:   r.TargetID,
		Kind:       r.Kind,
		Args:       r.Args,
		Status:     command.Status(r.Status),
		Attempts:   r.Attempts,
		LastError:  r.LastError,
		EnqueuedAt: time.UnixMilli(r.EnqueuedAtMS).UTC(),
	}
	if r.NotBeforeMS > 0 {
		c.NotBefore = time.UnixMilli(r.NotBeforeMS).UTC()
	}
	if r.CompletesAtMS > 0 {
		c.CompletesAt = time.UnixMilli(r.CompletesAtMS).UTC()
	}
	return c
}

func wrapGet(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// StatusTx reads a command's status inside the executor's transaction for
// the terminal-state idempotency check.
func StatusTx(tx *sqlx.Tx, id string) (command.Status, error) {
	var status string
	if err := tx.Get(&status, `SELECT status FROM commands WHERE id = ?`, id); err != nil {
		return "", wrapGet(err)
	}
	return command.Status(status), nil
}

// MarkCompletedTx finalizes a command inside the same transaction that
// applied its effects, so redelivery finds a terminal state.
func MarkCompletedTx(tx *sqlx.Tx, id string) error {
	_, err := tx.Exec(
		`UPDATE commands SET status = 'completed', completes_at_ms = 0 WHERE id = ?`, id)
	return err
}

// MarkDeferredTx records the completion deadline; the command stays
// Executing until the tick sweep completes it.
func MarkDeferredTx(tx *sqlx.Tx, id string, completesAt time.Time) error {
	_, err := tx.Exec(
		`UPDATE commands SET completes_at_ms = ? WHERE id = ?`,
		completesAt.UnixMilli(), id)
	return err
}

// MarkFailedTx finalizes a command as failed with its reason inside a
// transaction.
func MarkFailedTx(tx *sqlx.Tx, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := tx.Exec(
		`UPDATE commands SET status = 'failed', last_error = ? WHERE id = ?`, msg, id)
	return err
}
