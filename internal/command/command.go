// Package command defines the player command model consumed by the daemon.
package command

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a command. Terminal states are immutable.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether a command in this status may never change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Command is the canonical record appended by the API layer and owned
// exclusively by the daemon once dequeued.
type Command struct {
	ID        string
	SessionID string
	ActorID   int64
	TargetID  *int64
	Kind      string
	Args      Args

	Status    Status
	Attempts  int
	LastError string

	EnqueuedAt time.Time
	// NotBefore delays redelivery after a nack.
	NotBefore time.Time
	// CompletesAt is the deferred-completion deadline for kinds with a
	// duration rule. Zero means the command completes at execution time.
	CompletesAt time.Time
}

// New creates a pending command with a fresh id.
func New(sessionID string, actorID int64, kind string, args Args) *Command {
	return &Command{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		ActorID:    actorID,
		Kind:       kind,
		Args:       args,
		Status:     StatusPending,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Deferred reports whether the command has a completion deadline.
func (c *Command) Deferred() bool {
	return !c.CompletesAt.IsZero()
}
