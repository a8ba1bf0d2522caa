package daemon

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/parkjunho/samguk/internal/command"
)

func testLogger() *slog.Logger { return slog.Default() }

func claimOne(t *testing.T, f *schedFixture, kind string, args command.Args) *command.Command {
	t.Helper()
	ctx := context.Background()
	cmd := command.New("s1", f.general, kind, args)
	cmd.EnqueuedAt = time.Now().Add(-time.Minute)
	if err := f.queue.Enqueue(ctx, cmd); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	claimed, err := f.queue.Poll(ctx, 1)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("poll = %d, err %v", len(claimed), err)
	}
	return claimed[0]
}

func TestHandle_SuccessAcks(t *testing.T) {
	f := newSchedFixture(t, time.Hour)
	c := NewConsumer(f.queue, f.exec, ConsumerConf{}, testLogger())
	ctx := context.Background()

	cmd := claimOne(t, f, "move", command.Args{"city_id": f.cities["Xuchang"]})
	c.handle(ctx, cmd)

	got, _ := f.queue.ByID(ctx, cmd.ID)
	if got.Status != command.StatusExecuting || !got.Deferred() {
		t.Errorf("move should stay executing with a deadline, got %s", got.Status)
	}
}

func TestHandle_ValidationFailureDeadEnds(t *testing.T) {
	f := newSchedFixture(t, time.Hour)
	c := NewConsumer(f.queue, f.exec, ConsumerConf{}, testLogger())
	ctx := context.Background()

	// The session has no such kind; the executor rejects and the consumer
	// records the failure without retrying.
	cmd := claimOne(t, f, "banquet", nil)
	c.handle(ctx, cmd)

	got, _ := f.queue.ByID(ctx, cmd.ID)
	if got.Status != command.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.LastError == "" {
		t.Errorf("failure reason not recorded")
	}

	// The actor's queue is unblocked for the next command.
	next := claimOne(t, f, "move", command.Args{"city_id": f.cities["Xuchang"]})
	if next.Kind != "move" {
		t.Errorf("claimed %s, want move", next.Kind)
	}
}

func TestConsumerConfDefaults(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConf{}, testLogger())
	if c.conf.Workers <= 0 || c.conf.BatchSize <= 0 || c.conf.PollInterval <= 0 || c.conf.MaxIdleWait <= 0 {
		t.Errorf("defaults not applied: %+v", c.conf)
	}
}
