package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestJobRegistryCancelsOnlyTargetJob(t *testing.T) {
	r := NewJobRegistry()
	ctxA, doneA := r.Start(context.Background(), "a")
	defer doneA()
	ctxB, doneB := r.Start(context.Background(), "b")
	defer doneB()

	if !r.Cancel("a") {
		t.Fatalf("expected running job to be cancelled")
	}
	if ctxA.Err() == nil {
		t.Fatalf("expected job a cancelled")
	}
	if ctxB.Err() != nil {
		t.Fatalf("expected job b untouched")
	}
	if r.Active() != 2 {
		t.Fatalf("expected 2 active jobs until done, got %d", r.Active())
	}
}

func TestJobRegistryRemembersEarlyCancel(t *testing.T) {
	r := NewJobRegistry()
	if r.Cancel("later") {
		t.Fatalf("job is not running yet")
	}
	ctx, done := r.Start(context.Background(), "later")
	defer done()
	if ctx.Err() == nil {
		t.Fatalf("expected pre-cancelled context")
	}
}

func TestJobRegistryPrunesStalePendingCancels(t *testing.T) {
	r := NewJobRegistry()
	now := time.Now()
	r.now = func() time.Time { return now }
	r.Cancel("old")
	now = now.Add(2 * pendingCancelTTL)
	r.Cancel("new")

	if _, ok := r.pending["old"]; ok {
		t.Fatalf("expected stale pending cancel pruned")
	}
}

func TestJobRegistryDoneRemovesJob(t *testing.T) {
	r := NewJobRegistry()
	_, done := r.Start(context.Background(), "a")
	done()
	if r.Active() != 0 {
		t.Fatalf("expected no active jobs")
	}
}

type subscriberFake struct {
	ch chan domain.JobEvent
}

func (f *subscriberFake) SubscribeJobEvents(context.Context, string) (<-chan domain.JobEvent, error) {
	return f.ch, nil
}

func TestJobControl(t *testing.T) {
	queue := &queueFake{}
	sub := &subscriberFake{ch: make(chan domain.JobEvent, 1)}
	uc := NewJobControlUseCase(queue, sub)

	if err := uc.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if len(queue.cancelled) != 1 || queue.cancelled[0] != "job-1" {
		t.Fatalf("expected cancel published, got %v", queue.cancelled)
	}
	if err := uc.Cancel(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}

	sub.ch <- domain.JobEvent{JobID: "job-1", Status: domain.JobQueued}
	ch, err := uc.Events(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Events() error = %v", err)
	}
	if e := <-ch; e.Status != domain.JobQueued {
		t.Fatalf("unexpected event %+v", e)
	}

	queue.err = errors.New("nats down")
	if err := uc.Cancel(context.Background(), "job-2"); err == nil {
		t.Fatalf("expected publish error")
	}
}
