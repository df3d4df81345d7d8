package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const pendingCancelTTL = time.Hour

// JobRegistry tracks the cancel function of every job running in this
// process. A cancel that arrives before its job starts is remembered for
// pendingCancelTTL.
type JobRegistry struct {
	mu      sync.Mutex
	running map[string]context.CancelFunc
	pending map[string]time.Time
	now     func() time.Time
}

func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		running: make(map[string]context.CancelFunc),
		pending: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Start derives a cancellable context for jobID. done must be called when
// the job finishes.
func (r *JobRegistry) Start(parent context.Context, jobID string) (ctx context.Context, done func()) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	if _, ok := r.pending[jobID]; ok {
		delete(r.pending, jobID)
		cancel()
	}
	r.running[jobID] = cancel
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.running, jobID)
		r.mu.Unlock()
		cancel()
	}
}

// Cancel cancels jobID if it runs here. It reports whether the job was running.
func (r *JobRegistry) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cancel, ok := r.running[jobID]; ok {
		cancel()
		return true
	}
	now := r.now()
	for id, at := range r.pending {
		if now.Sub(at) > pendingCancelTTL {
			delete(r.pending, id)
		}
	}
	r.pending[jobID] = now
	return false
}

func (r *JobRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

type JobControlUseCase struct {
	queue      ports.JobQueue
	subscriber ports.JobEventSubscriber
}

func NewJobControlUseCase(queue ports.JobQueue, subscriber ports.JobEventSubscriber) *JobControlUseCase {
	return &JobControlUseCase{queue: queue, subscriber: subscriber}
}

func (uc *JobControlUseCase) Events(ctx context.Context, jobID string) (<-chan domain.JobEvent, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "job events", errors.New("job id is required"))
	}
	events, err := uc.subscriber.SubscribeJobEvents(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("subscribe job events: %w", err)
	}
	return events, nil
}

func (uc *JobControlUseCase) Cancel(ctx context.Context, jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "cancel job", errors.New("job id is required"))
	}
	if err := uc.queue.PublishCancel(ctx, jobID); err != nil {
		return fmt.Errorf("publish job cancel: %w", err)
	}
	return nil
}
