package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	channelPrefix = "finaid:jobs:"
	lastEventTTL  = time.Hour
	subscriberBuf = 16
)

// JobEventBus publishes job events on finaid:jobs:<job id> and remembers the
// latest one so late subscribers start from the current state.
type JobEventBus struct {
	rdb    *goredis.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewJobEventBus(rdb *goredis.Client, logger *slog.Logger) (*JobEventBus, error) {
	if rdb == nil {
		return nil, errors.New("redis job events: client is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobEventBus{rdb: rdb, logger: logger, now: time.Now}, nil
}

func (b *JobEventBus) PublishJobEvent(ctx context.Context, event domain.JobEvent) error {
	if event.At.IsZero() {
		event.At = b.now().UTC()
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}

	pipe := b.rdb.TxPipeline()
	pipe.Set(ctx, lastKey(event.JobID), raw, lastEventTTL)
	pipe.Publish(ctx, channel(event.JobID), raw)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	return nil
}

// SubscribeJobEvents streams events for jobID until ctx ends or a terminal
// status arrives; the channel is then closed.
func (b *JobEventBus) SubscribeJobEvents(ctx context.Context, jobID string) (<-chan domain.JobEvent, error) {
	sub := b.rdb.Subscribe(ctx, channel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan domain.JobEvent, subscriberBuf)
	go func() {
		defer close(out)
		defer sub.Close()

		if last, ok := b.lastEvent(ctx, jobID); ok {
			if !send(ctx, out, last) || last.Status.Terminal() {
				return
			}
		}

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				var event domain.JobEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					b.logger.Warn("bad job event payload", "job_id", jobID, "error", err)
					continue
				}
				if !send(ctx, out, event) || event.Status.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *JobEventBus) lastEvent(ctx context.Context, jobID string) (domain.JobEvent, bool) {
	raw, err := b.rdb.Get(ctx, lastKey(jobID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			b.logger.Warn("read last job event failed", "job_id", jobID, "error", err)
		}
		return domain.JobEvent{}, false
	}
	var event domain.JobEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.JobEvent{}, false
	}
	return event, true
}

func send(ctx context.Context, out chan<- domain.JobEvent, event domain.JobEvent) bool {
	select {
	case out <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func channel(jobID string) string { return channelPrefix + jobID }

func lastKey(jobID string) string { return channelPrefix + jobID + ":last" }
