package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

const (
	DefaultJobsSubject   = "finaid.jobs"
	DefaultCancelSubject = "finaid.jobs.cancel"
	DefaultNotifySubject = "finaid.notifications"

	workersQueueGroup = "workers"
)

// Queue carries upload jobs (queue group), cancellation requests (fan-out to
// every worker) and user notifications.
type Queue struct {
	conn          *nats.Conn
	jobsSubject   string
	cancelSubject string
	notifySubject string
	executor      *resilience.Executor
	logger        *slog.Logger
}

type Options struct {
	JobsSubject          string
	CancelSubject        string
	NotifySubject        string
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url string) (*Queue, error) {
	return NewWithOptions(url, Options{})
}

func NewWithOptions(url string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("finaid-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		jobsSubject:   orDefault(options.JobsSubject, DefaultJobsSubject),
		cancelSubject: orDefault(options.CancelSubject, DefaultCancelSubject),
		notifySubject: orDefault(options.NotifySubject, DefaultNotifySubject),
		executor:      options.ResilienceExecutor,
		logger:        logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishJob(ctx context.Context, job domain.JobMessage) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	return q.publishJSON(ctx, "jobs", q.jobsSubject, job)
}

func (q *Queue) PublishCancel(ctx context.Context, jobID string) error {
	return q.publishJSON(ctx, "cancel", q.cancelSubject, cancelMessage{JobID: jobID})
}

// Notify publishes a user notification for the delivery service.
func (q *Queue) Notify(ctx context.Context, n domain.Notification) error {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	return q.publishJSON(ctx, "notify", q.notifySubject, n)
}

type cancelMessage struct {
	JobID string `json:"job_id"`
}

func (q *Queue) publishJSON(ctx context.Context, kind, subject string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", subject, err)
	}
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, raw); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, publishOperation(kind), call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return asTemporary(publishOperation(kind), err)
}

// ConsumeJobs delivers jobs to a pool of workers until ctx is done. On
// shutdown the subscription is drained and every job already delivered,
// including those still buffered, runs to completion; per-job cancellation
// is the handler's concern.
func (q *Queue) ConsumeJobs(ctx context.Context, workers int, handler func(context.Context, domain.JobMessage) error) error {
	if workers <= 0 {
		workers = 1
	}
	msgs := make(chan *nats.Msg, workers)
	sub, err := q.conn.ChanQueueSubscribe(q.jobsSubject, workersQueueGroup, msgs)
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	jobCtx := context.WithoutCancel(ctx)
	stop := make(chan struct{})
	finished := runWorkers(workers, msgs, stop, func(msg *nats.Msg) {
		q.handleJob(jobCtx, msg, handler)
	})

	<-ctx.Done()
	drainErr := drainSubscription(sub, drainTimeout)
	close(stop)
	<-finished
	if drainErr != nil {
		return fmt.Errorf("nats drain subscription: %w", drainErr)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

const drainTimeout = 30 * time.Second

// runWorkers handles msgs on n goroutines. After stop is closed each worker
// empties what is left in msgs before exiting. The returned channel closes
// once every worker is done.
func runWorkers(n int, msgs <-chan *nats.Msg, stop <-chan struct{}, handle func(*nats.Msg)) <-chan struct{} {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case msg := <-msgs:
					handle(msg)
				case <-stop:
					for {
						select {
						case msg := <-msgs:
							handle(msg)
						default:
							return
						}
					}
				}
			}
		}()
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	return finished
}

// drainSubscription stops new deliveries and waits until in-flight ones have
// been pushed into the subscription channel. Past timeout the subscription
// is dropped outright.
func drainSubscription(sub *nats.Subscription, timeout time.Duration) error {
	if err := sub.Drain(); err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			_ = sub.Unsubscribe()
			return errors.New("drain timed out")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return nil
}

func (q *Queue) handleJob(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.JobMessage) error) {
	job, err := decodeJob(msg.Data)
	if err != nil {
		q.logger.Error("discarding malformed job message", "error", err)
		return
	}
	if err := handler(ctx, job); err != nil {
		q.logger.Error("worker handler error", "job_id", job.JobID, "document_id", job.DocumentID, "error", err)
	}
}

// SubscribeCancels calls onCancel for every cancellation request until ctx is done.
func (q *Queue) SubscribeCancels(ctx context.Context, onCancel func(jobID string)) error {
	sub, err := q.conn.Subscribe(q.cancelSubject, func(msg *nats.Msg) {
		var m cancelMessage
		if err := json.Unmarshal(msg.Data, &m); err != nil || strings.TrimSpace(m.JobID) == "" {
			q.logger.Warn("discarding malformed cancel message", "error", err)
			return
		}
		onCancel(m.JobID)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe cancel: %w", err)
	}
	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			q.logger.Warn("nats unsubscribe cancel failed", "error", err)
		}
	}()
	return nil
}

func decodeJob(raw []byte) (domain.JobMessage, error) {
	var job domain.JobMessage
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.JobMessage{}, fmt.Errorf("decode job: %w", err)
	}
	if job.JobID == "" || job.DocumentID == "" {
		return domain.JobMessage{}, errors.New("decode job: job_id and document_id are required")
	}
	return job, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
