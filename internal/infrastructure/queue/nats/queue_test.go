package nats

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
)

func TestDecodeJob(t *testing.T) {
	job, err := decodeJob([]byte(`{"job_id":"job-1","document_id":"doc-1","user_id":"u","declared_type":"w2"}`))
	if err != nil {
		t.Fatalf("decodeJob() error = %v", err)
	}
	if job.DeclaredType != domain.DocTypeW2 {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := decodeJob([]byte(`{"job_id":"job-1"}`)); err == nil {
		t.Fatalf("expected error for missing document id")
	}
	if _, err := decodeJob([]byte(`doc-1`)); err == nil {
		t.Fatalf("expected error for legacy plain payload")
	}
}

func TestClassifyNATSError(t *testing.T) {
	if c := classifyNATSError(nats.ErrTimeout); !c.Retryable {
		t.Fatalf("expected timeout to be retryable")
	}
	if c := classifyNATSError(nats.ErrConnectionClosed); c.Retryable || !c.RecordFailure {
		t.Fatalf("expected closed connection to fail fast, got %+v", c)
	}
	if c := classifyNATSError(nats.ErrMaxPayload); c.Retryable || c.RecordFailure {
		t.Fatalf("expected payload errors to be caller errors, got %+v", c)
	}
	if err := asTemporary("nats.publish.jobs", errors.New("nats publish: " + nats.ErrTimeout.Error())); domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("plain text errors are not temporary")
	}
	if err := asTemporary("nats.publish.jobs", nats.ErrNoServers); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
}

func TestRunWorkersHandlesBufferedJobsAfterStop(t *testing.T) {
	msgs := make(chan *nats.Msg, 4)
	stop := make(chan struct{})
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	var mu sync.Mutex
	var handled []string
	finished := runWorkers(1, msgs, stop, func(msg *nats.Msg) {
		if string(msg.Data) == "job-0" {
			started <- struct{}{}
			<-release
		}
		mu.Lock()
		handled = append(handled, string(msg.Data))
		mu.Unlock()
	})

	msgs <- &nats.Msg{Data: []byte("job-0")}
	<-started
	for i := 1; i <= 4; i++ {
		msgs <- &nats.Msg{Data: []byte("job-" + string(rune('0'+i)))}
	}
	close(stop)
	close(release)

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("workers did not exit")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 5 {
		t.Fatalf("expected every buffered job handled, got %v", handled)
	}
}

// TestJobRoundTripAgainstNATS runs only when NATS_URL points at a live server.
func TestJobRoundTripAgainstNATS(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}
	subject := "finaid.test." + time.Now().Format("150405.000000")
	q, err := NewWithOptions(url, Options{
		JobsSubject:        subject,
		CancelSubject:      subject + ".cancel",
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
	})
	if err != nil {
		t.Fatalf("NewWithOptions() error = %v", err)
	}
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	go func() {
		_ = q.ConsumeJobs(ctx, 2, func(_ context.Context, job domain.JobMessage) error {
			mu.Lock()
			got = append(got, job.JobID)
			if len(got) == 2 {
				close(done)
			}
			mu.Unlock()
			return nil
		})
	}()

	cancels := make(chan string, 1)
	if err := q.SubscribeCancels(ctx, func(id string) { cancels <- id }); err != nil {
		t.Fatalf("SubscribeCancels() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	for _, id := range []string{"job-1", "job-2"} {
		if err := q.PublishJob(ctx, domain.JobMessage{JobID: id, DocumentID: "doc-" + id}); err != nil {
			t.Fatalf("PublishJob() error = %v", err)
		}
	}
	if err := q.PublishCancel(ctx, "job-9"); err != nil {
		t.Fatalf("PublishCancel() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("jobs not delivered, got %v", got)
	}
	select {
	case id := <-cancels:
		if id != "job-9" {
			t.Fatalf("unexpected cancel %q", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("cancel not delivered")
	}
}
