package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return m.Middleware("api", next)
	})
	router.Get("/v1/documents/{documentID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/documents/"+id, nil))
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/documents/{documentID}", "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestRecordUploadAndAssistant(t *testing.T) {
	m := NewHTTPServerMetrics("api")

	m.RecordUpload("api", 1024, nil)
	m.RecordUpload("api", 0, errors.New("bad magic bytes"))
	m.RecordAssistant("api", "chat", "rate_limited", time.Second)
	m.RecordTokenUsage("api", "chat", "", 10, 0)

	if got := testutil.ToFloat64(m.uploadsTotal.WithLabelValues("api", "accepted")); got != 1 {
		t.Fatalf("accepted uploads = %v", got)
	}
	if got := testutil.ToFloat64(m.uploadsTotal.WithLabelValues("api", "rejected")); got != 1 {
		t.Fatalf("rejected uploads = %v", got)
	}
	if got := testutil.ToFloat64(m.assistantTotal.WithLabelValues("api", "chat", "rate_limited")); got != 1 {
		t.Fatalf("assistant requests = %v", got)
	}
	if got := testutil.ToFloat64(m.llmTokensTotal.WithLabelValues("api", "chat", "in", "unknown")); got != 10 {
		t.Fatalf("prompt tokens = %v", got)
	}
}

func TestResilienceObserver(t *testing.T) {
	m := NewWorkerMetrics("worker")
	observer := m.Resilience()

	observer.ObserveRetry("nats.publish", 1)
	observer.ObserveRetry("nats.publish", 2)
	observer.ObserveBreakerState("nats.publish", "open")

	if got := testutil.ToFloat64(observer.retriesTotal.WithLabelValues("worker", "nats.publish")); got != 2 {
		t.Fatalf("retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(observer.breakerState.WithLabelValues("worker", "nats.publish")); got != 2 {
		t.Fatalf("breaker state = %v, want 2", got)
	}
}

func TestWorkerHandlerExposesJobMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartJob()
	m.FinishJob("worker", "completed", 2*time.Second)
	m.RecordVerification("worker", "auto_approved")
	m.RecordCancel("worker", true)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`finaid_worker_jobs_total{service="worker",status="completed"} 1`,
		`finaid_worker_verifications_total{service="worker",status="auto_approved"} 1`,
		`finaid_worker_cancel_requests_total{matched="true",service="worker"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
