package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kirillkom/finaid-assistant/internal/config"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
	"github.com/kirillkom/finaid-assistant/internal/observability/metrics"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartOverhead     = 1 << 20
	backpressureWait      = 250 * time.Millisecond
)

// BlobServer serves signed temporary links issued by the local blob store.
type BlobServer interface {
	Verify(key, expires, sig string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Services are the inbound use cases behind the HTTP API.
type Services struct {
	Ingest     ports.DocumentIngestor
	Files      ports.DocumentFiles
	OCR        ports.OCRReader
	Classifier ports.DocumentClassifier
	Verifier   ports.DocumentVerifier
	Forms      ports.FormPrePopulator
	Assistant  ports.FormAssistant
	Progress   ports.ProgressReader
	Jobs       ports.JobControl
	Blobs      BlobServer
}

type Router struct {
	svc Services

	maxUploadBytes   int64
	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	reviewerAPIToken string
	httpMetrics      *metrics.HTTPServerMetrics
}

func NewRouter(cfg config.Config, svc Services, httpMetrics *metrics.HTTPServerMetrics) *Router {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Router{
		svc:              svc,
		maxUploadBytes:   maxUpload,
		rateLimitRPS:     cfg.RateLimitRPS,
		rateLimitBurst:   cfg.RateLimitBurst,
		maxInFlight:      cfg.MaxInFlightRequest,
		reviewerAPIToken: cfg.ReviewerAPIToken,
		httpMetrics:      httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.httpMetrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.httpMetrics.Middleware("api", next)
		})
		r.Method(http.MethodGet, "/metrics", rt.httpMetrics.Handler())
	}
	r.Get("/healthz", rt.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.rateLimitRPS, rt.rateLimitBurst)
		})

		// Long-lived streams stay outside the in-flight gate.
		r.Get("/jobs/{jobID}/events", rt.streamJobEvents)
		r.Post("/assistant/chat/stream", rt.streamChat)

		r.Group(func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return backpressureMiddleware(next, rt.maxInFlight, backpressureWait)
			})

			r.Post("/documents", rt.uploadDocument)
			r.Post("/documents/classify", rt.classifyBatch)
			r.Route("/documents/{documentID}", func(r chi.Router) {
				r.Get("/", rt.getDocument)
				r.Delete("/", rt.deleteDocument)
				r.Get("/content", rt.downloadDocument)
				r.Get("/url", rt.temporaryURL)
				r.Get("/ocr", rt.getOCR)
				r.Post("/ocr", rt.processOCR)
				r.Post("/classify", rt.classifyDocument)
				r.Post("/verify", rt.verifyDocument)
				r.Get("/verification", rt.latestVerification)
				r.With(rt.reviewerAuthMiddleware).Post("/verification/approve", rt.approveVerification)
				r.With(rt.reviewerAuthMiddleware).Post("/verification/reject", rt.rejectVerification)
			})
			if rt.svc.Blobs != nil {
				r.Get("/blobs/*", rt.serveBlob)
			}

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Get("/progress", rt.progress)
				r.Post("/forms/{formType}/prepopulate", rt.generatePrePopulation)
				r.Get("/forms/{formType}/prepopulation", rt.getPrePopulation)
				r.Get("/forms/{formType}/prepopulation.xlsx", rt.exportPrePopulation)
			})

			r.Post("/assistant/chat", rt.chat)
			r.Get("/assistant/health", rt.assistantHealth)
			r.Delete("/jobs/{jobID}", rt.cancelJob)
		})
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// decodeOptionalJSON treats an empty body as an empty object.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
