package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/finaid-assistant/internal/adapters/http"
	"github.com/kirillkom/finaid-assistant/internal/bootstrap"
	"github.com/kirillkom/finaid-assistant/internal/config"
	"github.com/kirillkom/finaid-assistant/internal/observability/logging"
	"github.com/kirillkom/finaid-assistant/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics("api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:        logger,
		Observer:      httpMetrics.Resilience(),
		WithAssistant: true,
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Ingest:     app.IngestUC,
		Files:      app.FilesUC,
		OCR:        app.OCRUC,
		Classifier: app.ClassifyUC,
		Verifier:   app.VerifyUC,
		Forms:      app.FormsUC,
		Assistant:  app.AssistantUC,
		Progress:   app.ProgressUC,
		Jobs:       app.JobsUC,
		Blobs:      app.Blobs,
	}, httpMetrics).Handler()

	// No WriteTimeout: SSE streams stay open for the life of a job.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
