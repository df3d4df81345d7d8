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

	"github.com/kirillkom/finaid-assistant/internal/bootstrap"
	"github.com/kirillkom/finaid-assistant/internal/config"
	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/observability/logging"
	"github.com/kirillkom/finaid-assistant/internal/observability/metrics"
)

const jobTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:   logger,
		Observer: workerMetrics.Resilience(),
		OnVerification: func(status domain.VerificationStatus) {
			workerMetrics.RecordVerification("worker", string(status))
		},
	})
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := app.Queue.SubscribeCancels(ctx, func(jobID string) {
		matched := app.Registry.Cancel(jobID)
		workerMetrics.RecordCancel("worker", matched)
		logger.Info("cancel requested", "job_id", jobID, "running_here", matched)
	}); err != nil {
		logger.Error("worker cancel subscribe error", "error", err)
		os.Exit(1)
	}

	handle := func(handlerCtx context.Context, job domain.JobMessage) error {
		if !job.EnqueuedAt.IsZero() {
			workerMetrics.ObserveQueueLag("worker", time.Since(job.EnqueuedAt))
		}
		jobCtx, done := app.Registry.Start(handlerCtx, job.JobID)
		defer done()
		jobCtx, cancel := context.WithTimeout(jobCtx, jobTimeout)
		defer cancel()

		workerMetrics.StartJob()
		start := time.Now()
		err := app.ProcessUC.Process(jobCtx, job)
		workerMetrics.FinishJob("worker", jobOutcome(err), time.Since(start))
		return err
	}

	logger.Info("worker consuming jobs", "subject", cfg.NATSJobsSubject, "concurrency", cfg.WorkerConcurrency)
	if err := app.Queue.ConsumeJobs(ctx, cfg.WorkerConcurrency, handle); err != nil {
		logger.Error("worker consume error", "error", err)
	}
	logger.Info("worker stopped")
}

func jobOutcome(err error) string {
	switch {
	case err == nil:
		return string(domain.JobCompleted)
	case errors.Is(err, context.Canceled):
		return string(domain.JobCancelled)
	default:
		return string(domain.JobFailed)
	}
}
