package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

// Side-effect helpers. Failures here are logged and never change the
// outcome of the operation that triggered them.

func recordAudit(ctx context.Context, audit ports.AuditLog, logger *slog.Logger, event domain.AuditEvent) {
	if audit == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if err := audit.Record(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("record audit event failed",
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
			"action", event.Action,
			"error", err,
		)
	}
}

func publishJobEvent(ctx context.Context, events ports.JobEventPublisher, logger *slog.Logger, event domain.JobEvent) {
	if events == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := events.PublishJobEvent(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("publish job event failed", "job_id", event.JobID, "status", event.Status, "error", err)
	}
}

func notify(ctx context.Context, notifier ports.Notifier, logger *slog.Logger, n domain.Notification) {
	if notifier == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	if err := notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		logger.Warn("send notification failed", "document_id", n.DocumentID, "kind", n.Kind, "error", err)
	}
}
