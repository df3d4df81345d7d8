package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/filecheck"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const DefaultUploadConcurrency = 3

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.JobQueue
	events  ports.JobEventPublisher
	audit   ports.AuditLog
	policy  filecheck.Policy
	gate    *semaphore.Weighted
	logger  *slog.Logger
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.JobQueue,
	events ports.JobEventPublisher,
	audit ports.AuditLog,
	policy filecheck.Policy,
	uploadConcurrency int,
	logger *slog.Logger,
) *IngestDocumentUseCase {
	if uploadConcurrency <= 0 {
		uploadConcurrency = DefaultUploadConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		events:  events,
		audit:   audit,
		policy:  policy,
		gate:    semaphore.NewWeighted(int64(uploadConcurrency)),
		logger:  logger,
	}
}

// Upload validates and stores a document, then queues it for processing.
// At most uploadConcurrency uploads write to storage at once; the rest wait.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	req domain.UploadRequest,
	body io.Reader,
) (*domain.UploadResult, error) {
	const op = "upload document"

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("user_id is required"))
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("file name is required"))
	}

	header, body, err := filecheck.Peek(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("read file header: %w", err))
	}
	if err := filecheck.Validate(header, req.FileName, req.SizeBytes, uc.policy); err != nil {
		return nil, err
	}

	if err := uc.gate.Acquire(ctx, 1); err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, op, fmt.Errorf("wait for upload slot: %w", err))
	}
	defer uc.gate.Release(1)

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s/%s_%s", sanitizeFilename(userID), id, sanitizeFilename(req.FileName))

	if uc.policy.MaxSizeBytes > 0 {
		body = io.LimitReader(body, uc.policy.MaxSizeBytes+1)
	}
	blob, err := uc.storage.Save(ctx, storageKey, body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if uc.policy.MaxSizeBytes > 0 && blob.Size > uc.policy.MaxSizeBytes {
		uc.discardBlob(ctx, storageKey)
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("%w: stream exceeds %d bytes", filecheck.ErrTooLarge, uc.policy.MaxSizeBytes))
	}

	now := time.Now().UTC()
	doc := &domain.DocumentMetadata{
		ID:           id,
		UserID:       userID,
		FileName:     req.FileName,
		ContentType:  req.ContentType,
		SizeBytes:    blob.Size,
		SHA256:       blob.SHA256,
		StoragePath:  storageKey,
		DeclaredType: req.DeclaredType,
		Status:       domain.StatusUploaded,
		UploadedAt:   now,
		UpdatedAt:    now,
	}

	if err := uc.repo.EnsureUser(ctx, userID); err != nil {
		uc.discardBlob(ctx, storageKey)
		return nil, fmt.Errorf("ensure user: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		uc.discardBlob(ctx, storageKey)
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, domain.AuditEvent{
		UserID:     userID,
		EntityType: "document",
		EntityID:   doc.ID,
		Action:     "uploaded",
		Details:    fmt.Sprintf("%s (%d bytes)", doc.FileName, doc.SizeBytes),
	})

	job := domain.JobMessage{
		JobID:        uuid.NewString(),
		DocumentID:   doc.ID,
		UserID:       userID,
		DeclaredType: req.DeclaredType,
		EnqueuedAt:   now,
	}
	if err := uc.queue.PublishJob(ctx, job); err != nil {
		if markErr := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusFailed, "processing could not be scheduled"); markErr != nil {
			return nil, fmt.Errorf("publish upload job: %w; mark failed status: %v", err, markErr)
		}
		return nil, fmt.Errorf("publish upload job: %w", err)
	}

	publishJobEvent(ctx, uc.events, uc.logger, domain.JobEvent{
		JobID:      job.JobID,
		DocumentID: doc.ID,
		Status:     domain.JobQueued,
		Message:    "document uploaded",
	})

	return &domain.UploadResult{
		Document: doc,
		JobID:    job.JobID,
		BlobPath: storageKey,
		Size:     blob.Size,
		Hash:     blob.SHA256,
	}, nil
}

func (uc *IngestDocumentUseCase) discardBlob(ctx context.Context, key string) {
	if err := uc.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		uc.logger.Warn("discard stored blob failed", "storage_key", key, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
