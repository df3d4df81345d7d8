package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const (
	DefaultTemporaryURLTTL = 15 * time.Minute
	MaxTemporaryURLTTL     = 7 * 24 * time.Hour
)

type DocumentFilesUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	cache   ports.OCRCache
	audit   ports.AuditLog
	logger  *slog.Logger
}

func NewDocumentFilesUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	cache ports.OCRCache,
	audit ports.AuditLog,
	logger *slog.Logger,
) *DocumentFilesUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentFilesUseCase{
		repo:    repo,
		storage: storage,
		cache:   cache,
		audit:   audit,
		logger:  logger,
	}
}

func (uc *DocumentFilesUseCase) Get(ctx context.Context, documentID string) (*domain.DocumentMetadata, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (uc *DocumentFilesUseCase) Download(ctx context.Context, documentID string) (*domain.DocumentMetadata, io.ReadCloser, error) {
	doc, err := uc.Get(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open stored document: %w", err)
	}
	return doc, rc, nil
}

// Delete removes the blob and soft-deletes the metadata. It reports false
// when the document does not exist.
func (uc *DocumentFilesUseCase) Delete(ctx context.Context, documentID string) (bool, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get document: %w", err)
	}
	if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
		return false, fmt.Errorf("delete stored document: %w", err)
	}
	if err := uc.repo.SoftDelete(ctx, doc.ID); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("soft delete document: %w", err)
	}
	if uc.cache != nil {
		if err := uc.cache.Invalidate(ctx, doc.ID); err != nil {
			uc.logger.Warn("invalidate ocr cache failed", "document_id", doc.ID, "error", err)
		}
	}
	recordAudit(ctx, uc.audit, uc.logger, domain.AuditEvent{
		UserID:     doc.UserID,
		EntityType: "document",
		EntityID:   doc.ID,
		Action:     "deleted",
	})
	return true, nil
}

func (uc *DocumentFilesUseCase) TemporaryURL(ctx context.Context, documentID string, ttl time.Duration) (*domain.TemporaryURL, error) {
	if ttl <= 0 {
		ttl = DefaultTemporaryURLTTL
	}
	if ttl > MaxTemporaryURLTTL {
		return nil, domain.WrapError(domain.ErrInvalidInput, "temporary url", fmt.Errorf("ttl must not exceed %s", MaxTemporaryURLTTL))
	}
	doc, err := uc.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	url, err := uc.storage.TemporaryURL(ctx, doc.StoragePath, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign temporary url: %w", err)
	}
	return &domain.TemporaryURL{URL: url, ExpiresAt: time.Now().UTC().Add(ttl)}, nil
}
