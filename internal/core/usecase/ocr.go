package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const defaultMaxOCRBytes = 50 << 20

type OCRUseCase struct {
	docs     ports.DocumentRepository
	storage  ports.ObjectStorage
	engine   ports.OCREngine
	results  ports.OCRRepository
	cache    ports.OCRCache
	maxBytes int64
	logger   *slog.Logger
}

func NewOCRUseCase(
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	engine ports.OCREngine,
	results ports.OCRRepository,
	cache ports.OCRCache,
	logger *slog.Logger,
) *OCRUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRUseCase{
		docs:     docs,
		storage:  storage,
		engine:   engine,
		results:  results,
		cache:    cache,
		maxBytes: defaultMaxOCRBytes,
		logger:   logger,
	}
}

// Get returns the stored OCR result, running OCR when none exists yet.
func (uc *OCRUseCase) Get(ctx context.Context, documentID string) (*domain.OCRResult, error) {
	if uc.cache != nil {
		cached, ok, err := uc.cache.Get(ctx, documentID)
		if err != nil {
			uc.logger.Warn("ocr cache read failed", "document_id", documentID, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	stored, err := uc.results.GetOCRResult(ctx, documentID)
	switch {
	case err == nil && stored.Status == domain.OCRCompleted:
		uc.putCache(ctx, stored)
		return stored, nil
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return uc.Process(ctx, documentID, "")
	default:
		return nil, fmt.Errorf("load ocr result: %w", err)
	}
}

// Process runs OCR and replaces any prior result for the document.
func (uc *OCRUseCase) Process(ctx context.Context, documentID string, declaredType domain.DocumentType) (*domain.OCRResult, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}

	docType := declaredType
	if docType == "" {
		docType = doc.EffectiveType()
	}

	content, err := uc.readContent(ctx, doc)
	if err != nil {
		return nil, err
	}

	extraction, err := uc.engine.Extract(ctx, doc, content)
	if err != nil {
		failed := &domain.OCRResult{
			DocumentID:   doc.ID,
			DocumentType: docType,
			Status:       domain.OCRFailed,
			Engine:       uc.engine.Name(),
			Error:        err.Error(),
			Fields:       []domain.ExtractedField{},
			ProcessedAt:  time.Now().UTC(),
		}
		if saveErr := uc.results.SaveOCRResult(ctx, failed); saveErr != nil {
			uc.logger.Warn("save failed ocr result", "document_id", doc.ID, "error", saveErr)
		}
		return nil, fmt.Errorf("extract document content: %w", err)
	}

	fields := make([]domain.ExtractedField, 0, len(extraction.Fields))
	for _, f := range extraction.Fields {
		f.Name = strings.TrimSpace(f.Name)
		f.Value = strings.TrimSpace(f.Value)
		if f.Name == "" {
			continue
		}
		if f.DataType == "" {
			f.DataType = domain.InferFieldDataType(f.Name, f.Value)
		}
		f.Confidence = clamp01(f.Confidence)
		fields = append(fields, f)
	}

	result := &domain.OCRResult{
		DocumentID:        doc.ID,
		DocumentType:      docType,
		RawText:           extraction.RawText,
		OverallConfidence: domain.MeanConfidence(fields),
		Fields:            fields,
		Status:            domain.OCRCompleted,
		Engine:            uc.engine.Name(),
		ProcessedAt:       time.Now().UTC(),
	}
	if err := uc.results.SaveOCRResult(ctx, result); err != nil {
		return nil, fmt.Errorf("save ocr result: %w", err)
	}
	uc.putCache(ctx, result)
	return result, nil
}

func (uc *OCRUseCase) readContent(ctx context.Context, doc *domain.DocumentMetadata) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read stored document: %w", err)
	}
	if int64(len(content)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read stored document", fmt.Errorf("document exceeds %d bytes", uc.maxBytes))
	}
	return content, nil
}

func (uc *OCRUseCase) putCache(ctx context.Context, result *domain.OCRResult) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Put(ctx, result); err != nil {
		uc.logger.Warn("ocr cache write failed", "document_id", result.DocumentID, "error", err)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
