package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
	"github.com/kirillkom/finaid-assistant/internal/core/rules"
)

const classifyBatchLimit = 4

type ClassifyDocumentUseCase struct {
	docs    ports.DocumentRepository
	ocr     ports.OCRReader
	catalog *rules.Catalog
	logger  *slog.Logger
}

func NewClassifyDocumentUseCase(
	docs ports.DocumentRepository,
	ocr ports.OCRReader,
	catalog *rules.Catalog,
	logger *slog.Logger,
) *ClassifyDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifyDocumentUseCase{
		docs:    docs,
		ocr:     ocr,
		catalog: catalog,
		logger:  logger,
	}
}

// Classify never fails: lookup or OCR problems yield "other" with zero
// confidence and Error set.
func (uc *ClassifyDocumentUseCase) Classify(ctx context.Context, documentID string) domain.ClassificationResult {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		uc.logger.Warn("classification lookup failed", "document_id", documentID, "error", err)
		return unclassified(documentID, "document not found")
	}

	ocr, err := uc.ocr.Get(ctx, documentID)
	if err != nil {
		uc.logger.Warn("classification ocr failed", "document_id", documentID, "error", err)
		return unclassified(documentID, "document text could not be read")
	}

	result := ScoreDocument(uc.catalog, ocr.RawText, doc.FileName)
	result.DocumentID = documentID

	if err := uc.docs.SetClassifiedType(ctx, documentID, result.DocumentType); err != nil {
		uc.logger.Warn("persist classified type failed", "document_id", documentID, "error", err)
	}
	return result
}

// ClassifyBatch classifies concurrently and returns results in input order.
func (uc *ClassifyDocumentUseCase) ClassifyBatch(ctx context.Context, documentIDs []string) []domain.ClassificationResult {
	results := make([]domain.ClassificationResult, len(documentIDs))
	var g errgroup.Group
	g.SetLimit(classifyBatchLimit)
	for i, id := range documentIDs {
		g.Go(func() error {
			results[i] = uc.Classify(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ScoreDocument scores text against every classification profile in the
// catalog. Ties go to the profile declared first.
func ScoreDocument(catalog *rules.Catalog, rawText, fileName string) domain.ClassificationResult {
	text := strings.ToLower(rawText)
	name := strings.ToLower(fileName)

	profiles := catalog.Profiles()
	scores := make(map[domain.DocumentType]float64, len(profiles))
	best := domain.DocTypeOther
	bestScore := 0.0

	for _, p := range profiles {
		found := 0
		seen := make(map[string]struct{}, len(p.Keywords))
		for _, kw := range p.Keywords {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			if strings.Contains(text, kw) {
				found++
			}
		}
		score := 0.0
		if len(seen) > 0 {
			score = float64(found) / float64(len(seen))
		}
		for _, hint := range p.FileNameHints {
			if name != "" && strings.Contains(name, hint) {
				score += catalog.FileNameBoost()
				break
			}
		}
		if score > 1 {
			score = 1
		}
		scores[p.Type] = score
		if score > bestScore {
			best = p.Type
			bestScore = score
		}
	}

	if bestScore < catalog.ClassificationFloor() {
		return domain.ClassificationResult{DocumentType: domain.DocTypeOther, Confidence: 0, Scores: scores}
	}
	return domain.ClassificationResult{DocumentType: best, Confidence: bestScore, Scores: scores}
}

func unclassified(documentID, message string) domain.ClassificationResult {
	return domain.ClassificationResult{
		DocumentID:   documentID,
		DocumentType: domain.DocTypeOther,
		Confidence:   0,
		Scores:       map[domain.DocumentType]float64{},
		Error:        message,
	}
}
