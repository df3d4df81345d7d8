package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

type ProgressUseCase struct {
	repo ports.ProgressRepository
}

func NewProgressUseCase(repo ports.ProgressRepository) *ProgressUseCase {
	return &ProgressUseCase{repo: repo}
}

func (uc *ProgressUseCase) Summary(ctx context.Context, userID string) (*domain.ProgressSummary, error) {
	docs, err := uc.repo.CountDocumentsByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	verifications, err := uc.repo.CountVerificationsByStatus(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count verifications: %w", err)
	}
	completed, total, err := uc.repo.ApplicationStepCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count application steps: %w", err)
	}
	forms, err := uc.repo.ListPrePopulatedForms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list prepopulated forms: %w", err)
	}

	summary := &domain.ProgressSummary{
		UserID:            userID,
		DocumentsByStatus: docs,
		Verifications:     verifications,
		StepsCompleted:    completed,
		StepsTotal:        total,
		PrePopulatedForms: forms,
	}
	for _, n := range docs {
		summary.TotalDocuments += n
	}
	if total > 0 {
		summary.CompletionPercent = math.Round(float64(completed)/float64(total)*1000) / 10
	}
	return summary, nil
}
