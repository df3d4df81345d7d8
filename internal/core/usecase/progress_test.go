package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type progressRepoFake struct {
	docs      map[domain.DocumentStatus]int
	completed int
	total     int
	err       error
}

func (f *progressRepoFake) CountDocumentsByStatus(context.Context, string) (map[domain.DocumentStatus]int, error) {
	return f.docs, f.err
}

func (f *progressRepoFake) CountVerificationsByStatus(context.Context, string) (map[domain.VerificationStatus]int, error) {
	return map[domain.VerificationStatus]int{domain.VerificationAutoApproved: 2}, nil
}

func (f *progressRepoFake) ApplicationStepCounts(context.Context, string) (int, int, error) {
	return f.completed, f.total, nil
}

func (f *progressRepoFake) ListPrePopulatedForms(context.Context, string) ([]domain.FormType, error) {
	return []domain.FormType{domain.FormFAFSA}, nil
}

func TestProgressSummary(t *testing.T) {
	repo := &progressRepoFake{
		docs:      map[domain.DocumentStatus]int{domain.StatusVerified: 2, domain.StatusNeedsReview: 1},
		completed: 1,
		total:     3,
	}
	summary, err := NewProgressUseCase(repo).Summary(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if summary.TotalDocuments != 3 {
		t.Fatalf("expected 3 documents, got %d", summary.TotalDocuments)
	}
	if summary.CompletionPercent != 33.3 {
		t.Fatalf("expected 33.3%%, got %v", summary.CompletionPercent)
	}
	if len(summary.PrePopulatedForms) != 1 {
		t.Fatalf("expected prepopulated forms listed")
	}
}

func TestProgressSummaryError(t *testing.T) {
	repo := &progressRepoFake{err: errors.New("db down")}
	if _, err := NewProgressUseCase(repo).Summary(context.Background(), "user-1"); err == nil {
		t.Fatalf("expected error")
	}
}
