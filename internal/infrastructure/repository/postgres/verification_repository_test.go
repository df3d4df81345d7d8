package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func sampleVerification(status domain.VerificationStatus) *domain.VerificationResult {
	done := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &domain.VerificationResult{
		ID:               "ver-1",
		DocumentID:       "doc-1",
		UserID:           "user-1",
		VerificationType: domain.VerificationAutomatic,
		Status:           status,
		OverallScore:     0.97,
		Checks: []domain.VerificationCheck{
			{RuleName: "w2_required_fields", CheckType: domain.CheckRequiredFields, Required: true, Passed: true, Confidence: 1},
		},
		CreatedAt:   done,
		CompletedAt: &done,
	}
}

func TestReplaceVerificationDeletesThenInsertsInTx(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewVerificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_verifications").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO document_verifications").
		WithArgs("ver-1", "doc-1", "user-1", "automatic", "auto_approved", 0.97,
			sqlmock.AnyArg(), []byte("[]"), false, "", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE application_steps").
		WithArgs("user-1", stepDocumentsVerified, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ReplaceVerification(context.Background(), sampleVerification(domain.VerificationAutoApproved)); err != nil {
		t.Fatalf("ReplaceVerification() error = %v", err)
	}
}

func TestReplaceVerificationRollsBackOnInsertFailure(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewVerificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM document_verifications").
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO document_verifications").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.ReplaceVerification(context.Background(), sampleVerification(domain.VerificationManualReviewRequired))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestUpdateVerificationMissingRow(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewVerificationRepository(db)

	mock.ExpectExec("UPDATE document_verifications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateVerification(context.Background(), sampleVerification(domain.VerificationApproved))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestVerificationDecodesJSON(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewVerificationRepository(db)

	created := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM document_verifications").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "user_id", "verification_type", "status", "overall_score",
			"checks", "issues", "requires_manual_review", "reviewed_by", "review_notes", "created_at", "completed_at",
		}).AddRow(
			"ver-1", "doc-1", "user-1", "automatic", "manual_review_required", 0.7,
			[]byte(`[{"rule_name":"w2_date_range","check_type":"date_range_check","required":false,"passed":false,"confidence":0.4}]`),
			[]byte(`["document is older than 2 years"]`),
			true, "", "", created, nil,
		))

	result, err := repo.LatestVerification(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("LatestVerification() error = %v", err)
	}
	if result.Status != domain.VerificationManualReviewRequired || !result.RequiresManualReview {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Checks) != 1 || result.Checks[0].CheckType != domain.CheckDateRange {
		t.Fatalf("unexpected checks: %+v", result.Checks)
	}
	if len(result.Issues) != 1 || result.CompletedAt != nil {
		t.Fatalf("unexpected issues or completion: %+v", result)
	}
}

func TestLatestVerificationNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewVerificationRepository(db)

	mock.ExpectQuery("FROM document_verifications").
		WithArgs("doc-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.LatestVerification(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
