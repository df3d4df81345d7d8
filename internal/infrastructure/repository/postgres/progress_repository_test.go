package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestProgressCounts(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewProgressRepository(db)
	ctx := context.Background()

	mock.ExpectQuery("FROM documents").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("processed", 2).
			AddRow("verified", 1))
	mock.ExpectQuery("FROM document_verifications").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("auto_approved", 1))
	mock.ExpectQuery("FROM application_steps").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"completed", "total"}).AddRow(2, 5))
	mock.ExpectQuery("FROM prepopulations").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"form_type"}).AddRow("fafsa"))

	docs, err := repo.CountDocumentsByStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountDocumentsByStatus() error = %v", err)
	}
	if docs[domain.StatusProcessed] != 2 || docs[domain.StatusVerified] != 1 {
		t.Fatalf("unexpected document counts: %+v", docs)
	}

	verifications, err := repo.CountVerificationsByStatus(ctx, "user-1")
	if err != nil {
		t.Fatalf("CountVerificationsByStatus() error = %v", err)
	}
	if verifications[domain.VerificationAutoApproved] != 1 {
		t.Fatalf("unexpected verification counts: %+v", verifications)
	}

	completed, total, err := repo.ApplicationStepCounts(ctx, "user-1")
	if err != nil {
		t.Fatalf("ApplicationStepCounts() error = %v", err)
	}
	if completed != 2 || total != 5 {
		t.Fatalf("steps = %d/%d, want 2/5", completed, total)
	}

	forms, err := repo.ListPrePopulatedForms(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListPrePopulatedForms() error = %v", err)
	}
	if len(forms) != 1 || forms[0] != domain.FormFAFSA {
		t.Fatalf("unexpected forms: %+v", forms)
	}
}

func TestAuditRecordFillsDefaults(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs(sqlmock.AnyArg(), "user-1", "document", "doc-1", "uploaded", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Record(context.Background(), domain.AuditEvent{
		UserID:     "user-1",
		EntityType: "document",
		EntityID:   "doc-1",
		Action:     "uploaded",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}
