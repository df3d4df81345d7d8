package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestSaveOCRResultUpserts(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewOCRRepository(db)

	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`(?s)INSERT INTO ocr_results .* ON CONFLICT \(document_id\) DO UPDATE`).
		WithArgs("doc-1", "w2", "Wages: 52,000.00", 0.9, []byte("[]"), "completed", "pdf_text_layer", "", processed).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveOCRResult(context.Background(), &domain.OCRResult{
		DocumentID:        "doc-1",
		DocumentType:      domain.DocTypeW2,
		RawText:           "Wages: 52,000.00",
		OverallConfidence: 0.9,
		Status:            domain.OCRCompleted,
		Engine:            "pdf_text_layer",
		ProcessedAt:       processed,
	})
	if err != nil {
		t.Fatalf("SaveOCRResult() error = %v", err)
	}
}

func TestGetOCRResult(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewOCRRepository(db)

	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM ocr_results").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"document_id", "document_type", "raw_text", "overall_confidence", "fields", "status", "engine", "error_message", "processed_at",
		}).AddRow(
			"doc-1", "w2", "Wages: 52,000.00", 0.9,
			[]byte(`[{"name":"Wages","value":"52,000.00","data_type":"currency","confidence":0.9}]`),
			"completed", "pdf_text_layer", "", processed,
		))

	result, err := repo.GetOCRResult(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetOCRResult() error = %v", err)
	}
	if result.Status != domain.OCRCompleted || len(result.Fields) != 1 || result.Fields[0].DataType != domain.FieldCurrency {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGetOCRResultNotFound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewOCRRepository(db)

	mock.ExpectQuery("FROM ocr_results").
		WithArgs("doc-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetOCRResult(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
