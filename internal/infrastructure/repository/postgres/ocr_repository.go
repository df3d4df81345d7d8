package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type OCRRepository struct {
	db *sql.DB
}

func NewOCRRepository(db *sql.DB) *OCRRepository {
	return &OCRRepository{db: db}
}

// SaveOCRResult keeps only the latest result for a document.
func (r *OCRRepository) SaveOCRResult(ctx context.Context, result *domain.OCRResult) error {
	fields, err := json.Marshal(nonNilFields(result.Fields))
	if err != nil {
		return fmt.Errorf("marshal ocr fields: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO ocr_results (
			document_id, document_type, raw_text, overall_confidence, fields, status, engine, error_message, processed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (document_id) DO UPDATE SET
			document_type = EXCLUDED.document_type,
			raw_text = EXCLUDED.raw_text,
			overall_confidence = EXCLUDED.overall_confidence,
			fields = EXCLUDED.fields,
			status = EXCLUDED.status,
			engine = EXCLUDED.engine,
			error_message = EXCLUDED.error_message,
			processed_at = EXCLUDED.processed_at
	`,
		result.DocumentID,
		string(result.DocumentType),
		result.RawText,
		result.OverallConfidence,
		fields,
		string(result.Status),
		result.Engine,
		result.Error,
		result.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert ocr result: %w", err)
	}
	return nil
}

func (r *OCRRepository) GetOCRResult(ctx context.Context, documentID string) (*domain.OCRResult, error) {
	var (
		result  domain.OCRResult
		docType string
		status  string
		fields  []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT document_id, document_type, raw_text, overall_confidence, fields, status, engine, error_message, processed_at
		FROM ocr_results
		WHERE document_id = $1
	`, documentID).Scan(
		&result.DocumentID,
		&docType,
		&result.RawText,
		&result.OverallConfidence,
		&fields,
		&status,
		&result.Engine,
		&result.Error,
		&result.ProcessedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get ocr result", err)
		}
		return nil, fmt.Errorf("query ocr result: %w", err)
	}
	if err := json.Unmarshal(fields, &result.Fields); err != nil {
		return nil, fmt.Errorf("decode ocr fields: %w", err)
	}
	result.DocumentType = domain.DocumentType(docType)
	result.Status = domain.OCRStatus(status)
	return &result, nil
}

func nonNilFields(fields []domain.ExtractedField) []domain.ExtractedField {
	if fields == nil {
		return []domain.ExtractedField{}
	}
	return fields
}
