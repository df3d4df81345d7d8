package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type VerificationRepository struct {
	db *sql.DB
}

func NewVerificationRepository(db *sql.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// ReplaceVerification drops earlier results for the document and stores the new one.
func (r *VerificationRepository) ReplaceVerification(ctx context.Context, result *domain.VerificationResult) error {
	checks, issues, err := encodeVerification(result)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin verification tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_verifications WHERE document_id = $1`, result.DocumentID); err != nil {
		return fmt.Errorf("delete previous verifications: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO document_verifications (
			id, document_id, user_id, verification_type, status, overall_score,
			checks, issues, requires_manual_review, reviewed_by, review_notes, created_at, completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		result.ID,
		result.DocumentID,
		result.UserID,
		string(result.VerificationType),
		string(result.Status),
		result.OverallScore,
		checks,
		issues,
		result.RequiresManualReview,
		result.ReviewedBy,
		result.ReviewNotes,
		result.CreatedAt,
		result.CompletedAt,
	); err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}
	if isVerifiedStatus(result.Status) {
		if err := completeStep(ctx, tx, result.UserID, stepDocumentsVerified); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit verification tx: %w", err)
	}
	return nil
}

// UpdateVerification records a reviewer decision on an existing result.
func (r *VerificationRepository) UpdateVerification(ctx context.Context, result *domain.VerificationResult) error {
	checks, issues, err := encodeVerification(result)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE document_verifications
		SET verification_type = $2,
			status = $3,
			overall_score = $4,
			checks = $5,
			issues = $6,
			requires_manual_review = $7,
			reviewed_by = $8,
			review_notes = $9,
			completed_at = $10
		WHERE id = $1
	`,
		result.ID,
		string(result.VerificationType),
		string(result.Status),
		result.OverallScore,
		checks,
		issues,
		result.RequiresManualReview,
		result.ReviewedBy,
		result.ReviewNotes,
		result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "update verification", sql.ErrNoRows)
	}
	if isVerifiedStatus(result.Status) {
		return completeStep(ctx, r.db, result.UserID, stepDocumentsVerified)
	}
	return nil
}

func (r *VerificationRepository) LatestVerification(ctx context.Context, documentID string) (*domain.VerificationResult, error) {
	var (
		result           domain.VerificationResult
		verificationType string
		status           string
		checks           []byte
		issues           []byte
		completedAt      sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, document_id, user_id, verification_type, status, overall_score,
			checks, issues, requires_manual_review, reviewed_by, review_notes, created_at, completed_at
		FROM document_verifications
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID).Scan(
		&result.ID,
		&result.DocumentID,
		&result.UserID,
		&verificationType,
		&status,
		&result.OverallScore,
		&checks,
		&issues,
		&result.RequiresManualReview,
		&result.ReviewedBy,
		&result.ReviewNotes,
		&result.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get latest verification", err)
		}
		return nil, fmt.Errorf("query latest verification: %w", err)
	}
	if err := json.Unmarshal(checks, &result.Checks); err != nil {
		return nil, fmt.Errorf("decode verification checks: %w", err)
	}
	if err := json.Unmarshal(issues, &result.Issues); err != nil {
		return nil, fmt.Errorf("decode verification issues: %w", err)
	}
	result.VerificationType = domain.VerificationType(verificationType)
	result.Status = domain.VerificationStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		result.CompletedAt = &t
	}
	return &result, nil
}

func encodeVerification(result *domain.VerificationResult) ([]byte, []byte, error) {
	checks := result.Checks
	if checks == nil {
		checks = []domain.VerificationCheck{}
	}
	issues := result.Issues
	if issues == nil {
		issues = []string{}
	}
	rawChecks, err := json.Marshal(checks)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal verification checks: %w", err)
	}
	rawIssues, err := json.Marshal(issues)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal verification issues: %w", err)
	}
	return rawChecks, rawIssues, nil
}

func isVerifiedStatus(status domain.VerificationStatus) bool {
	return status == domain.VerificationAutoApproved || status == domain.VerificationApproved
}
