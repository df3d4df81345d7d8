package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type ProgressRepository struct {
	db *sql.DB
}

func NewProgressRepository(db *sql.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) CountDocumentsByStatus(ctx context.Context, userID string) (map[domain.DocumentStatus]int, error) {
	counts := make(map[domain.DocumentStatus]int)
	err := r.countBy(ctx, `
		SELECT status, COUNT(*)
		FROM documents
		WHERE user_id = $1 AND deleted_at IS NULL
		GROUP BY status
	`, userID, func(key string, n int) {
		counts[domain.DocumentStatus(key)] = n
	})
	if err != nil {
		return nil, fmt.Errorf("count documents by status: %w", err)
	}
	return counts, nil
}

func (r *ProgressRepository) CountVerificationsByStatus(ctx context.Context, userID string) (map[domain.VerificationStatus]int, error) {
	counts := make(map[domain.VerificationStatus]int)
	err := r.countBy(ctx, `
		SELECT v.status, COUNT(*)
		FROM document_verifications v
		JOIN documents d ON d.id = v.document_id
		WHERE d.user_id = $1 AND d.deleted_at IS NULL
		GROUP BY v.status
	`, userID, func(key string, n int) {
		counts[domain.VerificationStatus(key)] = n
	})
	if err != nil {
		return nil, fmt.Errorf("count verifications by status: %w", err)
	}
	return counts, nil
}

func (r *ProgressRepository) ApplicationStepCounts(ctx context.Context, userID string) (int, int, error) {
	var completed, total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(s.completed_at), COUNT(*)
		FROM application_steps s
		JOIN applications a ON a.id = s.application_id
		WHERE a.user_id = $1 AND a.deleted_at IS NULL
	`, userID).Scan(&completed, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count application steps: %w", err)
	}
	return completed, total, nil
}

func (r *ProgressRepository) ListPrePopulatedForms(ctx context.Context, userID string) ([]domain.FormType, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT form_type
		FROM prepopulations
		WHERE user_id = $1
		ORDER BY form_type
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query prepopulated forms: %w", err)
	}
	defer rows.Close()

	var forms []domain.FormType
	for rows.Next() {
		var form string
		if err := rows.Scan(&form); err != nil {
			return nil, fmt.Errorf("scan prepopulated form: %w", err)
		}
		forms = append(forms, domain.FormType(form))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prepopulated forms: %w", err)
	}
	return forms, nil
}

func (r *ProgressRepository) countBy(ctx context.Context, query, userID string, add func(key string, n int)) error {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		add(key, n)
	}
	return rows.Err()
}
