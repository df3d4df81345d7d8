package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type PrePopulationRepository struct {
	db *sql.DB
}

func NewPrePopulationRepository(db *sql.DB) *PrePopulationRepository {
	return &PrePopulationRepository{db: db}
}

// SavePrePopulation overwrites the stored result for the user and form.
func (r *PrePopulationRepository) SavePrePopulation(ctx context.Context, result *domain.PrePopulationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal prepopulation: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin prepopulation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prepopulations (user_id, form_type, result, overall_confidence, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, form_type) DO UPDATE SET
			result = EXCLUDED.result,
			overall_confidence = EXCLUDED.overall_confidence,
			generated_at = EXCLUDED.generated_at
	`, result.UserID, string(result.FormType), payload, result.OverallConfidence, result.GeneratedAt); err != nil {
		return fmt.Errorf("upsert prepopulation: %w", err)
	}
	if err := completeStep(ctx, tx, result.UserID, stepFormPrePopulated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prepopulation tx: %w", err)
	}
	return nil
}

func (r *PrePopulationRepository) GetPrePopulation(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT result
		FROM prepopulations
		WHERE user_id = $1 AND form_type = $2
	`, userID, string(formType)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get prepopulation", err)
		}
		return nil, fmt.Errorf("query prepopulation: %w", err)
	}

	var result domain.PrePopulationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode prepopulation: %w", err)
	}
	return &result, nil
}
