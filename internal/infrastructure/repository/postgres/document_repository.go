package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

// Application steps created for every new user, in display order.
var defaultApplicationSteps = []string{
	stepAccountCreated,
	stepDocumentsUploaded,
	stepDocumentsVerified,
	stepFormPrePopulated,
	stepApplicationSubmitted,
}

const (
	stepAccountCreated       = "account_created"
	stepDocumentsUploaded    = "documents_uploaded"
	stepDocumentsVerified    = "documents_verified"
	stepFormPrePopulated     = "form_prepopulated"
	stepApplicationSubmitted = "application_submitted"
)

type DocumentRepository struct {
	db        *sql.DB
	awardYear func() string
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db, awardYear: currentAwardYear}
}

// EnsureUser creates the user together with an application and its steps.
func (r *DocumentRepository) EnsureUser(ctx context.Context, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure user tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	created, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if created == 0 {
		return tx.Commit()
	}

	applicationID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO applications (id, user_id, award_year)
		VALUES ($1, $2, $3)
	`, applicationID, userID, r.awardYear()); err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	now := time.Now().UTC()
	for i, step := range defaultApplicationSteps {
		var completedAt any
		if step == stepAccountCreated {
			completedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO application_steps (application_id, step, position, completed_at)
			VALUES ($1, $2, $3, $4)
		`, applicationID, step, i+1, completedAt); err != nil {
			return fmt.Errorf("insert application step %s: %w", step, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ensure user tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.DocumentMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (
			id, user_id, file_name, content_type, size_bytes, sha256, storage_path,
			declared_type, classified_type, status, error_message, uploaded_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		doc.ID,
		doc.UserID,
		doc.FileName,
		doc.ContentType,
		doc.SizeBytes,
		doc.SHA256,
		doc.StoragePath,
		string(doc.DeclaredType),
		string(doc.ClassifiedType),
		string(doc.Status),
		doc.Error,
		doc.UploadedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if err := completeStep(ctx, r.db, doc.UserID, stepDocumentsUploaded); err != nil {
		return err
	}
	return nil
}

const documentColumns = `id, user_id, file_name, content_type, size_bytes, sha256, storage_path,
	declared_type, classified_type, status, error_message, uploaded_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.DocumentMetadata, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document by id", err)
		}
		return nil, fmt.Errorf("query document by id: %w", err)
	}
	return doc, nil
}

// ListByUser returns live documents, newest first, optionally filtered by status.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string, statuses ...domain.DocumentStatus) ([]domain.DocumentMetadata, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 AND deleted_at IS NULL`
	args := []any{userID}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		for _, status := range statuses {
			args = append(args, string(status))
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents by user: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentMetadata
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, error_message = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
	`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireAffected(res, "update document status")
}

func (r *DocumentRepository) SetClassifiedType(ctx context.Context, id string, docType domain.DocumentType) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET classified_type = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL
	`, id, string(docType), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document type: %w", err)
	}
	return requireAffected(res, "update document type")
}

func (r *DocumentRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, now)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	return requireAffected(res, "soft delete document")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentMetadata, error) {
	var (
		doc            domain.DocumentMetadata
		declaredType   string
		classifiedType string
		status         string
	)
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.FileName,
		&doc.ContentType,
		&doc.SizeBytes,
		&doc.SHA256,
		&doc.StoragePath,
		&declaredType,
		&classifiedType,
		&status,
		&doc.Error,
		&doc.UploadedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.DeclaredType = domain.DocumentType(declaredType)
	doc.ClassifiedType = domain.DocumentType(classifiedType)
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, op, sql.ErrNoRows)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// completeStep marks an application step done the first time it is reached.
func completeStep(ctx context.Context, db execer, userID, step string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE application_steps
		SET completed_at = $3
		WHERE step = $2
			AND completed_at IS NULL
			AND application_id IN (SELECT id FROM applications WHERE user_id = $1 AND deleted_at IS NULL)
	`, userID, step, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete application step %s: %w", step, err)
	}
	return nil
}

// currentAwardYear follows the federal aid cycle, which opens on October 1.
func currentAwardYear() string {
	now := time.Now().UTC()
	start := now.Year()
	if now.Month() < time.October {
		start--
	}
	return fmt.Sprintf("%d-%d", start+1, start+2)
}
