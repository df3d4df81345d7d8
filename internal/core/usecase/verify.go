package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
	"github.com/kirillkom/finaid-assistant/internal/core/rules"
)

const verificationUnavailableMessage = "We could not verify this document automatically. A reviewer will take a look."

type VerifyDocumentUseCase struct {
	docs          ports.DocumentRepository
	ocr           ports.OCRReader
	verifications ports.VerificationRepository
	audit         ports.AuditLog
	notifier      ports.Notifier
	catalog       *rules.Catalog
	now           func() time.Time
	logger        *slog.Logger
}

func NewVerifyDocumentUseCase(
	docs ports.DocumentRepository,
	ocr ports.OCRReader,
	verifications ports.VerificationRepository,
	audit ports.AuditLog,
	notifier ports.Notifier,
	catalog *rules.Catalog,
	logger *slog.Logger,
) *VerifyDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &VerifyDocumentUseCase{
		docs:          docs,
		ocr:           ocr,
		verifications: verifications,
		audit:         audit,
		notifier:      notifier,
		catalog:       catalog,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger,
	}
}

// Verify runs every enabled rule for the document's type. It always returns
// a result; failures outside a single rule become a manual-review result.
func (uc *VerifyDocumentUseCase) Verify(ctx context.Context, documentID string, verificationType domain.VerificationType) *domain.VerificationResult {
	if verificationType == "" {
		verificationType = domain.VerificationAutomatic
	}
	now := uc.now()

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		uc.logger.Error("verification document lookup failed", "document_id", documentID, "error", err)
		return uc.unavailable(documentID, "", verificationType, now)
	}

	ocr, err := uc.ocr.Get(ctx, documentID)
	if err != nil {
		uc.logger.Error("verification ocr failed", "document_id", documentID, "error", err)
		result := uc.unavailable(documentID, doc.UserID, verificationType, now)
		uc.persist(ctx, doc, result)
		return result
	}

	docType := doc.EffectiveType()
	enabled := uc.catalog.EnabledRules(docType)
	in := checkInput{doc: doc, ocr: ocr, now: now}

	checks := make([]domain.VerificationCheck, 0, len(enabled))
	for _, rule := range enabled {
		checks = append(checks, runCheck(rule, in))
	}

	result := &domain.VerificationResult{
		ID:               uuid.NewString(),
		DocumentID:       doc.ID,
		UserID:           doc.UserID,
		VerificationType: verificationType,
		Checks:           checks,
		CreatedAt:        now,
	}
	result.OverallScore, result.Issues = aggregateChecks(checks)
	if len(checks) == 0 {
		result.Issues = append(result.Issues, fmt.Sprintf("No verification rules are configured for %s documents", docType))
	}
	result.Status = domain.DetermineStatus(result.OverallScore, checks, result.Issues)
	result.RequiresManualReview = result.Status == domain.VerificationManualReviewRequired
	result.CompletedAt = &now

	uc.persist(ctx, doc, result)
	return result
}

// aggregateChecks returns the mean check confidence when every required
// check passed (0 otherwise) and the messages of all failed checks.
func aggregateChecks(checks []domain.VerificationCheck) (float64, []string) {
	var issues []string
	requiredPassed := true
	total := 0.0
	for _, c := range checks {
		total += c.Confidence
		if c.Passed {
			continue
		}
		if c.Required {
			requiredPassed = false
		}
		if len(c.Messages) > 0 {
			issues = append(issues, c.Messages...)
		} else {
			issues = append(issues, c.Details)
		}
	}
	if !requiredPassed || len(checks) == 0 {
		return 0, issues
	}
	return total / float64(len(checks)), issues
}

func (uc *VerifyDocumentUseCase) unavailable(documentID, userID string, vt domain.VerificationType, now time.Time) *domain.VerificationResult {
	return &domain.VerificationResult{
		ID:                   uuid.NewString(),
		DocumentID:           documentID,
		UserID:               userID,
		VerificationType:     vt,
		Status:               domain.VerificationManualReviewRequired,
		Checks:               []domain.VerificationCheck{},
		Issues:               []string{verificationUnavailableMessage},
		RequiresManualReview: true,
		CreatedAt:            now,
		CompletedAt:          &now,
	}
}

func (uc *VerifyDocumentUseCase) persist(ctx context.Context, doc *domain.DocumentMetadata, result *domain.VerificationResult) {
	if err := uc.verifications.ReplaceVerification(ctx, result); err != nil {
		uc.logger.Error("save verification result failed", "document_id", doc.ID, "error", err)
		return
	}

	docStatus := domain.StatusNeedsReview
	kind := domain.NotifyNeedsReview
	message := "Your document needs a quick review before it can be used."
	if result.Status == domain.VerificationAutoApproved {
		docStatus = domain.StatusVerified
		kind = domain.NotifyApproved
		message = "Your document was verified."
	}
	if err := uc.docs.UpdateStatus(ctx, doc.ID, docStatus, ""); err != nil {
		uc.logger.Error("update document status failed", "document_id", doc.ID, "status", docStatus, "error", err)
	}

	recordAudit(ctx, uc.audit, uc.logger, domain.AuditEvent{
		UserID:     doc.UserID,
		EntityType: "document_verification",
		EntityID:   result.ID,
		Action:     "verified",
		Details:    fmt.Sprintf("status=%s score=%.2f", result.Status, result.OverallScore),
	})
	notify(ctx, uc.notifier, uc.logger, domain.Notification{
		Kind:       kind,
		UserID:     doc.UserID,
		DocumentID: doc.ID,
		Message:    message,
	})
}

func (uc *VerifyDocumentUseCase) Approve(ctx context.Context, documentID, reviewer, notes string) (*domain.VerificationResult, error) {
	return uc.review(ctx, "approve verification", documentID, reviewer, notes, domain.VerificationApproved)
}

func (uc *VerifyDocumentUseCase) Reject(ctx context.Context, documentID, reviewer, reason string) (*domain.VerificationResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reject verification", errors.New("reason is required"))
	}
	return uc.review(ctx, "reject verification", documentID, reviewer, reason, domain.VerificationRejected)
}

func (uc *VerifyDocumentUseCase) review(
	ctx context.Context,
	op, documentID, reviewer, notes string,
	status domain.VerificationStatus,
) (*domain.VerificationResult, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("reviewer is required"))
	}

	result, err := uc.verifications.LatestVerification(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("%s: load latest verification: %w", op, err)
	}

	now := uc.now()
	result.Status = status
	result.VerificationType = domain.VerificationManual
	result.ReviewedBy = reviewer
	result.ReviewNotes = strings.TrimSpace(notes)
	result.RequiresManualReview = false
	result.CompletedAt = &now

	if err := uc.verifications.UpdateVerification(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: save verification: %w", op, err)
	}

	docStatus := domain.StatusVerified
	kind := domain.NotifyApproved
	message := "Your document was approved by a reviewer."
	action := "approved"
	if status == domain.VerificationRejected {
		docStatus = domain.StatusRejected
		kind = domain.NotifyRejected
		message = "Your document was not accepted. Please upload a clearer copy."
		action = "rejected"
	}
	if err := uc.docs.UpdateStatus(ctx, documentID, docStatus, ""); err != nil {
		return nil, fmt.Errorf("%s: update document status: %w", op, err)
	}

	recordAudit(ctx, uc.audit, uc.logger, domain.AuditEvent{
		UserID:     result.UserID,
		EntityType: "document_verification",
		EntityID:   result.ID,
		Action:     action,
		Details:    fmt.Sprintf("reviewer=%s", reviewer),
	})
	notify(ctx, uc.notifier, uc.logger, domain.Notification{
		Kind:       kind,
		UserID:     result.UserID,
		DocumentID: documentID,
		Message:    message,
	})
	return result, nil
}

func (uc *VerifyDocumentUseCase) Latest(ctx context.Context, documentID string) (*domain.VerificationResult, error) {
	result, err := uc.verifications.LatestVerification(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load latest verification: %w", err)
	}
	return result, nil
}
