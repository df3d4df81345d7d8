package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
)

const processingFailedMessage = "Unable to process your document right now"

// ProcessDocumentUseCase runs OCR, classification and automatic
// verification for one uploaded document, reporting progress as job events.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	ocr        ports.OCRReader
	classifier ports.DocumentClassifier
	verifier   ports.DocumentVerifier
	events     ports.JobEventPublisher
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	ocr ports.OCRReader,
	classifier ports.DocumentClassifier,
	verifier ports.DocumentVerifier,
	events ports.JobEventPublisher,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:       repo,
		ocr:        ocr,
		classifier: classifier,
		verifier:   verifier,
		events:     events,
		logger:     logger,
	}
}

func (uc *ProcessDocumentUseCase) Process(ctx context.Context, job domain.JobMessage) error {
	if job.DocumentID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "process job", errors.New("document_id is required"))
	}

	if err := uc.markStatus(ctx, job.DocumentID, domain.StatusProcessing, ""); err != nil {
		return uc.fail(ctx, job, fmt.Errorf("set status=processing: %w", err))
	}
	uc.emit(ctx, job, domain.JobProcessing, "processing started", nil)

	if _, err := uc.ocr.Process(ctx, job.DocumentID, job.DeclaredType); err != nil {
		return uc.fail(ctx, job, fmt.Errorf("ocr: %w", err))
	}
	uc.emit(ctx, job, domain.JobOCRCompleted, "text extracted", nil)
	if err := ctx.Err(); err != nil {
		return uc.fail(ctx, job, err)
	}

	classification := uc.classifier.Classify(ctx, job.DocumentID)
	if classification.Error != "" {
		return uc.fail(ctx, job, fmt.Errorf("classify: %s", classification.Error))
	}
	uc.emit(ctx, job, domain.JobClassified, "document classified", func(e *domain.JobEvent) {
		e.DocumentType = classification.DocumentType
	})
	if err := uc.markStatus(ctx, job.DocumentID, domain.StatusProcessed, ""); err != nil {
		return uc.fail(ctx, job, fmt.Errorf("set status=processed: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return uc.fail(ctx, job, err)
	}

	verification := uc.verifier.Verify(ctx, job.DocumentID, domain.VerificationAutomatic)
	uc.emit(ctx, job, domain.JobVerified, "verification finished", func(e *domain.JobEvent) {
		e.DocumentType = classification.DocumentType
		e.VerificationStatus = verification.Status
	})

	uc.emit(ctx, job, domain.JobCompleted, "processing completed", func(e *domain.JobEvent) {
		e.DocumentType = classification.DocumentType
		e.VerificationStatus = verification.Status
	})
	return nil
}

// fail marks the document failed and emits a terminal event. Cancellation
// is reported as "cancelled" rather than "failed".
func (uc *ProcessDocumentUseCase) fail(ctx context.Context, job domain.JobMessage, processErr error) error {
	status := domain.JobFailed
	message := processingFailedMessage
	docMessage := processErr.Error()
	if errors.Is(processErr, context.Canceled) {
		status = domain.JobCancelled
		message = "processing cancelled"
		docMessage = "processing cancelled"
	}

	uc.logger.Warn("document processing stopped",
		"job_id", job.JobID,
		"document_id", job.DocumentID,
		"status", status,
		"error", processErr,
	)

	if failErr := uc.markStatus(context.WithoutCancel(ctx), job.DocumentID, domain.StatusFailed, docMessage); failErr != nil {
		processErr = fmt.Errorf("%w; mark failed status: %v", processErr, failErr)
	}
	uc.emit(ctx, job, status, message, nil)
	return processErr
}

func (uc *ProcessDocumentUseCase) emit(ctx context.Context, job domain.JobMessage, status domain.JobStatus, message string, decorate func(*domain.JobEvent)) {
	event := domain.JobEvent{
		JobID:      job.JobID,
		DocumentID: job.DocumentID,
		Status:     status,
		Message:    message,
	}
	if decorate != nil {
		decorate(&event)
	}
	publishJobEvent(ctx, uc.events, uc.logger, event)
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}
