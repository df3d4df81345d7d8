package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, req domain.UploadRequest, body io.Reader) (*domain.UploadResult, error)
}

// DocumentFiles serves stored document content.
type DocumentFiles interface {
	Get(ctx context.Context, documentID string) (*domain.DocumentMetadata, error)
	Download(ctx context.Context, documentID string) (*domain.DocumentMetadata, io.ReadCloser, error)
	Delete(ctx context.Context, documentID string) (bool, error)
	TemporaryURL(ctx context.Context, documentID string, ttl time.Duration) (*domain.TemporaryURL, error)
}

// JobProcessor runs one upload job end to end.
type JobProcessor interface {
	Process(ctx context.Context, job domain.JobMessage) error
}

// OCRReader returns OCR output for a document, running OCR when needed.
type OCRReader interface {
	Get(ctx context.Context, documentID string) (*domain.OCRResult, error)
	Process(ctx context.Context, documentID string, declaredType domain.DocumentType) (*domain.OCRResult, error)
}

type DocumentClassifier interface {
	Classify(ctx context.Context, documentID string) domain.ClassificationResult
	ClassifyBatch(ctx context.Context, documentIDs []string) []domain.ClassificationResult
}

type DocumentVerifier interface {
	Verify(ctx context.Context, documentID string, verificationType domain.VerificationType) *domain.VerificationResult
	Approve(ctx context.Context, documentID, reviewer, notes string) (*domain.VerificationResult, error)
	Reject(ctx context.Context, documentID, reviewer, reason string) (*domain.VerificationResult, error)
	Latest(ctx context.Context, documentID string) (*domain.VerificationResult, error)
}

type FormPrePopulator interface {
	Generate(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error)
	Get(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error)
	Export(ctx context.Context, userID string, formType domain.FormType, w io.Writer) error
}

type FormAssistant interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
	Stream(ctx context.Context, req domain.ChatRequest) (iter.Seq2[string, error], error)
	Health(ctx context.Context) error
}

type ProgressReader interface {
	Summary(ctx context.Context, userID string) (*domain.ProgressSummary, error)
}

// JobControl exposes job status streams and per-job cancellation.
type JobControl interface {
	Events(ctx context.Context, jobID string) (<-chan domain.JobEvent, error)
	Cancel(ctx context.Context, jobID string) error
}
