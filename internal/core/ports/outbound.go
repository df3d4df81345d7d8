package ports

import (
	"context"
	"io"
	"iter"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	EnsureUser(ctx context.Context, userID string) error
	Create(ctx context.Context, doc *domain.DocumentMetadata) error
	GetByID(ctx context.Context, id string) (*domain.DocumentMetadata, error)
	ListByUser(ctx context.Context, userID string, statuses ...domain.DocumentStatus) ([]domain.DocumentMetadata, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetClassifiedType(ctx context.Context, id string, docType domain.DocumentType) error
	SoftDelete(ctx context.Context, id string) error
}

// OCRRepository stores the latest OCR result per document.
type OCRRepository interface {
	SaveOCRResult(ctx context.Context, result *domain.OCRResult) error
	GetOCRResult(ctx context.Context, documentID string) (*domain.OCRResult, error)
}

// VerificationRepository keeps one verification result per document.
type VerificationRepository interface {
	ReplaceVerification(ctx context.Context, result *domain.VerificationResult) error
	UpdateVerification(ctx context.Context, result *domain.VerificationResult) error
	LatestVerification(ctx context.Context, documentID string) (*domain.VerificationResult, error)
}

type PrePopulationRepository interface {
	SavePrePopulation(ctx context.Context, result *domain.PrePopulationResult) error
	GetPrePopulation(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error)
}

type ProgressRepository interface {
	CountDocumentsByStatus(ctx context.Context, userID string) (map[domain.DocumentStatus]int, error)
	CountVerificationsByStatus(ctx context.Context, userID string) (map[domain.VerificationStatus]int, error)
	ApplicationStepCounts(ctx context.Context, userID string) (completed int, total int, err error)
	ListPrePopulatedForms(ctx context.Context, userID string) ([]domain.FormType, error)
}

type AuditLog interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (domain.BlobObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	TemporaryURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// OCREngine turns document bytes into text and key/value fields.
type OCREngine interface {
	Name() string
	Extract(ctx context.Context, doc *domain.DocumentMetadata, content []byte) (*domain.OCRExtraction, error)
}

// OCRCache is a read-through cache in front of OCRRepository.
type OCRCache interface {
	Get(ctx context.Context, documentID string) (*domain.OCRResult, bool, error)
	Put(ctx context.Context, result *domain.OCRResult) error
	Invalidate(ctx context.Context, documentID string) error
}

// JobQueue publishes upload jobs and per-job cancellation requests.
type JobQueue interface {
	PublishJob(ctx context.Context, job domain.JobMessage) error
	PublishCancel(ctx context.Context, jobID string) error
}

type JobEventPublisher interface {
	PublishJobEvent(ctx context.Context, event domain.JobEvent) error
}

type JobEventSubscriber interface {
	SubscribeJobEvents(ctx context.Context, jobID string) (<-chan domain.JobEvent, error)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// ChatProvider is a hosted chat-completion backend.
type ChatProvider interface {
	Name() string
	Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error)
	Health(ctx context.Context) error
}

// StreamingChatProvider is implemented by providers with native token streaming.
type StreamingChatProvider interface {
	ChatProvider
	Stream(ctx context.Context, messages []domain.ChatMessage) iter.Seq2[string, error]
}

type SpreadsheetExporter interface {
	WritePrePopulation(w io.Writer, result *domain.PrePopulationResult) error
}
