package domain

import "time"

type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobProcessing   JobStatus = "processing"
	JobOCRCompleted JobStatus = "ocr_completed"
	JobClassified   JobStatus = "classified"
	JobVerified     JobStatus = "verified"
	JobCompleted    JobStatus = "completed"
	JobFailed       JobStatus = "failed"
	JobCancelled    JobStatus = "cancelled"
)

// Terminal reports whether no further events follow this status.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobMessage is the unit of work published for every upload.
type JobMessage struct {
	JobID        string       `json:"job_id"`
	DocumentID   string       `json:"document_id"`
	UserID       string       `json:"user_id"`
	DeclaredType DocumentType `json:"declared_type,omitempty"`
	EnqueuedAt   time.Time    `json:"enqueued_at"`
}

type JobEvent struct {
	JobID              string             `json:"job_id"`
	DocumentID         string             `json:"document_id"`
	Status             JobStatus          `json:"status"`
	Message            string             `json:"message,omitempty"`
	DocumentType       DocumentType       `json:"document_type,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
	At                 time.Time          `json:"at"`
}

type AuditEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type ProgressSummary struct {
	UserID            string                     `json:"user_id"`
	DocumentsByStatus map[DocumentStatus]int     `json:"documents_by_status"`
	Verifications     map[VerificationStatus]int `json:"verifications"`
	TotalDocuments    int                        `json:"total_documents"`
	StepsCompleted    int                        `json:"steps_completed"`
	StepsTotal        int                        `json:"steps_total"`
	CompletionPercent float64                    `json:"completion_percent"`
	PrePopulatedForms []FormType                 `json:"prepopulated_forms,omitempty"`
}
