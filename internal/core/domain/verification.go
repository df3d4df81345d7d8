package domain

import "time"

type CheckType string

const (
	CheckContentValidation CheckType = "content_validation"
	CheckFormat            CheckType = "format_check"
	CheckDataConsistency   CheckType = "data_consistency"
	CheckRequiredFields    CheckType = "required_field_check"
	CheckDateRange         CheckType = "date_range_check"
)

type VerificationType string

const (
	VerificationAutomatic VerificationType = "automatic"
	VerificationManual    VerificationType = "manual"
)

type VerificationStatus string

const (
	VerificationInProgress           VerificationStatus = "in_progress"
	VerificationAutoApproved         VerificationStatus = "auto_approved"
	VerificationManualReviewRequired VerificationStatus = "manual_review_required"
	VerificationApproved             VerificationStatus = "approved"
	VerificationRejected             VerificationStatus = "rejected"
)

// RuleParams carries the per-check settings of a VerificationRule.
type RuleParams struct {
	RequiredFields    []string   `json:"required_fields,omitempty" yaml:"required_fields,omitempty"`
	AllowedExtensions []string   `json:"allowed_extensions,omitempty" yaml:"allowed_extensions,omitempty"`
	MaxFileSizeBytes  int64      `json:"max_file_size_bytes,omitempty" yaml:"max_file_size_bytes,omitempty"`
	MaxAgeYears       int        `json:"max_age_years,omitempty" yaml:"max_age_years,omitempty"`
	ConsistencyGroups [][]string `json:"consistency_groups,omitempty" yaml:"consistency_groups,omitempty"`
}

type VerificationRule struct {
	Name         string       `json:"name" yaml:"name"`
	DocumentType DocumentType `json:"document_type" yaml:"document_type"`
	CheckType    CheckType    `json:"check_type" yaml:"check_type"`
	Required     bool         `json:"required" yaml:"required"`
	Enabled      bool         `json:"enabled" yaml:"enabled"`
	MinimumScore float64      `json:"minimum_score" yaml:"minimum_score"`
	Params       RuleParams   `json:"params" yaml:"params"`
}

type VerificationCheck struct {
	RuleName   string    `json:"rule_name"`
	CheckType  CheckType `json:"check_type"`
	Required   bool      `json:"required"`
	Passed     bool      `json:"passed"`
	Confidence float64   `json:"confidence"`
	Details    string    `json:"details,omitempty"`
	Messages   []string  `json:"messages,omitempty"`
}

type VerificationResult struct {
	ID                   string              `json:"id"`
	DocumentID           string              `json:"document_id"`
	UserID               string              `json:"user_id"`
	VerificationType     VerificationType    `json:"verification_type"`
	Status               VerificationStatus  `json:"status"`
	OverallScore         float64             `json:"overall_score"`
	Checks               []VerificationCheck `json:"checks"`
	Issues               []string            `json:"issues,omitempty"`
	RequiresManualReview bool                `json:"requires_manual_review"`
	ReviewedBy           string              `json:"reviewed_by,omitempty"`
	ReviewNotes          string              `json:"review_notes,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
}

const (
	AutoApproveThreshold  = 0.95
	ManualReviewThreshold = 0.8
)

// DetermineStatus reduces an aggregated result to its automatic outcome.
// Rejection is never produced here; only a reviewer can reject.
func DetermineStatus(overallScore float64, checks []VerificationCheck, issues []string) VerificationStatus {
	allPassed := true
	for _, c := range checks {
		if !c.Passed {
			allPassed = false
			break
		}
	}
	if len(issues) > 0 || overallScore < ManualReviewThreshold {
		return VerificationManualReviewRequired
	}
	if overallScore >= AutoApproveThreshold && allPassed {
		return VerificationAutoApproved
	}
	return VerificationManualReviewRequired
}

type NotificationKind string

const (
	NotifyApproved    NotificationKind = "approved"
	NotifyNeedsReview NotificationKind = "needs_review"
	NotifyRejected    NotificationKind = "rejected"
)

type Notification struct {
	Kind       NotificationKind `json:"kind"`
	UserID     string           `json:"user_id"`
	DocumentID string           `json:"document_id"`
	Message    string           `json:"message"`
	At         time.Time        `json:"at"`
}
