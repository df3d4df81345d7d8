package domain

import (
	"path/filepath"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusProcessing  DocumentStatus = "processing"
	StatusProcessed   DocumentStatus = "processed"
	StatusVerified    DocumentStatus = "verified"
	StatusNeedsReview DocumentStatus = "needs_review"
	StatusRejected    DocumentStatus = "rejected"
	StatusFailed      DocumentStatus = "failed"
)

type DocumentType string

const (
	DocTypeTaxReturn          DocumentType = "tax_return"
	DocTypeW2                 DocumentType = "w2"
	DocTypeForm1099           DocumentType = "form_1099"
	DocTypeBankStatement      DocumentType = "bank_statement"
	DocTypePayStub            DocumentType = "pay_stub"
	DocTypeSocialSecurityCard DocumentType = "social_security_card"
	DocTypeDriversLicense     DocumentType = "drivers_license"
	DocTypePassport           DocumentType = "passport"
	DocTypeUtilityBill        DocumentType = "utility_bill"
	DocTypeOther              DocumentType = "other"
)

// KnownDocumentTypes lists every type in declaration order. Classification
// ties are broken by this order.
var KnownDocumentTypes = []DocumentType{
	DocTypeTaxReturn,
	DocTypeW2,
	DocTypeForm1099,
	DocTypeBankStatement,
	DocTypePayStub,
	DocTypeSocialSecurityCard,
	DocTypeDriversLicense,
	DocTypePassport,
	DocTypeUtilityBill,
	DocTypeOther,
}

func ParseDocumentType(raw string) (DocumentType, bool) {
	value := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownDocumentTypes {
		if known == value {
			return known, true
		}
	}
	return "", false
}

type FormType string

const (
	FormFAFSA FormType = "fafsa"
	FormCSS   FormType = "css_profile"
)

// DocumentMetadata is created on upload. Only Status, ClassifiedType and
// Error change afterwards.
type DocumentMetadata struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	FileName       string         `json:"file_name"`
	ContentType    string         `json:"content_type"`
	SizeBytes      int64          `json:"size_bytes"`
	SHA256         string         `json:"sha256"`
	StoragePath    string         `json:"storage_path"`
	DeclaredType   DocumentType   `json:"declared_type,omitempty"`
	ClassifiedType DocumentType   `json:"classified_type,omitempty"`
	Status         DocumentStatus `json:"status"`
	Error          string         `json:"error,omitempty"`
	UploadedAt     time.Time      `json:"uploaded_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// EffectiveType prefers the classified type over the type declared by the user.
func (d DocumentMetadata) EffectiveType() DocumentType {
	if d.ClassifiedType != "" && d.ClassifiedType != DocTypeOther {
		return d.ClassifiedType
	}
	if d.DeclaredType != "" {
		return d.DeclaredType
	}
	if d.ClassifiedType != "" {
		return d.ClassifiedType
	}
	return DocTypeOther
}

func (d DocumentMetadata) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(d.FileName)), ".")
}

// BlobObject describes a stored byte stream.
type BlobObject struct {
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type UploadRequest struct {
	UserID       string
	FileName     string
	ContentType  string
	SizeBytes    int64
	DeclaredType DocumentType
}

type UploadResult struct {
	Document *DocumentMetadata `json:"document"`
	JobID    string            `json:"job_id"`
	BlobPath string            `json:"blob_path"`
	Size     int64             `json:"size"`
	Hash     string            `json:"hash"`
}

type TemporaryURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
