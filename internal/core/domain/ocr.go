package domain

import (
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
)

type FieldDataType string

const (
	FieldCurrency FieldDataType = "currency"
	FieldDate     FieldDataType = "date"
	FieldSSN      FieldDataType = "ssn"
	FieldNumber   FieldDataType = "number"
	FieldEmail    FieldDataType = "email"
	FieldText     FieldDataType = "text"
)

type OCRStatus string

const (
	OCRPending    OCRStatus = "pending"
	OCRProcessing OCRStatus = "processing"
	OCRCompleted  OCRStatus = "completed"
	OCRFailed     OCRStatus = "failed"
)

type ExtractedField struct {
	Name       string        `json:"name"`
	Value      string        `json:"value"`
	DataType   FieldDataType `json:"data_type"`
	Confidence float64       `json:"confidence"`
}

type OCRResult struct {
	DocumentID        string           `json:"document_id"`
	DocumentType      DocumentType     `json:"document_type"`
	RawText           string           `json:"raw_text"`
	OverallConfidence float64          `json:"overall_confidence"`
	Fields            []ExtractedField `json:"fields"`
	Status            OCRStatus        `json:"status"`
	Engine            string           `json:"engine"`
	Error             string           `json:"error,omitempty"`
	ProcessedAt       time.Time        `json:"processed_at"`
}

// OCRExtraction is what an engine returns for one document.
type OCRExtraction struct {
	RawText string
	Fields  []ExtractedField
	Pages   int
}

// MeanConfidence is the arithmetic mean of field confidences, 0 for no fields.
func MeanConfidence(fields []ExtractedField) float64 {
	if len(fields) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range fields {
		total += f.Confidence
	}
	return total / float64(len(fields))
}

var (
	ssnPattern      = regexp.MustCompile(`^\d{3}-?\d{2}-?\d{4}$`)
	currencyPattern = regexp.MustCompile(`^\(?-?\$\s?[\d,]+(\.\d{1,2})?\)?$|^-?[\d,]+\.\d{2}$`)
	numberPattern   = regexp.MustCompile(`^-?[\d,]+(\.\d+)?$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	datePattern     = regexp.MustCompile(`^\d{1,4}[-/.]\d{1,2}[-/.]\d{1,4}$`)
)

// InferFieldDataType tags a field using its name first and its value second.
// Names match on whole words, so "Social Security Wages" is not an SSN and
// "Last Update" is not a date.
func InferFieldDataType(name, value string) FieldDataType {
	words := nameWords(name)
	v := strings.TrimSpace(value)
	switch {
	case hasWord(words, "ssn", "socialsecuritynumber") || hasPhrase(words, "social", "security", "number") ||
		hasPhrase(words, "social", "security", "no"):
		return FieldSSN
	case hasWord(words, "email", "emailaddress") || hasPhrase(words, "e", "mail"):
		return FieldEmail
	case hasWord(words, "date", "dob", "birthdate", "dateofbirth"):
		return FieldDate
	}
	switch {
	case ssnPattern.MatchString(v) && strings.Count(v, "-") == 2:
		return FieldSSN
	case emailPattern.MatchString(v):
		return FieldEmail
	case datePattern.MatchString(v):
		return FieldDate
	case currencyPattern.MatchString(v):
		return FieldCurrency
	case numberPattern.MatchString(v):
		return FieldNumber
	default:
		return FieldText
	}
}

func nameWords(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func hasWord(words []string, candidates ...string) bool {
	for _, c := range candidates {
		if slices.Contains(words, c) {
			return true
		}
	}
	return false
}

// hasPhrase reports whether phrase appears as consecutive words.
func hasPhrase(words []string, phrase ...string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		if slices.Equal(words[i:i+len(phrase)], phrase) {
			return true
		}
	}
	return false
}
