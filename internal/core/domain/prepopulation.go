package domain

import "time"

type FieldMapping struct {
	SourceField   string        `json:"source_field" yaml:"source_field"`
	TargetField   string        `json:"target_field" yaml:"target_field"`
	DataType      FieldDataType `json:"data_type" yaml:"data_type"`
	MinConfidence float64       `json:"min_confidence" yaml:"min_confidence"`
	Transforms    []string      `json:"transforms,omitempty" yaml:"transforms,omitempty"`
	Priority      int           `json:"priority" yaml:"priority"`
}

// FieldSource records which document supplied a populated field.
type FieldSource struct {
	DocumentID   string       `json:"document_id"`
	DocumentType DocumentType `json:"document_type"`
	SourceField  string       `json:"source_field"`
	Confidence   float64      `json:"confidence"`
}

type PrePopulationResult struct {
	UserID            string                 `json:"user_id"`
	FormType          FormType               `json:"form_type"`
	Fields            map[string]any         `json:"fields"`
	ConflictingFields []string               `json:"conflicting_fields"`
	MissingFields     []string               `json:"missing_fields"`
	Warnings          []string               `json:"warnings,omitempty"`
	OverallConfidence float64                `json:"overall_confidence"`
	Sources           map[string]FieldSource `json:"sources"`
	GeneratedAt       time.Time              `json:"generated_at"`
}
