package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestWritePrePopulation(t *testing.T) {
	result := &domain.PrePopulationResult{
		UserID:   "user-1",
		FormType: domain.FormFAFSA,
		Fields: map[string]any{
			"student_ssn": "123-45-6789",
			"student_agi": 52000.0,
		},
		ConflictingFields: []string{"student_agi"},
		MissingFields:     []string{"parent_agi"},
		Warnings:          []string{"student_email: invalid email"},
		OverallConfidence: 0.91,
		Sources: map[string]domain.FieldSource{
			"student_agi": {DocumentID: "doc-1", DocumentType: domain.DocTypeTaxReturn, SourceField: "agi", Confidence: 0.95},
		},
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	if err := New().WritePrePopulation(&buf, result); err != nil {
		t.Fatalf("WritePrePopulation() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(fieldsSheet)
	if err != nil {
		t.Fatalf("GetRows(fields) error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "student_agi" || rows[1][3] != "doc-1" {
		t.Fatalf("unexpected first field row: %v", rows[1])
	}
	if rows[2][0] != "student_ssn" || rows[2][1] != "123-45-6789" {
		t.Fatalf("unexpected second field row: %v", rows[2])
	}

	review, err := f.GetRows(issuesSheet)
	if err != nil {
		t.Fatalf("GetRows(review) error = %v", err)
	}
	var kinds []string
	for _, row := range review[6:] {
		kinds = append(kinds, row[0])
	}
	if len(kinds) != 3 || kinds[0] != "conflict" || kinds[1] != "missing" || kinds[2] != "warning" {
		t.Fatalf("unexpected review kinds: %v", kinds)
	}
}

func TestWritePrePopulationRejectsNil(t *testing.T) {
	var buf bytes.Buffer
	err := New().WritePrePopulation(&buf, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
