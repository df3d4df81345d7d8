package xlsx

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	fieldsSheet = "Fields"
	issuesSheet = "Review"
)

var fieldsHeader = []any{"Field", "Value", "Confidence", "Source document", "Document type", "Source field"}

// Exporter renders pre-population results as a workbook with a field sheet and a review sheet.
type Exporter struct{}

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) WritePrePopulation(w io.Writer, result *domain.PrePopulationResult) error {
	if result == nil {
		return domain.WrapError(domain.ErrInvalidInput, "export prepopulation", fmt.Errorf("result is nil"))
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", fieldsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeFields(f, result); err != nil {
		return err
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("create review sheet: %w", err)
	}
	if err := writeReview(f, result); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeFields(f *excelize.File, result *domain.PrePopulationResult) error {
	if err := f.SetSheetRow(fieldsSheet, "A1", &fieldsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetCellStyle(fieldsSheet, "A1", "F1", style)
	}

	names := make([]string, 0, len(result.Fields))
	for name := range result.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		source := result.Sources[name]
		row := []any{
			name,
			result.Fields[name],
			source.Confidence,
			source.DocumentID,
			string(source.DocumentType),
			source.SourceField,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(fieldsSheet, cell, &row); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}
	_ = f.SetColWidth(fieldsSheet, "A", "F", 24)
	return nil
}

func writeReview(f *excelize.File, result *domain.PrePopulationResult) error {
	rows := [][]any{
		{"Form", string(result.FormType)},
		{"User", result.UserID},
		{"Generated at", result.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Overall confidence", result.OverallConfidence},
		{"Findings"},
		{"Kind", "Detail"},
	}
	for _, name := range result.ConflictingFields {
		rows = append(rows, []any{"conflict", name})
	}
	for _, name := range result.MissingFields {
		rows = append(rows, []any{"missing", name})
	}
	for _, warning := range result.Warnings {
		rows = append(rows, []any{"warning", warning})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(issuesSheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write review row: %w", err)
		}
	}
	_ = f.SetColWidth(issuesSheet, "A", "B", 28)
	return nil
}
