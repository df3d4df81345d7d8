package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
	"github.com/kirillkom/finaid-assistant/internal/core/rules"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type PrePopulateFormUseCase struct {
	docs     ports.DocumentRepository
	ocr      ports.OCRReader
	results  ports.PrePopulationRepository
	exporter ports.SpreadsheetExporter
	audit    ports.AuditLog
	catalog  *rules.Catalog
	logger   *slog.Logger
}

func NewPrePopulateFormUseCase(
	docs ports.DocumentRepository,
	ocr ports.OCRReader,
	results ports.PrePopulationRepository,
	exporter ports.SpreadsheetExporter,
	audit ports.AuditLog,
	catalog *rules.Catalog,
	logger *slog.Logger,
) *PrePopulateFormUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrePopulateFormUseCase{
		docs:     docs,
		ocr:      ocr,
		results:  results,
		exporter: exporter,
		audit:    audit,
		catalog:  catalog,
		logger:   logger,
	}
}

// Generate merges fields from the user's verified documents into one form
// and saves the result. The first value written to a field wins.
func (uc *PrePopulateFormUseCase) Generate(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	const op = "prepopulate form"

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("user_id is required"))
	}
	if !uc.catalog.SupportsForm(formType) {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("unsupported form type %q", formType))
	}

	docs, err := uc.docs.ListByUser(ctx, userID, domain.StatusVerified)
	if err != nil {
		return nil, fmt.Errorf("%s: list verified documents: %w", op, err)
	}

	merger := newFieldMerger()
	for i := range docs {
		doc := &docs[i]
		ocr, err := uc.ocr.Get(ctx, doc.ID)
		if err != nil {
			uc.logger.Warn("prepopulation skipped document", "document_id", doc.ID, "error", err)
			continue
		}
		docType := doc.EffectiveType()
		for _, mapping := range uc.catalog.Mappings(docType, formType) {
			field, ok := bestField(ocr.Fields, mapping.SourceField)
			if !ok || field.Confidence < mapping.MinConfidence {
				continue
			}
			value, err := applyTransforms(field.Value, mapping.Transforms)
			if err != nil {
				uc.logger.Debug("field transform failed",
					"document_id", doc.ID,
					"source_field", field.Name,
					"target_field", mapping.TargetField,
					"error", err,
				)
				continue
			}
			merger.add(mapping, value, domain.FieldSource{
				DocumentID:   doc.ID,
				DocumentType: docType,
				SourceField:  field.Name,
				Confidence:   field.Confidence,
			})
		}
	}

	result := merger.result(userID, formType)
	result.MissingFields = missingFields(uc.catalog.RequiredFormFields(formType), result.Fields)
	result.Warnings = validateMerged(result.Fields, merger.types)

	if err := uc.results.SavePrePopulation(ctx, result); err != nil {
		return nil, fmt.Errorf("%s: save: %w", op, err)
	}
	recordAudit(ctx, uc.audit, uc.logger, domain.AuditEvent{
		UserID:     userID,
		EntityType: "prepopulation",
		EntityID:   string(formType),
		Action:     "generated",
		Details:    fmt.Sprintf("fields=%d conflicts=%d missing=%d", len(result.Fields), len(result.ConflictingFields), len(result.MissingFields)),
	})
	return result, nil
}

func (uc *PrePopulateFormUseCase) Get(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	result, err := uc.results.GetPrePopulation(ctx, userID, formType)
	if err != nil {
		return nil, fmt.Errorf("load prepopulation: %w", err)
	}
	return result, nil
}

func (uc *PrePopulateFormUseCase) Export(ctx context.Context, userID string, formType domain.FormType, w io.Writer) error {
	result, err := uc.Get(ctx, userID, formType)
	if err != nil {
		return err
	}
	if err := uc.exporter.WritePrePopulation(w, result); err != nil {
		return fmt.Errorf("export prepopulation: %w", err)
	}
	return nil
}

// bestField picks the highest-confidence field whose name matches source.
func bestField(fields []domain.ExtractedField, source string) (domain.ExtractedField, bool) {
	var best domain.ExtractedField
	found := false
	for _, f := range fields {
		if !namesMatch(f.Name, source) {
			continue
		}
		if !found || f.Confidence > best.Confidence {
			best = f
			found = true
		}
	}
	return best, found
}

type fieldMerger struct {
	fields    map[string]any
	sources   map[string]domain.FieldSource
	types     map[string]domain.FieldDataType
	conflicts []string
	conflict  map[string]struct{}
}

func newFieldMerger() *fieldMerger {
	return &fieldMerger{
		fields:   make(map[string]any),
		sources:  make(map[string]domain.FieldSource),
		types:    make(map[string]domain.FieldDataType),
		conflict: make(map[string]struct{}),
	}
}

func (m *fieldMerger) add(mapping domain.FieldMapping, value any, source domain.FieldSource) {
	target := mapping.TargetField
	existing, ok := m.fields[target]
	if !ok {
		m.fields[target] = value
		m.sources[target] = source
		m.types[target] = mapping.DataType
		return
	}
	if sameValue(existing, value) {
		return
	}
	if _, listed := m.conflict[target]; !listed {
		m.conflict[target] = struct{}{}
		m.conflicts = append(m.conflicts, target)
	}
}

func (m *fieldMerger) result(userID string, formType domain.FormType) *domain.PrePopulationResult {
	total := 0.0
	for _, s := range m.sources {
		total += s.Confidence
	}
	overall := 0.0
	if len(m.sources) > 0 {
		overall = math.Round(total/float64(len(m.sources))*1000) / 1000
	}
	return &domain.PrePopulationResult{
		UserID:            userID,
		FormType:          formType,
		Fields:            m.fields,
		ConflictingFields: append([]string{}, m.conflicts...),
		MissingFields:     []string{},
		OverallConfidence: overall,
		Sources:           m.sources,
		GeneratedAt:       time.Now().UTC(),
	}
}

// sameValue compares strings ignoring case and whitespace runs, anything else exactly.
func sameValue(a, b any) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(collapseSpaces(as), collapseSpaces(bs))
	}
	return a == b
}

func missingFields(required []string, fields map[string]any) []string {
	missing := []string{}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func validateMerged(fields map[string]any, types map[string]domain.FieldDataType) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	for _, name := range names {
		value := fields[name]
		text, _ := value.(string)
		switch types[name] {
		case domain.FieldSSN:
			if len(digitsOnly(text)) != 9 {
				warnings = append(warnings, fmt.Sprintf("%s should contain 9 digits", name))
			}
		case domain.FieldEmail:
			if !emailPattern.MatchString(strings.TrimSpace(text)) {
				warnings = append(warnings, fmt.Sprintf("%s does not look like an email address", name))
			}
		case domain.FieldCurrency:
			if _, ok := value.(float64); !ok {
				if _, err := parseCurrency(text); err != nil {
					warnings = append(warnings, fmt.Sprintf("%s is not a valid amount", name))
				}
			}
		case domain.FieldDate:
			if _, ok := parseDate(text); !ok {
				warnings = append(warnings, fmt.Sprintf("%s is not a valid date", name))
			}
		}
	}
	return warnings
}
