// Package rules holds the static configuration that drives classification,
// verification and form pre-population. A Catalog is built once at startup
// and never mutated; accessors hand out copies.
package rules

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	DefaultClassificationFloor = 0.1
	DefaultFileNameBoost       = 0.2
	DefaultMaxFileSizeBytes    = 50 << 20
	DefaultMaxAgeYears         = 7
)

// Transformation names understood by the pre-population service.
const (
	TransformFormatSSN     = "format_ssn"
	TransformParseCurrency = "parse_currency"
	TransformFirstName     = "first_name"
	TransformLastName      = "last_name"
	TransformNormalizeDate = "normalize_date"
	TransformTrim          = "trim"
	TransformUppercase     = "uppercase"
)

var knownTransforms = map[string]struct{}{
	TransformFormatSSN:     {},
	TransformParseCurrency: {},
	TransformFirstName:     {},
	TransformLastName:      {},
	TransformNormalizeDate: {},
	TransformTrim:          {},
	TransformUppercase:     {},
}

var DefaultAllowedExtensions = []string{"pdf", "jpg", "jpeg", "png", "tiff", "tif"}

type ClassificationProfile struct {
	Type          domain.DocumentType `yaml:"type"`
	Keywords      []string            `yaml:"keywords"`
	FileNameHints []string            `yaml:"filename_hints"`
}

type MappingSet struct {
	DocumentType domain.DocumentType   `yaml:"document_type"`
	FormType     domain.FormType       `yaml:"form_type"`
	Fields       []domain.FieldMapping `yaml:"fields"`
}

type FormRequirements struct {
	FormType       domain.FormType `yaml:"form_type"`
	RequiredFields []string        `yaml:"required_fields"`
}

// Spec is the serializable form of a Catalog.
type Spec struct {
	Classification struct {
		Floor         float64                 `yaml:"floor"`
		FileNameBoost float64                 `yaml:"filename_boost"`
		Profiles      []ClassificationProfile `yaml:"profiles"`
	} `yaml:"classification"`
	Verification []domain.VerificationRule `yaml:"verification"`
	Mappings     []MappingSet              `yaml:"mappings"`
	Forms        []FormRequirements        `yaml:"forms"`
}

type mappingKey struct {
	docType  domain.DocumentType
	formType domain.FormType
}

type Catalog struct {
	floor         float64
	fileNameBoost float64
	profiles      []ClassificationProfile
	rules         map[domain.DocumentType][]domain.VerificationRule
	mappings      map[mappingKey][]domain.FieldMapping
	forms         map[domain.FormType][]string
}

// New validates spec and freezes it into a Catalog.
func New(spec Spec) (*Catalog, error) {
	var errs []error

	c := &Catalog{
		floor:         spec.Classification.Floor,
		fileNameBoost: spec.Classification.FileNameBoost,
		rules:         make(map[domain.DocumentType][]domain.VerificationRule),
		mappings:      make(map[mappingKey][]domain.FieldMapping),
		forms:         make(map[domain.FormType][]string),
	}
	if c.floor <= 0 {
		c.floor = DefaultClassificationFloor
	}
	if c.fileNameBoost < 0 {
		errs = append(errs, fmt.Errorf("classification.filename_boost must be >= 0"))
	}

	seenProfiles := make(map[domain.DocumentType]struct{})
	for _, p := range spec.Classification.Profiles {
		if _, ok := domain.ParseDocumentType(string(p.Type)); !ok {
			errs = append(errs, fmt.Errorf("classification profile: unknown document type %q", p.Type))
			continue
		}
		if _, dup := seenProfiles[p.Type]; dup {
			errs = append(errs, fmt.Errorf("classification profile %q declared twice", p.Type))
			continue
		}
		if len(p.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("classification profile %q has no keywords", p.Type))
			continue
		}
		seenProfiles[p.Type] = struct{}{}
		c.profiles = append(c.profiles, ClassificationProfile{
			Type:          p.Type,
			Keywords:      lowerAll(p.Keywords),
			FileNameHints: lowerAll(p.FileNameHints),
		})
	}

	for _, r := range spec.Verification {
		if err := validateRule(r); err != nil {
			errs = append(errs, err)
			continue
		}
		if r.CheckType == domain.CheckFormat {
			if len(r.Params.AllowedExtensions) == 0 {
				r.Params.AllowedExtensions = append([]string(nil), DefaultAllowedExtensions...)
			}
			if r.Params.MaxFileSizeBytes <= 0 {
				r.Params.MaxFileSizeBytes = DefaultMaxFileSizeBytes
			}
		}
		if r.CheckType == domain.CheckDateRange && r.Params.MaxAgeYears <= 0 {
			r.Params.MaxAgeYears = DefaultMaxAgeYears
		}
		c.rules[r.DocumentType] = append(c.rules[r.DocumentType], cloneRule(r))
	}

	for _, set := range spec.Mappings {
		if _, ok := domain.ParseDocumentType(string(set.DocumentType)); !ok {
			errs = append(errs, fmt.Errorf("mapping set: unknown document type %q", set.DocumentType))
			continue
		}
		key := mappingKey{docType: set.DocumentType, formType: set.FormType}
		for _, m := range set.Fields {
			if strings.TrimSpace(m.SourceField) == "" || strings.TrimSpace(m.TargetField) == "" {
				errs = append(errs, fmt.Errorf("mapping %s/%s: source_field and target_field are required", set.DocumentType, set.FormType))
				continue
			}
			for _, t := range m.Transforms {
				if _, ok := knownTransforms[t]; !ok {
					errs = append(errs, fmt.Errorf("mapping %s -> %s: unknown transform %q", m.SourceField, m.TargetField, t))
				}
			}
			if m.DataType == "" {
				m.DataType = domain.FieldText
			}
			c.mappings[key] = append(c.mappings[key], cloneMapping(m))
		}
		sort.SliceStable(c.mappings[key], func(i, j int) bool {
			return c.mappings[key][i].Priority > c.mappings[key][j].Priority
		})
	}

	for _, f := range spec.Forms {
		c.forms[f.FormType] = append([]string(nil), f.RequiredFields...)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid rule catalog: %w", err)
	}
	return c, nil
}

func validateRule(r domain.VerificationRule) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("verification rule for %q has no name", r.DocumentType)
	}
	if _, ok := domain.ParseDocumentType(string(r.DocumentType)); !ok {
		return fmt.Errorf("verification rule %q: unknown document type %q", r.Name, r.DocumentType)
	}
	switch r.CheckType {
	case domain.CheckContentValidation, domain.CheckFormat, domain.CheckDataConsistency,
		domain.CheckRequiredFields, domain.CheckDateRange:
	default:
		return fmt.Errorf("verification rule %q: unknown check type %q", r.Name, r.CheckType)
	}
	if r.MinimumScore < 0 || r.MinimumScore > 1 {
		return fmt.Errorf("verification rule %q: minimum_score must be within [0,1]", r.Name)
	}
	return nil
}

func (c *Catalog) ClassificationFloor() float64 { return c.floor }
func (c *Catalog) FileNameBoost() float64       { return c.fileNameBoost }

// Profiles returns classification profiles in declaration order.
func (c *Catalog) Profiles() []ClassificationProfile {
	out := make([]ClassificationProfile, 0, len(c.profiles))
	for _, p := range c.profiles {
		out = append(out, ClassificationProfile{
			Type:          p.Type,
			Keywords:      append([]string(nil), p.Keywords...),
			FileNameHints: append([]string(nil), p.FileNameHints...),
		})
	}
	return out
}

// EnabledRules returns the enabled verification rules for a document type.
func (c *Catalog) EnabledRules(docType domain.DocumentType) []domain.VerificationRule {
	all := c.rules[docType]
	out := make([]domain.VerificationRule, 0, len(all))
	for _, r := range all {
		if r.Enabled {
			out = append(out, cloneRule(r))
		}
	}
	return out
}

// Mappings returns field mappings for a document/form pair, highest priority first.
func (c *Catalog) Mappings(docType domain.DocumentType, formType domain.FormType) []domain.FieldMapping {
	src := c.mappings[mappingKey{docType: docType, formType: formType}]
	out := make([]domain.FieldMapping, 0, len(src))
	for _, m := range src {
		out = append(out, cloneMapping(m))
	}
	return out
}

func (c *Catalog) RequiredFormFields(formType domain.FormType) []string {
	return append([]string(nil), c.forms[formType]...)
}

func (c *Catalog) SupportsForm(formType domain.FormType) bool {
	if _, ok := c.forms[formType]; ok {
		return true
	}
	for key := range c.mappings {
		if key.formType == formType {
			return true
		}
	}
	return false
}

func cloneRule(r domain.VerificationRule) domain.VerificationRule {
	out := r
	out.Params.RequiredFields = append([]string(nil), r.Params.RequiredFields...)
	out.Params.AllowedExtensions = append([]string(nil), r.Params.AllowedExtensions...)
	if r.Params.ConsistencyGroups != nil {
		out.Params.ConsistencyGroups = make([][]string, 0, len(r.Params.ConsistencyGroups))
		for _, g := range r.Params.ConsistencyGroups {
			out.Params.ConsistencyGroups = append(out.Params.ConsistencyGroups, append([]string(nil), g...))
		}
	}
	return out
}

func cloneMapping(m domain.FieldMapping) domain.FieldMapping {
	out := m
	out.Transforms = append([]string(nil), m.Transforms...)
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
