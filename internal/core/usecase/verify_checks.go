package usecase

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

var earliestSaneDate = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

type checkInput struct {
	doc *domain.DocumentMetadata
	ocr *domain.OCRResult
	now time.Time
}

type checkFunc func(rule domain.VerificationRule, in checkInput) domain.VerificationCheck

var checkers = map[domain.CheckType]checkFunc{
	domain.CheckContentValidation: checkContent,
	domain.CheckFormat:            checkFormat,
	domain.CheckDataConsistency:   checkConsistency,
	domain.CheckRequiredFields:    checkRequiredFields,
	domain.CheckDateRange:         checkDateRange,
}

// runCheck executes one rule. A panicking rule becomes a failed check.
func runCheck(rule domain.VerificationRule, in checkInput) (check domain.VerificationCheck) {
	defer func() {
		if r := recover(); r != nil {
			check = failedCheck(rule, fmt.Sprintf("rule %q failed: %v", rule.Name, r))
		}
	}()

	fn, ok := checkers[rule.CheckType]
	if !ok {
		return failedCheck(rule, fmt.Sprintf("unsupported check type %q", rule.CheckType))
	}
	check = fn(rule, in)
	check.RuleName = rule.Name
	check.CheckType = rule.CheckType
	check.Required = rule.Required
	return check
}

func failedCheck(rule domain.VerificationRule, message string) domain.VerificationCheck {
	return domain.VerificationCheck{
		RuleName:  rule.Name,
		CheckType: rule.CheckType,
		Required:  rule.Required,
		Passed:    false,
		Details:   message,
		Messages:  []string{message},
	}
}

func checkContent(rule domain.VerificationRule, in checkInput) domain.VerificationCheck {
	fields := in.ocr.Fields
	if len(fields) == 0 {
		return domain.VerificationCheck{
			Details:  "no fields were extracted",
			Messages: []string{"No data could be extracted from the document"},
		}
	}

	var messages []string
	lowest := math.Inf(1)
	for _, f := range fields {
		if f.Confidence < rule.MinimumScore {
			messages = append(messages, fmt.Sprintf("Field %q was read with low confidence (%.2f < %.2f)", f.Name, f.Confidence, rule.MinimumScore))
			lowest = math.Min(lowest, f.Confidence)
		}
	}
	if len(messages) > 0 {
		return domain.VerificationCheck{
			Confidence: lowest,
			Details:    fmt.Sprintf("%d of %d fields below minimum confidence", len(messages), len(fields)),
			Messages:   messages,
		}
	}
	return domain.VerificationCheck{
		Passed:     true,
		Confidence: domain.MeanConfidence(fields),
		Details:    fmt.Sprintf("%d fields above minimum confidence", len(fields)),
	}
}

func checkFormat(rule domain.VerificationRule, in checkInput) domain.VerificationCheck {
	ext := in.doc.Extension()
	var messages []string

	allowed := false
	for _, candidate := range rule.Params.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(candidate, "."), ext) {
			allowed = true
			break
		}
	}
	if !allowed {
		messages = append(messages, fmt.Sprintf("File type .%s is not accepted", ext))
	}
	if rule.Params.MaxFileSizeBytes > 0 && in.doc.SizeBytes > rule.Params.MaxFileSizeBytes {
		messages = append(messages, fmt.Sprintf("File is larger than %d MB", rule.Params.MaxFileSizeBytes>>20))
	}
	if len(messages) > 0 {
		return domain.VerificationCheck{Details: "file format rejected", Messages: messages}
	}
	return domain.VerificationCheck{Passed: true, Confidence: 1, Details: "file format accepted"}
}

func checkConsistency(rule domain.VerificationRule, in checkInput) domain.VerificationCheck {
	var messages []string
	checked := 0

	for _, group := range rule.Params.ConsistencyGroups {
		if len(group) == 0 {
			continue
		}
		values := make(map[string]string)
		var names []string
		for _, f := range in.ocr.Fields {
			if !matchesAny(f.Name, group) {
				continue
			}
			key := consistencyKey(f)
			if key == "" {
				continue
			}
			if _, ok := values[key]; !ok {
				values[key] = f.Value
				names = append(names, f.Name)
			}
		}
		if len(values) == 0 {
			continue
		}
		checked++
		if len(values) > 1 {
			messages = append(messages, fmt.Sprintf("Conflicting values found for %s (%s)", group[0], strings.Join(names, ", ")))
		}
	}

	latest := in.now.AddDate(1, 0, 0)
	for _, f := range in.ocr.Fields {
		if !isDateField(f) {
			continue
		}
		t, ok := parseDate(f.Value)
		if !ok {
			continue
		}
		checked++
		if t.Before(earliestSaneDate) || t.After(latest) {
			messages = append(messages, fmt.Sprintf("Field %q has an implausible date %s", f.Name, f.Value))
		}
	}

	if len(messages) == 0 {
		return domain.VerificationCheck{Passed: true, Confidence: 1, Details: fmt.Sprintf("%d consistency checks passed", checked)}
	}
	confidence := 1 - float64(len(messages))/float64(max(checked, 1))
	return domain.VerificationCheck{
		Confidence: math.Max(confidence, 0),
		Details:    fmt.Sprintf("%d of %d consistency checks failed", len(messages), checked),
		Messages:   messages,
	}
}

func checkRequiredFields(rule domain.VerificationRule, in checkInput) domain.VerificationCheck {
	required := rule.Params.RequiredFields
	if len(required) == 0 {
		return domain.VerificationCheck{Passed: true, Confidence: 1, Details: "no required fields configured"}
	}

	var messages []string
	found := 0
	for _, requirement := range required {
		alternatives := strings.Split(requirement, "|")
		present := false
		for _, f := range in.ocr.Fields {
			if matchesAny(f.Name, alternatives) {
				present = true
				break
			}
		}
		if present {
			found++
			continue
		}
		messages = append(messages, fmt.Sprintf("Required field %q is missing", strings.TrimSpace(alternatives[0])))
	}

	return domain.VerificationCheck{
		Passed:     found == len(required),
		Confidence: float64(found) / float64(len(required)),
		Details:    fmt.Sprintf("%d of %d required fields present", found, len(required)),
		Messages:   messages,
	}
}

func checkDateRange(rule domain.VerificationRule, in checkInput) domain.VerificationCheck {
	years := rule.Params.MaxAgeYears
	if years <= 0 {
		years = 7
	}
	oldest := in.now.AddDate(-years, 0, 0)

	var problems, notes []string
	dated := 0
	for _, f := range in.ocr.Fields {
		if !isDateField(f) {
			continue
		}
		t, ok := parseDate(f.Value)
		if !ok {
			notes = append(notes, fmt.Sprintf("Field %q could not be read as a date", f.Name))
			continue
		}
		dated++
		switch {
		case t.Before(oldest):
			problems = append(problems, fmt.Sprintf("Field %q is more than %d years old", f.Name, years))
		case t.After(in.now):
			problems = append(problems, fmt.Sprintf("Field %q is in the future", f.Name))
		}
	}

	if len(problems) > 0 {
		return domain.VerificationCheck{
			Details:  fmt.Sprintf("%d of %d dates out of range", len(problems), dated),
			Messages: append(problems, notes...),
		}
	}
	return domain.VerificationCheck{
		Passed:     true,
		Confidence: 1,
		Details:    fmt.Sprintf("%d dates within %d years", dated, years),
		Messages:   notes,
	}
}

func matchesAny(fieldName string, candidates []string) bool {
	for _, c := range candidates {
		if namesMatch(fieldName, strings.TrimSpace(c)) {
			return true
		}
	}
	return false
}

func isDateField(f domain.ExtractedField) bool {
	if f.DataType != "" {
		return f.DataType == domain.FieldDate
	}
	return domain.InferFieldDataType(f.Name, f.Value) == domain.FieldDate
}

// consistencyKey reduces a value to the form used for equality across fields.
func consistencyKey(f domain.ExtractedField) string {
	switch f.DataType {
	case domain.FieldSSN:
		return digitsOnly(f.Value)
	case domain.FieldDate:
		if t, ok := parseDate(f.Value); ok {
			return t.Format("2006-01-02")
		}
	case domain.FieldCurrency:
		if n, err := parseCurrency(f.Value); err == nil {
			return fmt.Sprintf("%.2f", n)
		}
	}
	return strings.ToLower(collapseSpaces(f.Value))
}
