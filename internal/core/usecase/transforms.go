package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/rules"
)

type transformFunc func(any) (any, error)

var transforms = map[string]transformFunc{
	rules.TransformFormatSSN:     formatSSN,
	rules.TransformParseCurrency: toCurrency,
	rules.TransformFirstName:     firstName,
	rules.TransformLastName:      lastName,
	rules.TransformNormalizeDate: normalizeDate,
	rules.TransformTrim:          stringTransform(strings.TrimSpace),
	rules.TransformUppercase:     stringTransform(strings.ToUpper),
}

// applyTransforms runs the named chain and stops at the first failure.
func applyTransforms(value string, names []string) (any, error) {
	var current any = value
	for _, name := range names {
		fn, ok := transforms[name]
		if !ok {
			return nil, fmt.Errorf("unknown transform %q", name)
		}
		next, err := fn(current)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		current = next
	}
	return current, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected text, got %T", v)
	}
	return s, nil
}

func stringTransform(fn func(string) string) transformFunc {
	return func(v any) (any, error) {
		s, err := asString(v)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

// formatSSN renders nine digits as XXX-XX-XXXX. Already formatted input is returned unchanged.
func formatSSN(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	digits := digitsOnly(s)
	if len(digits) != 9 {
		return nil, errors.New("ssn must have 9 digits")
	}
	return digits[:3] + "-" + digits[3:5] + "-" + digits[5:], nil
}

func toCurrency(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return parseCurrency(n)
	default:
		return nil, fmt.Errorf("expected currency text, got %T", v)
	}
}

func firstName(v any) (any, error) {
	parts, err := nameParts(v)
	if err != nil {
		return nil, err
	}
	return parts[0], nil
}

func lastName(v any) (any, error) {
	parts, err := nameParts(v)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, errors.New("name has no last part")
	}
	return parts[len(parts)-1], nil
}

// nameParts splits "First Middle Last" or "Last, First Middle".
func nameParts(v any) ([]string, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	if last, rest, ok := strings.Cut(s, ","); ok {
		s = rest + " " + last
	}
	parts := strings.Fields(s)
	if len(parts) == 0 {
		return nil, errors.New("name is empty")
	}
	return parts, nil
}

func normalizeDate(v any) (any, error) {
	s, err := asString(v)
	if err != nil {
		return nil, err
	}
	t, ok := parseDate(s)
	if !ok {
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	return t.Format("2006-01-02"), nil
}
