package usecase

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"2006/01/02",
	"01/02/06",
	"January 2, 2006",
	"Jan 2, 2006",
	"02 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

func parseDate(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeName lower-cases s and drops everything but letters and digits.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// namesMatch reports whether one normalized name contains the other.
// Very short field names only match as the containing side.
func namesMatch(fieldName, wanted string) bool {
	f := normalizeName(fieldName)
	w := normalizeName(wanted)
	if f == "" || w == "" {
		return false
	}
	if strings.Contains(f, w) {
		return true
	}
	return len(f) >= 3 && strings.Contains(w, f)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	errNotCurrency = errors.New("value is not a currency amount")
	// ParseFloat also takes NaN, Inf and hex floats; amounts are plain decimals.
	decimalAmount = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
)

// parseCurrency accepts "$45,000", "45000.00", "(1,200.50)" and "-$3".
func parseCurrency(raw string) (float64, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, errNotCurrency
	}
	negative := false
	if strings.HasPrefix(v, "(") && strings.HasSuffix(v, ")") {
		negative = true
		v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	}
	if strings.HasPrefix(v, "-") {
		negative = !negative
		v = strings.TrimPrefix(v, "-")
	}
	v = strings.TrimPrefix(strings.TrimSpace(v), "$")
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if !decimalAmount.MatchString(v) {
		return 0, errNotCurrency
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errNotCurrency
	}
	if negative {
		n = -n
	}
	return n, nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
