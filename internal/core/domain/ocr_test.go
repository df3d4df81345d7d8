package domain

import "testing"

func TestInferFieldDataTypeMatchesWholeWords(t *testing.T) {
	cases := []struct {
		name  string
		value string
		want  FieldDataType
	}{
		{"SSN", "123456789", FieldSSN},
		{"Employee SSN", "123-45-6789", FieldSSN},
		{"Social Security Number", "123456789", FieldSSN},
		{"social_security_no", "123456789", FieldSSN},
		{"Social Security Wages", "52,000.00", FieldCurrency},
		{"Social Security Tax Withheld", "$3,224.00", FieldCurrency},
		{"Date of Birth", "March 4, 2004", FieldDate},
		{"Pay Date", "", FieldDate},
		{"DOB", "", FieldDate},
		{"Last Update", "v2", FieldText},
		{"Candidate", "Jane Doe", FieldText},
		{"E-mail", "", FieldEmail},
		{"Contact", "jane@example.com", FieldEmail},
		{"Period End", "06/30/2024", FieldDate},
		{"Hours", "80", FieldNumber},
	}
	for _, tc := range cases {
		if got := InferFieldDataType(tc.name, tc.value); got != tc.want {
			t.Fatalf("InferFieldDataType(%q, %q) = %q, want %q", tc.name, tc.value, got, tc.want)
		}
	}
}
