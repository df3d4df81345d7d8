package rules

import "github.com/kirillkom/finaid-assistant/internal/core/domain"

// DefaultSpec is the FAFSA-oriented catalog shipped with the service.
func DefaultSpec() Spec {
	var spec Spec
	spec.Classification.Floor = DefaultClassificationFloor
	spec.Classification.FileNameBoost = DefaultFileNameBoost
	spec.Classification.Profiles = defaultProfiles()
	spec.Verification = defaultVerificationRules()
	spec.Mappings = defaultMappings()
	spec.Forms = []FormRequirements{
		{
			FormType: domain.FormFAFSA,
			RequiredFields: []string{
				"student_first_name",
				"student_last_name",
				"student_ssn",
				"student_date_of_birth",
				"student_agi",
			},
		},
		{
			FormType: domain.FormCSS,
			RequiredFields: []string{
				"student_first_name",
				"student_last_name",
				"student_agi",
				"cash_savings_checking",
			},
		},
	}
	return spec
}

func defaultProfiles() []ClassificationProfile {
	return []ClassificationProfile{
		{
			Type: domain.DocTypeTaxReturn,
			Keywords: []string{
				"form 1040", "adjusted gross income", "internal revenue service", "taxable income",
				"filing status", "total tax", "department of the treasury", "itemized deductions",
			},
			FileNameHints: []string{"1040", "tax_return", "taxreturn", "tax-return"},
		},
		{
			Type: domain.DocTypeW2,
			Keywords: []string{
				"wage and tax statement", "form w-2", "employer identification number", "wages, tips, other compensation",
				"social security wages", "medicare wages", "federal income tax withheld",
			},
			FileNameHints: []string{"w2", "w-2"},
		},
		{
			Type: domain.DocTypeForm1099,
			Keywords: []string{
				"form 1099", "nonemployee compensation", "payer's tin", "recipient's tin",
				"miscellaneous income", "interest income", "ordinary dividends",
			},
			FileNameHints: []string{"1099"},
		},
		{
			Type: domain.DocTypeBankStatement,
			Keywords: []string{
				"statement period", "beginning balance", "ending balance", "deposits and additions",
				"withdrawals", "available balance", "checking account",
			},
			FileNameHints: []string{"bank", "statement"},
		},
		{
			Type: domain.DocTypePayStub,
			Keywords: []string{
				"earnings statement", "pay period", "gross pay", "net pay", "year to date", "pay date",
			},
			FileNameHints: []string{"paystub", "pay_stub", "payslip"},
		},
		{
			Type: domain.DocTypeSocialSecurityCard,
			Keywords: []string{
				"social security administration", "this number has been established for", "social security card",
			},
			FileNameHints: []string{"ssn", "social_security"},
		},
		{
			Type: domain.DocTypeDriversLicense,
			Keywords: []string{
				"driver license", "drivers license", "restrictions", "endorsements", "department of motor vehicles",
			},
			FileNameHints: []string{"license", "driver"},
		},
		{
			Type: domain.DocTypePassport,
			Keywords: []string{
				"passport", "nationality", "place of birth", "date of issue", "authority",
			},
			FileNameHints: []string{"passport"},
		},
		{
			Type: domain.DocTypeUtilityBill,
			Keywords: []string{
				"amount due", "service address", "billing period", "kwh", "meter reading", "utility",
			},
			FileNameHints: []string{"utility", "bill"},
		},
	}
}

var (
	ssnAliases  = "ssn|social security number"
	nameAliases = "name|employee name|full name"
)

func defaultVerificationRules() []domain.VerificationRule {
	financial := []domain.DocumentType{
		domain.DocTypeTaxReturn,
		domain.DocTypeW2,
		domain.DocTypeForm1099,
		domain.DocTypeBankStatement,
		domain.DocTypePayStub,
		domain.DocTypeUtilityBill,
	}
	required := map[domain.DocumentType][]string{
		domain.DocTypeTaxReturn:          {ssnAliases, "agi|adjusted gross income"},
		domain.DocTypeW2:                 {ssnAliases, "wages", "employer"},
		domain.DocTypeForm1099:           {"payer", "recipient"},
		domain.DocTypeBankStatement:      {},
		domain.DocTypePayStub:            {"gross pay|gross", "pay date|pay period"},
		domain.DocTypeSocialSecurityCard: {ssnAliases, nameAliases},
		domain.DocTypeDriversLicense:     {"license number|dl", "date of birth|dob"},
		domain.DocTypePassport:           {"passport number|passport no", "date of birth|dob"},
		domain.DocTypeUtilityBill:        {"service address|address"},
	}

	var out []domain.VerificationRule
	for _, docType := range domain.KnownDocumentTypes {
		out = append(out,
			domain.VerificationRule{
				Name:         "Extraction confidence",
				DocumentType: docType,
				CheckType:    domain.CheckContentValidation,
				Required:     true,
				Enabled:      true,
				MinimumScore: 0.7,
			},
			domain.VerificationRule{
				Name:         "File format",
				DocumentType: docType,
				CheckType:    domain.CheckFormat,
				Required:     true,
				Enabled:      true,
				MinimumScore: 1,
				Params: domain.RuleParams{
					AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
					MaxFileSizeBytes:  DefaultMaxFileSizeBytes,
				},
			},
			domain.VerificationRule{
				Name:         "Data consistency",
				DocumentType: docType,
				CheckType:    domain.CheckDataConsistency,
				Enabled:      true,
				MinimumScore: 0.8,
				Params: domain.RuleParams{
					ConsistencyGroups: [][]string{
						{"ssn", "social security number"},
						{"date of birth", "dob"},
					},
				},
			},
		)
		if fields, ok := required[docType]; ok {
			out = append(out, domain.VerificationRule{
				Name:         "Required fields",
				DocumentType: docType,
				CheckType:    domain.CheckRequiredFields,
				Required:     true,
				Enabled:      true,
				MinimumScore: 1,
				Params:       domain.RuleParams{RequiredFields: fields},
			})
		}
	}
	for _, docType := range financial {
		out = append(out, domain.VerificationRule{
			Name:         "Document age",
			DocumentType: docType,
			CheckType:    domain.CheckDateRange,
			Enabled:      true,
			MinimumScore: 1,
			Params:       domain.RuleParams{MaxAgeYears: DefaultMaxAgeYears},
		})
	}
	return out
}

func defaultMappings() []MappingSet {
	name := func(source string, prio int) []domain.FieldMapping {
		return []domain.FieldMapping{
			{SourceField: source, TargetField: "student_first_name", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformFirstName}, Priority: prio},
			{SourceField: source, TargetField: "student_last_name", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformLastName}, Priority: prio},
		}
	}
	ssn := func(source string, prio int) domain.FieldMapping {
		return domain.FieldMapping{SourceField: source, TargetField: "student_ssn", DataType: domain.FieldSSN, MinConfidence: 0.85, Transforms: []string{TransformFormatSSN}, Priority: prio}
	}
	dob := func(source string, prio int) domain.FieldMapping {
		return domain.FieldMapping{SourceField: source, TargetField: "student_date_of_birth", DataType: domain.FieldDate, MinConfidence: 0.8, Transforms: []string{TransformNormalizeDate}, Priority: prio}
	}
	currency := func(source, target string, prio int) domain.FieldMapping {
		return domain.FieldMapping{SourceField: source, TargetField: target, DataType: domain.FieldCurrency, MinConfidence: 0.8, Transforms: []string{TransformParseCurrency}, Priority: prio}
	}

	taxReturn := []domain.FieldMapping{
		{SourceField: "FirstName", TargetField: "student_first_name", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformTrim}, Priority: 100},
		{SourceField: "LastName", TargetField: "student_last_name", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformTrim}, Priority: 100},
		ssn("SSN", 90),
		currency("AGI", "student_agi", 85),
		currency("Adjusted Gross Income", "student_agi", 80),
		currency("Income Tax", "student_income_tax_paid", 70),
		{SourceField: "Filing Status", TargetField: "student_tax_filing_status", DataType: domain.FieldText, MinConfidence: 0.75, Transforms: []string{TransformTrim, TransformUppercase}, Priority: 60},
		{SourceField: "Tax Year", TargetField: "tax_year", DataType: domain.FieldNumber, MinConfidence: 0.75, Transforms: []string{TransformTrim}, Priority: 50},
	}

	w2 := append(name("Employee Name", 70),
		ssn("SSN", 80),
		currency("Wages", "student_wages", 75),
		domain.FieldMapping{SourceField: "Employer Name", TargetField: "employer_name", DataType: domain.FieldText, MinConfidence: 0.7, Transforms: []string{TransformTrim}, Priority: 40},
	)

	return []MappingSet{
		{DocumentType: domain.DocTypeTaxReturn, FormType: domain.FormFAFSA, Fields: taxReturn},
		{DocumentType: domain.DocTypeTaxReturn, FormType: domain.FormCSS, Fields: taxReturn},
		{DocumentType: domain.DocTypeW2, FormType: domain.FormFAFSA, Fields: w2},
		{DocumentType: domain.DocTypeW2, FormType: domain.FormCSS, Fields: w2},
		{DocumentType: domain.DocTypePayStub, FormType: domain.FormFAFSA, Fields: []domain.FieldMapping{
			currency("Gross Pay", "student_gross_pay", 50),
		}},
		{DocumentType: domain.DocTypeBankStatement, FormType: domain.FormFAFSA, Fields: []domain.FieldMapping{
			currency("Ending Balance", "cash_savings_checking", 60),
		}},
		{DocumentType: domain.DocTypeBankStatement, FormType: domain.FormCSS, Fields: []domain.FieldMapping{
			currency("Ending Balance", "cash_savings_checking", 60),
		}},
		{DocumentType: domain.DocTypeSocialSecurityCard, FormType: domain.FormFAFSA, Fields: []domain.FieldMapping{
			ssn("Social Security Number", 95),
		}},
		{DocumentType: domain.DocTypeDriversLicense, FormType: domain.FormFAFSA, Fields: append(name("Full Name", 60),
			dob("Date of Birth", 90),
			domain.FieldMapping{SourceField: "License Number", TargetField: "drivers_license_number", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformTrim, TransformUppercase}, Priority: 50},
			domain.FieldMapping{SourceField: "State", TargetField: "drivers_license_state", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformTrim, TransformUppercase}, Priority: 40},
		)},
		{DocumentType: domain.DocTypePassport, FormType: domain.FormFAFSA, Fields: []domain.FieldMapping{
			dob("Date of Birth", 85),
			{SourceField: "Nationality", TargetField: "citizenship", DataType: domain.FieldText, MinConfidence: 0.8, Transforms: []string{TransformTrim}, Priority: 40},
		}},
	}
}
