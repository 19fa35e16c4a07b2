package policy

// Predefined contexts.
const (
	ContextGeneral    = "general"
	ContextHealthcare = "healthcare"
	ContextFinance    = "finance"
)

// GeneralPolicy redacts the common identifiers and never allows restoration.
var GeneralPolicy = RedactionPolicy{
	Context: ContextGeneral,
	EnabledEntities: []string{
		"PERSON", "EMAIL_ADDRESS", "PHONE_NUMBER", "US_SSN", "CREDIT_CARD",
		"IBAN_CODE", "IP_ADDRESS", "LOCATION", "DATE_TIME", "URL",
		"US_DRIVER_LICENSE", "US_BANK_NUMBER",
	},
	DisabledEntities:       []string{},
	RestorationAllowed:     false,
	MinConfidenceThreshold: 0.0,
	Description:            "Default policy for general-purpose text",
}

// HealthcarePolicy covers PHI identifiers.
var HealthcarePolicy = RedactionPolicy{
	Context: ContextHealthcare,
	EnabledEntities: []string{
		"PERSON", "PHONE_NUMBER", "EMAIL_ADDRESS", "US_SSN",
		"DATE_TIME", "LOCATION", "IP_ADDRESS",
	},
	DisabledEntities:       []string{},
	RestorationAllowed:     false,
	MinConfidenceThreshold: 0.5,
	Description:            "HIPAA-oriented policy for clinical text",
}

// FinancePolicy covers PCI and banking identifiers.
var FinancePolicy = RedactionPolicy{
	Context: ContextFinance,
	EnabledEntities: []string{
		"PERSON", "US_SSN", "CREDIT_CARD", "IBAN_CODE",
		"PHONE_NUMBER", "EMAIL_ADDRESS", "US_BANK_NUMBER", "US_DRIVER_LICENSE",
	},
	DisabledEntities:       []string{},
	RestorationAllowed:     false,
	MinConfidenceThreshold: 0.6,
	Description:            "PCI-DSS-oriented policy for financial text",
}

// Predefined returns copies of the built-in policies.
func Predefined() []RedactionPolicy {
	return []RedactionPolicy{
		GeneralPolicy.Clone(),
		HealthcarePolicy.Clone(),
		FinancePolicy.Clone(),
	}
}
