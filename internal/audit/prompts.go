package audit

import (
	"fmt"
	"strings"
)

// Prompt versions.
const (
	PromptBasic     = "v1_basic"
	PromptCoT       = "v2_cot"
	PromptFewShot   = "v3_few_shot"
	PromptOptimized = "v4_optimized"
)

// PromptVersions lists the supported versions in order.
var PromptVersions = []string{PromptBasic, PromptCoT, PromptFewShot, PromptOptimized}

type fewShotExample struct {
	text     string
	leaked   bool
	analysis string
	reason   string
}

var fewShotExamples = []fewShotExample{
	{
		text:     "Contact [REDACTED_a1b2c3d4] at [REDACTED_e5f6a7b8] for details.",
		leaked:   false,
		analysis: "Both the name and the email are replaced with tokens. No raw identifiers remain.",
		reason:   "All PII properly redacted",
	},
	{
		text:     "Patient [REDACTED_9f8e7d6c] called from 555-867-5309 about results.",
		leaked:   true,
		analysis: "The name is tokenized but the phone number 555-867-5309 is visible.",
		reason:   "Phone number 555-867-5309 exposed",
	},
	{
		text:     "Dr. Smith reviewed the chart for [REDACTED_0a1b2c3d].",
		leaked:   true,
		analysis: "The patient is tokenized but the provider name Dr. Smith is visible.",
		reason:   "Name 'Dr. Smith' exposed",
	},
	{
		text:     "Wire the refund to account [REDACTED_4c5d6e7f] by Friday.",
		leaked:   false,
		analysis: "The account number is tokenized. 'Friday' is not an identifier.",
		reason:   "All PII properly redacted",
	},
	{
		text:     "Employee ID E-44821 belongs to [REDACTED_7a8b9c0d].",
		leaked:   true,
		analysis: "The employee ID E-44821 is an identifier and is not tokenized.",
		reason:   "Employee ID E-44821 exposed",
	},
}

// formatExamples renders up to count examples with their analysis.
func formatExamples(count int) string {
	if count <= 0 {
		count = 1
	}
	count = min(count, len(fewShotExamples))

	var b strings.Builder
	for i, ex := range fewShotExamples[:count] {
		fmt.Fprintf(&b, "**Example %d**\nText: %q\nAnalysis: %s\nOutput: {\"leaked\": %t, \"reason\": %q}\n\n",
			i+1, ex.text, ex.analysis, ex.leaked, ex.reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

const basicPrompt = `You are a Privacy Security Auditor. Your job is to find any UNREDACTED
Personally Identifiable Information (PII) in the text below.

PII includes: Names, Emails, SSNs, Phone Numbers, or ID numbers.

Text to check: "%s"

Return ONLY a JSON object with:
"leaked": true/false,
"reason": "explanation of what was missed"
`

const basicRiskPrompt = `You are a Privacy Security Auditor. Analyze the redacted text below and assign a PII leak risk score.

PII includes: Names, Emails, SSNs, Phone Numbers, Addresses, ID numbers, Dates of Birth.

Text to analyze: "%s"

Evaluate risk on a scale of 0.0 to 1.0:
- 0.0-0.3: Low risk (all PII properly redacted)
- 0.3-0.5: Medium risk (minor issues, contextual clues)
- 0.5-0.7: High risk (partial PII visible, format preservation)
- 0.7-1.0: Critical risk (clear PII leakage)

Return ONLY a JSON object with:
"risk_score": 0.0 to 1.0,
"risk_factors": ["list", "of", "specific", "risks"],
"recommended_action": "allow" or "alert" or "purge",
"confidence": 0.0 to 1.0
`

const cotPrompt = `You are a Privacy Security Auditor analyzing redacted text for PII leaks.

## Task
Identify ANY unredacted Personally Identifiable Information (PII) in the text below.

## PII Categories to Check
- Names (full names, first names with last initial, nicknames)
- Email addresses
- Phone numbers (any format)
- Social Security Numbers
- Physical addresses
- ID numbers (employee IDs, customer IDs, account numbers, license plates)
- Dates of birth, medical record numbers, IP addresses
- Partial identifiers (last 4 of SSN, partial credit card)

## Text to analyze
"%s"

## Think step by step
1. Scan for names, including titles such as Dr., Mr., Mrs.
2. Check for email patterns.
3. Check digit sequences against phone, SSN and account formats.
4. Check for street addresses and zip codes.
5. Confirm sensitive values are replaced with [REDACTED_xxxx] tokens.

## Output Format
Return ONLY valid JSON:
{"leaked": true/false, "reason": "specific explanation of what leaked or why it's clean"}
`

const cotRiskPrompt = `You are a Privacy Security Auditor performing risk analysis on redacted text.

## Task
Assign a PII leak risk score from 0.0 (no risk) to 1.0 (critical risk).

## Text to analyze
"%s"

## Think step by step
1. Direct PII: are raw names, emails, phones or SSNs visible? If so 0.7-1.0.
2. Format preservation: are patterns like XXX-XX-XXXX visible? If so 0.5-0.7.
3. Contextual inference: can tokens be linked to an identity through context? If so 0.3-0.5.
4. Token adjacency: are several tokens within three words of each other? If so 0.2-0.4.
5. Combine the factors and recommend an action:
   0.0-0.5 "allow", 0.5-0.7 "alert", 0.7-1.0 "purge".

## Output Format
Return ONLY valid JSON:
{"risk_score": 0.0 to 1.0, "risk_factors": ["..."], "recommended_action": "allow" or "alert" or "purge", "confidence": 0.0 to 1.0}
`

const fewShotPrompt = `You are a Privacy Security Auditor specialized in detecting PII leaks in redacted text.

## Your Task
Analyze text to find ANY unredacted Personally Identifiable Information (PII).
Properly redacted text uses tokens like [REDACTED_xxxx].

## PII Types
- Names, Emails, Phone Numbers, SSNs, Addresses, IDs, Dates of Birth, Medical Records, IP Addresses

## Examples of Correct Analysis

%s

## Now Analyze This Text

Text: "%s"

Think through each PII category systematically. Are there any identifiers that are NOT redacted?

Return ONLY valid JSON:
{"leaked": true/false, "reason": "specific explanation"}
`

const fewShotRiskPrompt = `You are a Privacy Security Auditor performing PII leak risk analysis on redacted text.

## Your Task
Assign a risk score (0.0-1.0) based on PII exposure risk. Properly redacted text uses [REDACTED_xxxx] tokens.

## Risk Scoring Examples

Text: "Contact [REDACTED_a1b2c3] at [REDACTED_d4e5f6]"
Analysis: {"risk_score": 0.1, "risk_factors": ["All PII properly tokenized"], "recommended_action": "allow", "confidence": 0.95}

Text: "Patient [REDACTED_a1b2], DOB: [REDACTED_c3d4], Room 302"
Analysis: {"risk_score": 0.45, "risk_factors": ["Token adjacency suggests PHI relationship", "Room number is a quasi-identifier"], "recommended_action": "allow", "confidence": 0.88}

Text: "SSN: XXX-XX-1234, Phone: (555) XXX-XXXX"
Analysis: {"risk_score": 0.65, "risk_factors": ["SSN format preserved", "Partial SSN exposed"], "recommended_action": "alert", "confidence": 0.92}

Text: "Contact John Doe at john.doe@email.com or 555-123-4567"
Analysis: {"risk_score": 0.95, "risk_factors": ["Full name visible", "Email visible", "Phone visible"], "recommended_action": "purge", "confidence": 0.98}

## Now Analyze This Text

Text: "%s"

Risk levels: 0.0-0.5 allow, 0.5-0.7 alert, 0.7-1.0 purge.

Return ONLY valid JSON:
{"risk_score": 0.0 to 1.0, "risk_factors": ["..."], "recommended_action": "allow" or "alert" or "purge", "confidence": 0.0 to 1.0}
`

const optimizedPrompt = `You are a PII leak detector. Find unredacted PII (names, emails, phones, SSNs, IDs).

Examples:
- "[REDACTED_a1] at [REDACTED_b2]" -> {"leaked": false, "reason": "All PII redacted"}
- "Email john@test.com" -> {"leaked": true, "reason": "Email john@test.com exposed"}
- "Call 555-1234" -> {"leaked": true, "reason": "Phone 555-1234 exposed"}

Text: "%s"

JSON only:`

const optimizedRiskPrompt = `PII Risk Scorer. Rate 0.0-1.0. Check: names, emails, phones, SSNs, addresses, IDs.

Examples:
- "[REDACTED_a1] at [REDACTED_b2]" -> {"risk_score": 0.1, "risk_factors": ["All redacted"], "recommended_action": "allow", "confidence": 0.95}
- "Email john@test.com" -> {"risk_score": 0.95, "risk_factors": ["Email exposed"], "recommended_action": "purge", "confidence": 0.98}
- "SSN: XXX-XX-1234" -> {"risk_score": 0.65, "risk_factors": ["Format preserved", "Partial SSN"], "recommended_action": "alert", "confidence": 0.90}

Text: "%s"

Risk levels: 0.0-0.5=allow, 0.5-0.7=alert, 0.7-1.0=purge

JSON only:`

// BuildPrompt renders the prompt for a version and mode. Unknown versions
// use the basic template.
func BuildPrompt(version, text string, riskMode bool, examples int) string {
	if riskMode {
		switch version {
		case PromptCoT:
			return fmt.Sprintf(cotRiskPrompt, text)
		case PromptFewShot:
			return fmt.Sprintf(fewShotRiskPrompt, text)
		case PromptOptimized:
			return fmt.Sprintf(optimizedRiskPrompt, text)
		default:
			return fmt.Sprintf(basicRiskPrompt, text)
		}
	}

	switch version {
	case PromptCoT:
		return fmt.Sprintf(cotPrompt, text)
	case PromptFewShot:
		return fmt.Sprintf(fewShotPrompt, formatExamples(examples), text)
	case PromptOptimized:
		return fmt.Sprintf(optimizedPrompt, text)
	default:
		return fmt.Sprintf(basicPrompt, text)
	}
}
