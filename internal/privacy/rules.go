package privacy

import (
	"math/big"
	"net"
	"regexp"
	"strconv"
	"strings"
)

const (
	// contextBoost is added to a rule's base score when a context word is
	// found near the match.
	contextBoost = 0.35

	// contextWindow is the number of bytes searched on each side of a match.
	contextWindow = 100
)

// GetDefaultRules returns the built-in recognizers
func GetDefaultRules() []DetectionRule {
	return []DetectionRule{
		{
			Name:    "EMAIL_ADDRESS",
			Pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
			Score:   1.0,
		},
		{
			Name:         "PHONE_NUMBER",
			Pattern:      regexp.MustCompile(`(?:\+?1[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]?\d{3}[\s.\-]\d{4}\b`),
			Score:        0.4,
			ContextWords: []string{"phone", "call", "mobile", "cell", "tel", "contact", "reach"},
		},
		{
			Name:         "US_SSN",
			Pattern:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			Score:        0.5,
			ContextWords: []string{"ssn", "social security", "social"},
			Validate:     validSSN,
		},
		{
			Name:         "CREDIT_CARD",
			Pattern:      regexp.MustCompile(`\b(?:\d[ \-]?){12,18}\d\b`),
			Score:        0.9,
			ContextWords: []string{"card", "credit", "visa", "mastercard", "amex", "payment"},
			Validate:     func(s string) bool { return luhnValid(stripNonDigits(s)) },
		},
		{
			Name:         "IBAN_CODE",
			Pattern:      regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,3})?\b`),
			Score:        0.85,
			ContextWords: []string{"iban", "bank", "transfer", "account"},
			Validate:     func(s string) bool { return validIBAN(strings.ReplaceAll(s, " ", "")) },
		},
		{
			Name:     "IP_ADDRESS",
			Pattern:  regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Score:    0.6,
			Validate: func(s string) bool { return net.ParseIP(s) != nil },
		},
		{
			Name:    "URL",
			Pattern: regexp.MustCompile(`\bhttps?://[^\s<>"']+`),
			Score:   0.6,
		},
		{
			Name: "DATE_TIME",
			Pattern: regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|` +
				`(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2}(?:st|nd|rd|th)?,? \d{4})\b`),
			Score:        0.6,
			ContextWords: []string{"born", "dob", "birth", "date", "admitted", "on"},
		},
		{
			Name:         "US_DRIVER_LICENSE",
			Pattern:      regexp.MustCompile(`\b[A-Z]\d{7}\b`),
			Score:        0.3,
			ContextWords: []string{"driver", "license", "licence", "dl"},
		},
		{
			Name:         "US_BANK_NUMBER",
			Pattern:      regexp.MustCompile(`\b\d{8,17}\b`),
			Score:        0.05,
			ContextWords: []string{"account", "bank", "routing", "acct"},
		},
		{
			Name: "LOCATION",
			Pattern: regexp.MustCompile(`\b\d{1,5}(?: [A-Z][a-z]+){1,3} ` +
				`(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b\.?`),
			Score:        0.6,
			ContextWords: []string{"address", "lives", "located", "street"},
		},
		{
			Name:    "PERSON",
			Pattern: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.? [A-Z][a-z]+(?: [A-Z][a-z]+)?`),
			Score:   0.85,
		},
		{
			Name:    "PERSON",
			Pattern: regexp.MustCompile(`(?i:my name is|name:|patient|contact|customer) ([A-Z][a-z]+(?: [A-Z][a-z]+)?)`),
			Group:   1,
			Score:   0.75,
		},
	}
}

// enhanceScore boosts the base score when a context word appears within
// contextWindow bytes of the match. The result is capped at 1.
func enhanceScore(text string, start, end int, base float64, words []string) float64 {
	if len(words) == 0 {
		return base
	}
	lo := max(start-contextWindow, 0)
	hi := min(end+contextWindow, len(text))
	window := strings.ToLower(text[lo:start] + " " + text[end:hi])

	for _, w := range words {
		if containsWord(window, w) {
			return min(base+contextBoost, 1.0)
		}
	}
	return base
}

func containsWord(window, word string) bool {
	for i := 0; ; {
		j := strings.Index(window[i:], word)
		if j < 0 {
			return false
		}
		j += i
		end := j + len(word)
		if (j == 0 || !isAlnum(window[j-1])) && (end == len(window) || !isAlnum(window[end])) {
			return true
		}
		i = j + 1
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// luhnValid checks whether a digit string passes the Luhn algorithm.
func luhnValid(number string) bool {
	n := len(number)
	if n < 13 || n > 19 {
		return false
	}
	sum := 0
	alt := false
	for i := n - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// validIBAN verifies length bounds and the MOD-97 check digits.
func validIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, ch := range rearranged {
		switch {
		case ch >= '0' && ch <= '9':
			digits.WriteRune(ch)
		case ch >= 'A' && ch <= 'Z':
			digits.WriteString(strconv.Itoa(int(ch-'A') + 10))
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

// validSSN rejects area, group and serial numbers that are never issued.
func validSSN(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return false
	}
	area, group, serial := parts[0], parts[1], parts[2]
	if area == "000" || area == "666" || area[0] == '9' {
		return false
	}
	return group != "00" && serial != "0000"
}
