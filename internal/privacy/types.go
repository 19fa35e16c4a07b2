package privacy

import (
	"context"
	"regexp"
)

// DetectionRule represents a single PII recognizer
type DetectionRule struct {
	Name         string
	Pattern      *regexp.Regexp
	Group        int // submatch holding the entity; 0 is the whole match
	Score        float64
	ContextWords []string
	Validate     func(string) bool
}

// Detection is one candidate span found by a recognizer. Offsets are byte
// offsets into the analyzed text.
type Detection struct {
	Type  string  `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

// Len returns the span length.
func (d Detection) Len() int { return d.End - d.Start }

// Overlaps reports whether two spans intersect.
func (d Detection) Overlaps(o Detection) bool {
	return d.Start < o.End && o.Start < d.End
}

// Analyzer finds PII candidates in text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) ([]Detection, error)
}

// Operator mints the replacement for one applied detection.
type Operator func(d Detection, original string) (string, error)
