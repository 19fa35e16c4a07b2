package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/redact-sentinel/internal/policy"
)

type stubGenerator struct {
	out    string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.out, g.err
}

func TestSuggestFromModel(t *testing.T) {
	gen := &stubGenerator{out: "```json\n" + `{
		"recommended_context": "finance",
		"confidence": 0.88,
		"reasoning": "Mixed data",
		"detected_domains": ["healthcare", "finance"],
		"alternative_contexts": ["healthcare"],
		"risk_warning": "cross-domain PII"
	}` + "\n```"}
	svc := NewService(gen, nil)

	rec := svc.Suggest(context.Background(), "Patient billing for credit card")
	assert.Contains(t, gen.prompt, `"Patient billing for credit card"`)
	assert.Equal(t, SourceLLM, rec.Source)
	assert.Equal(t, policy.ContextFinance, rec.RecommendedContext)
	assert.InDelta(t, 0.88, rec.Confidence, 1e-9)
	assert.Equal(t, "Mixed data", rec.Reasoning)
	assert.Equal(t, []string{"healthcare", "finance"}, rec.DetectedDomains)
	assert.Equal(t, []string{"healthcare"}, rec.AlternativeContexts)
	require.NotNil(t, rec.RiskWarning)
	assert.Equal(t, "cross-domain PII", *rec.RiskWarning)
}

func TestSuggestAcceptsNumericStringConfidence(t *testing.T) {
	gen := &stubGenerator{out: `{"recommended_context": "general", "confidence": "0.7", "reasoning": "r", "detected_domains": [], "risk_warning": null}`}

	rec := NewService(gen, nil).Suggest(context.Background(), "hello")
	assert.Equal(t, SourceLLM, rec.Source)
	assert.InDelta(t, 0.7, rec.Confidence, 1e-9)
	assert.Nil(t, rec.RiskWarning)
}

func TestSuggestFallsBackOnInvalidAnswer(t *testing.T) {
	text := "The patient saw the doctor at the hospital"

	tests := map[string]struct {
		out    string
		reason string
	}{
		"not json":          {"sure, healthcare", "JSON parse error"},
		"missing field":     {`{"recommended_context": "healthcare", "confidence": 0.9, "reasoning": "r"}`, `missing "detected_domains"`},
		"unknown context":   {`{"recommended_context": "legal", "confidence": 0.9, "reasoning": "r", "detected_domains": []}`, `unknown context "legal"`},
		"confidence high":   {`{"recommended_context": "healthcare", "confidence": 1.5, "reasoning": "r", "detected_domains": []}`, "confidence out of range"},
		"confidence string": {`{"recommended_context": "healthcare", "confidence": "very", "reasoning": "r", "detected_domains": []}`, "confidence out of range"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rec := NewService(&stubGenerator{out: tt.out}, nil).Suggest(context.Background(), text)
			assert.Equal(t, SourceFallback, rec.Source)
			assert.Equal(t, policy.ContextHealthcare, rec.RecommendedContext)
			assert.True(t, strings.HasPrefix(rec.Reasoning, "Keyword-based fallback"), rec.Reasoning)
			assert.Contains(t, rec.Reasoning, "(LLM error: invalid response: ")
			assert.Contains(t, rec.Reasoning, tt.reason)
		})
	}

	t.Run("general text records the rejection", func(t *testing.T) {
		gen := &stubGenerator{out: `{"recommended_context": "legal", "confidence": 0.9, "reasoning": "r", "detected_domains": []}`}
		rec := NewService(gen, nil).Suggest(context.Background(), "hello world")
		assert.Equal(t, policy.ContextGeneral, rec.RecommendedContext)
		assert.Equal(t,
			`No clear domain detected, using default general policy (LLM error: invalid response: malformed_response: unknown context "legal")`,
			rec.Reasoning)
	})
}

func TestSuggestFallsBackOnTransportError(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		gen := &stubGenerator{err: fmt.Errorf("llm api call: %w", context.DeadlineExceeded)}
		rec := NewService(gen, nil).Suggest(context.Background(), "hello world")
		assert.Equal(t, SourceFallback, rec.Source)
		assert.Equal(t, policy.ContextGeneral, rec.RecommendedContext)
		assert.Equal(t, "No clear domain detected, using default general policy (LLM error: LLM timeout)", rec.Reasoning)
	})

	t.Run("connection error", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("connection refused")}
		rec := NewService(gen, nil).Suggest(context.Background(), "bank payment for the invoice")
		assert.Equal(t, policy.ContextFinance, rec.RecommendedContext)
		assert.Contains(t, rec.Reasoning, "(LLM error: connection refused)")
	})

	t.Run("no generator", func(t *testing.T) {
		rec := NewService(nil, nil).Suggest(context.Background(), "hello")
		assert.Equal(t, SourceFallback, rec.Source)
	})
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		context    string
		confidence float64
	}{
		{"no keywords", "Please call me tomorrow", policy.ContextGeneral, 0.6},
		{"single healthcare hit", "The patient is here", policy.ContextGeneral, 0.6},
		{"two healthcare hits", "Patient diagnosis attached", policy.ContextHealthcare, 0.7},
		{"finance beats healthcare", "Patient credit card payment for the bank account", policy.ContextFinance, 0.7},
		{"tie goes to general", "patient doctor payment bank", policy.ContextGeneral, 0.6},
		{"repeated keyword counts once", "payment payment payment", policy.ContextGeneral, 0.6},
		{"case insensitive", "HIPAA covers PHI", policy.ContextHealthcare, 0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Fallback(tt.text, "")
			assert.Equal(t, tt.context, rec.RecommendedContext)
			assert.InDelta(t, tt.confidence, rec.Confidence, 1e-9)
			assert.Equal(t, []string{tt.context}, rec.DetectedDomains)
			assert.Empty(t, rec.AlternativeContexts)
			assert.Nil(t, rec.RiskWarning)
			assert.LessOrEqual(t, rec.Confidence, 0.7)
			assert.GreaterOrEqual(t, rec.Confidence, 0.5)
		})
	}
}
