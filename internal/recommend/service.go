package recommend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/llm"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/metrics"
	"github.com/raaihank/redact-sentinel/internal/policy"
)

// Sources of a recommendation.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

var requiredFields = []string{"recommended_context", "confidence", "reasoning", "detected_domains"}

var validContexts = []string{policy.ContextGeneral, policy.ContextHealthcare, policy.ContextFinance}

var (
	healthcareKeywords = []string{"patient", "doctor", "hospital", "medical", "diagnosis", "treatment", "phi", "hipaa"}
	financeKeywords    = []string{"credit card", "payment", "transaction", "account", "bank", "financial", "pci", "invoice"}
)

// Generator produces a raw model completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recommendation is a suggested policy context for a text.
type Recommendation struct {
	RecommendedContext  string   `json:"recommended_context"`
	Confidence          float64  `json:"confidence"`
	Reasoning           string   `json:"reasoning"`
	DetectedDomains     []string `json:"detected_domains"`
	AlternativeContexts []string `json:"alternative_contexts"`
	RiskWarning         *string  `json:"risk_warning"`
	Source              string   `json:"source"`
}

// Service suggests a policy context, falling back to keyword matching when
// the model is unavailable or its answer fails validation.
type Service struct {
	gen    Generator
	logger *logger.Logger
}

// NewService creates a recommendation service. gen may be nil, in which
// case every suggestion comes from the keyword fallback.
func NewService(gen Generator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{gen: gen, logger: log.WithComponent("policy_recommendation")}
}

// Suggest classifies text into one of the predefined contexts. It never
// fails.
func (s *Service) Suggest(ctx context.Context, text string) Recommendation {
	rec := s.suggest(ctx, text)
	metrics.PolicyRecommendations.WithLabelValues(rec.Source).Inc()
	return rec
}

func (s *Service) suggest(ctx context.Context, text string) Recommendation {
	if s.gen == nil {
		return Fallback(text, "")
	}

	raw, err := s.gen.Generate(ctx, BuildPrompt(text))
	if err != nil {
		msg := describeError(err)
		s.logger.Warn("LLM recommendation failed, using keyword fallback", zap.String("error", msg))
		return Fallback(text, msg)
	}

	rec, err := parseRecommendation(raw)
	if err != nil {
		s.logger.Warn("Invalid LLM recommendation, using keyword fallback", zap.Error(err))
		return Fallback(text, "invalid response: "+err.Error())
	}
	return rec
}

func describeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "LLM timeout"
	}
	return err.Error()
}

// parseRecommendation validates a model answer against the closed schema.
func parseRecommendation(raw string) (Recommendation, error) {
	obj, err := llm.DecodeObject(raw, requiredFields...)
	if err != nil {
		return Recommendation{}, err
	}

	name, _ := obj["recommended_context"].(string)
	if !slices.Contains(validContexts, name) {
		return Recommendation{}, fmt.Errorf("%w: unknown context %q", llm.ErrMalformedResponse, name)
	}

	confidence, ok := toFloat(obj["confidence"])
	if !ok || confidence < 0 || confidence > 1 {
		return Recommendation{}, fmt.Errorf("%w: confidence out of range", llm.ErrMalformedResponse)
	}

	rec := Recommendation{
		RecommendedContext:  name,
		Confidence:          confidence,
		DetectedDomains:     toStrings(obj["detected_domains"]),
		AlternativeContexts: toStrings(obj["alternative_contexts"]),
		Source:              SourceLLM,
	}
	rec.Reasoning, _ = obj["reasoning"].(string)
	if w, ok := obj["risk_warning"].(string); ok && w != "" {
		rec.RiskWarning = &w
	}
	return rec, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStrings(v any) []string {
	out := []string{}
	items, _ := v.([]any)
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Fallback picks a context from keyword hits. llmErr, when set, is quoted
// in the reasoning.
func Fallback(text, llmErr string) Recommendation {
	lower := strings.ToLower(text)
	healthcare := countKeywords(lower, healthcareKeywords)
	finance := countKeywords(lower, financeKeywords)

	rec := Recommendation{
		AlternativeContexts: []string{},
		Source:              SourceFallback,
	}

	switch {
	case healthcare > finance && healthcare >= 2:
		rec.RecommendedContext = policy.ContextHealthcare
		rec.Confidence = keywordConfidence(healthcare)
		rec.Reasoning = "Keyword-based fallback detected healthcare terms"
	case finance > healthcare && finance >= 2:
		rec.RecommendedContext = policy.ContextFinance
		rec.Confidence = keywordConfidence(finance)
		rec.Reasoning = "Keyword-based fallback detected finance terms"
	default:
		rec.RecommendedContext = policy.ContextGeneral
		rec.Confidence = 0.6
		rec.Reasoning = "No clear domain detected, using default general policy"
	}
	rec.DetectedDomains = []string{rec.RecommendedContext}

	if llmErr != "" {
		rec.Reasoning += fmt.Sprintf(" (LLM error: %s)", llmErr)
	}
	return rec
}

func countKeywords(lower string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

func keywordConfidence(hits int) float64 {
	return min(0.7, 0.5+0.1*float64(hits))
}
