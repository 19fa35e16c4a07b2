package audit

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/llm"
	"github.com/raaihank/redact-sentinel/internal/logger"
)

const timeoutMessage = "Timeout waiting for LLM response"

// Generator produces a raw model completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Agent asks an LLM whether redacted text still carries PII.
type Agent struct {
	gen      Generator
	version  string
	examples int
	logger   *logger.Logger
}

// NewAgent creates an agent. version is the prompt used by Verify and
// AssessRisk; examples is the few-shot example count.
func NewAgent(gen Generator, version string, examples int, log *logger.Logger) *Agent {
	if version == "" {
		version = PromptFewShot
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Agent{
		gen:      gen,
		version:  version,
		examples: examples,
		logger:   log.WithComponent("audit_agent"),
	}
}

// Version returns the default prompt version.
func (a *Agent) Version() string { return a.version }

// CheckForLeaks returns the model's raw JSON answer. It never fails: a
// transport failure yields a safe no-leak (or allow) payload carrying the
// error.
func (a *Agent) CheckForLeaks(ctx context.Context, text, version string, riskMode bool) string {
	prompt := BuildPrompt(version, text, riskMode, a.examples)

	out, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		msg := describeError(err)
		a.logger.Warn("LLM audit call failed",
			zap.String("prompt_version", version),
			zap.Bool("risk_mode", riskMode),
			zap.String("error", msg),
		)
		return failurePayload(msg, riskMode)
	}
	return out
}

// Verify runs a boolean-mode audit with the default prompt.
func (a *Agent) Verify(ctx context.Context, text string) llm.LeakVerdict {
	return llm.ParseLeakResponse(a.CheckForLeaks(ctx, text, a.version, false))
}

// AssessRisk runs a risk-mode audit with the default prompt.
func (a *Agent) AssessRisk(ctx context.Context, text string) llm.RiskAnalysis {
	return llm.ParseRiskResponse(a.CheckForLeaks(ctx, text, a.version, true))
}

func describeError(err error) string {
	var se *llm.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return timeoutMessage
	case errors.As(err, &se):
		return se.Error()
	default:
		return err.Error()
	}
}

func failurePayload(msg string, riskMode bool) string {
	var v any = llm.LeakVerdict{Leaked: false, Error: msg}
	if riskMode {
		v = llm.RiskAnalysis{
			RiskScore:         0,
			RiskFactors:       []string{},
			RecommendedAction: llm.ActionAllow,
			Confidence:        0,
			Error:             msg,
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}
