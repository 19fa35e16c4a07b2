package audit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/redact-sentinel/internal/llm"
)

type stubGenerator struct {
	out     string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.out, g.err
}

func TestBuildPrompt(t *testing.T) {
	text := "Contact [REDACTED_abc] at 555-1234"

	for _, v := range PromptVersions {
		for _, risk := range []bool{false, true} {
			p := BuildPrompt(v, text, risk, 3)
			assert.Contains(t, p, text, "version %s risk %v", v, risk)
			if risk {
				assert.Contains(t, p, "risk_score")
			} else {
				assert.Contains(t, p, "leaked")
			}
		}
	}

	assert.Equal(t, BuildPrompt(PromptBasic, text, false, 0), BuildPrompt("v9_unknown", text, false, 0))
	assert.Equal(t, BuildPrompt(PromptBasic, text, true, 0), BuildPrompt("", text, true, 0))
}

func TestBuildPromptFewShotExamples(t *testing.T) {
	one := BuildPrompt(PromptFewShot, "x", false, 1)
	assert.Contains(t, one, "**Example 1**")
	assert.NotContains(t, one, "**Example 2**")

	all := BuildPrompt(PromptFewShot, "x", false, 50)
	assert.Contains(t, all, fmt.Sprintf("**Example %d**", len(fewShotExamples)))
	assert.NotContains(t, all, fmt.Sprintf("**Example %d**", len(fewShotExamples)+1))
}

func TestCheckForLeaks(t *testing.T) {
	ctx := context.Background()

	t.Run("returns raw model output", func(t *testing.T) {
		gen := &stubGenerator{out: `{"leaked": true, "reason": "phone"}`}
		a := NewAgent(gen, PromptCoT, 3, nil)

		out := a.CheckForLeaks(ctx, "call 555-1234", PromptOptimized, false)
		assert.Equal(t, `{"leaked": true, "reason": "phone"}`, out)
		require.Len(t, gen.prompts, 1)
		assert.True(t, strings.HasPrefix(gen.prompts[0], "You are a PII leak detector"))
	})

	t.Run("status error", func(t *testing.T) {
		gen := &stubGenerator{err: &llm.StatusError{StatusCode: 500}}
		a := NewAgent(gen, "", 3, nil)

		v := llm.ParseLeakResponse(a.CheckForLeaks(ctx, "x", PromptBasic, false))
		assert.False(t, v.Leaked)
		assert.Equal(t, "HTTP 500", v.Error)
	})

	t.Run("timeout", func(t *testing.T) {
		gen := &stubGenerator{err: fmt.Errorf("llm api call: %w", context.DeadlineExceeded)}
		a := NewAgent(gen, "", 3, nil)

		v := llm.ParseLeakResponse(a.CheckForLeaks(ctx, "x", PromptBasic, false))
		assert.False(t, v.Leaked)
		assert.Equal(t, timeoutMessage, v.Error)
	})

	t.Run("other error in risk mode", func(t *testing.T) {
		gen := &stubGenerator{err: errors.New("connection refused")}
		a := NewAgent(gen, "", 3, nil)

		r := llm.ParseRiskResponse(a.CheckForLeaks(ctx, "x", PromptBasic, true))
		assert.Equal(t, llm.ActionAllow, r.RecommendedAction)
		assert.Zero(t, r.RiskScore)
		assert.Equal(t, "connection refused", r.Error)
	})
}

func TestVerifyAgainstModelServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response": "` + "```json\\n{\\\"leaked\\\": true, \\\"reason\\\": \\\"email\\\"}\\n```" + `"}`))
	}))
	defer server.Close()

	a := NewAgent(llm.NewClient(llm.Config{URL: server.URL, Model: "phi3"}), PromptFewShot, 2, nil)
	v := a.Verify(context.Background(), "mail bob@example.com")
	assert.True(t, v.Leaked)
	assert.Equal(t, "email", v.Reason)
	assert.False(t, v.Indeterminate())
}

func TestAssessRisk(t *testing.T) {
	gen := &stubGenerator{out: `{"risk_score": 0.95, "risk_factors": ["Email visible"], "recommended_action": "purge", "confidence": 0.9}`}
	a := NewAgent(gen, PromptOptimized, 3, nil)

	r := a.AssessRisk(context.Background(), "mail bob@example.com")
	assert.Empty(t, r.Error)
	assert.Equal(t, llm.ActionPurge, r.RecommendedAction)
	assert.Equal(t, []string{"Email visible"}, r.RiskFactors)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "PII Risk Scorer")
}
