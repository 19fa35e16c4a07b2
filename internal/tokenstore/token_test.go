package tokenstore

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	shape := regexp.MustCompile(`^\[REDACTED_[0-9a-f]{16}\]$`)
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		assert.Regexp(t, shape, tok)
		assert.True(t, TokenPattern.MatchString(tok))
		assert.False(t, seen[tok], "duplicate token %s", tok)
		seen[tok] = true
	}
}

func TestFindTokens(t *testing.T) {
	text := "a [REDACTED_abc123] b [REDACTED_ABC] c [REDACTED_abc123] d [REDACTED_]"
	assert.Equal(t, []string{"[REDACTED_abc123]", "[REDACTED_abc123]"}, FindTokens(text))
	assert.Empty(t, FindTokens("nothing here"))
}

func TestPolicyMeta(t *testing.T) {
	assert.Equal(t, "[REDACTED_x]:policy", PolicyKey("[REDACTED_x]"))
	assert.Equal(t, "finance:true", EncodePolicyMeta(PolicyMeta{Context: "finance", RestorationAllowed: true}))

	tests := []struct {
		in      string
		context string
		allowed bool
	}{
		{"general:true", "general", true},
		{"general:True", "general", true},
		{"general:TRUE", "general", true},
		{"healthcare:false", "healthcare", false},
		{"healthcare:yes", "healthcare", false},
		{"tenant:eu:true", "tenant:eu", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			m, err := DecodePolicyMeta(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.context, m.Context)
			assert.Equal(t, tt.allowed, m.RestorationAllowed)
		})
	}

	_, err := DecodePolicyMeta("nocolon")
	assert.Error(t, err)
}
