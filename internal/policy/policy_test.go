package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEntityAllowed(t *testing.T) {
	tests := []struct {
		name   string
		policy RedactionPolicy
		entity string
		want   bool
	}{
		{"enabled", RedactionPolicy{EnabledEntities: []string{"PERSON"}}, "PERSON", true},
		{"not enabled", RedactionPolicy{EnabledEntities: []string{"PERSON"}}, "US_SSN", false},
		{"empty list allows all", RedactionPolicy{}, "US_SSN", true},
		{"disabled wins", RedactionPolicy{EnabledEntities: []string{"PERSON"}, DisabledEntities: []string{"PERSON"}}, "PERSON", false},
		{"disabled with empty enabled", RedactionPolicy{DisabledEntities: []string{"URL"}}, "URL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.IsEntityAllowed(tt.entity))
		})
	}
}

func TestMeetsConfidenceThresholdInclusive(t *testing.T) {
	p := RedactionPolicy{MinConfidenceThreshold: 0.6}
	assert.True(t, p.MeetsConfidenceThreshold(0.6))
	assert.True(t, p.MeetsConfidenceThreshold(0.61))
	assert.False(t, p.MeetsConfidenceThreshold(0.59))
}

func TestValidate(t *testing.T) {
	require.NoError(t, GeneralPolicy.Validate())
	assert.Error(t, RedactionPolicy{}.Validate())
	assert.Error(t, RedactionPolicy{Context: "x", MinConfidenceThreshold: 1.5}.Validate())
	assert.Error(t, RedactionPolicy{Context: "x", MinConfidenceThreshold: -0.1}.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	c := HealthcarePolicy.Clone()
	c.EnabledEntities[0] = "CHANGED"
	assert.Equal(t, "PERSON", HealthcarePolicy.EnabledEntities[0])
}

func TestOverrideIsEmpty(t *testing.T) {
	var nilOverride *Override
	assert.True(t, nilOverride.IsEmpty())
	assert.True(t, (&Override{}).IsEmpty())

	allow := true
	assert.False(t, (&Override{RestorationAllowed: &allow}).IsEmpty())
}

func TestPredefined(t *testing.T) {
	ps := Predefined()
	require.Len(t, ps, 3)
	for _, p := range ps {
		assert.False(t, p.RestorationAllowed, p.Context)
		assert.NoError(t, p.Validate())
	}
	assert.Equal(t, 0.5, HealthcarePolicy.MinConfidenceThreshold)
	assert.Equal(t, 0.6, FinancePolicy.MinConfidenceThreshold)
}
