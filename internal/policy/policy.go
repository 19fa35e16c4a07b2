package policy

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownContext is returned when a policy name is not registered.
var ErrUnknownContext = errors.New("unknown policy context")

// RedactionPolicy is a named rule set governing which entities are redacted
// and whether redacted tokens may later be restored.
type RedactionPolicy struct {
	Context                string   `json:"context"`
	EnabledEntities        []string `json:"enabled_entities"`
	DisabledEntities       []string `json:"disabled_entities"`
	RestorationAllowed     bool     `json:"restoration_allowed"`
	MinConfidenceThreshold float64  `json:"min_confidence_threshold"`
	Description            string   `json:"description,omitempty"`
}

// IsEntityAllowed reports whether the entity type may be redacted.
// Disabled entities win over enabled ones; an empty enabled list allows all.
func (p RedactionPolicy) IsEntityAllowed(entityType string) bool {
	if slices.Contains(p.DisabledEntities, entityType) {
		return false
	}
	if len(p.EnabledEntities) == 0 {
		return true
	}
	return slices.Contains(p.EnabledEntities, entityType)
}

// MeetsConfidenceThreshold is inclusive at the boundary.
func (p RedactionPolicy) MeetsConfidenceThreshold(score float64) bool {
	return score >= p.MinConfidenceThreshold
}

// Validate checks the policy can be registered.
func (p RedactionPolicy) Validate() error {
	if p.Context == "" {
		return fmt.Errorf("policy context is required")
	}
	if p.MinConfidenceThreshold < 0 || p.MinConfidenceThreshold > 1 {
		return fmt.Errorf("min_confidence_threshold %v out of range [0, 1]", p.MinConfidenceThreshold)
	}
	return nil
}

// Clone returns a deep copy.
func (p RedactionPolicy) Clone() RedactionPolicy {
	p.EnabledEntities = slices.Clone(p.EnabledEntities)
	p.DisabledEntities = slices.Clone(p.DisabledEntities)
	return p
}

// Override is a partial policy. Nil fields inherit from the base policy,
// present fields replace it wholesale.
type Override struct {
	Context                *string   `json:"context,omitempty"`
	EnabledEntities        *[]string `json:"enabled_entities,omitempty"`
	DisabledEntities       *[]string `json:"disabled_entities,omitempty"`
	RestorationAllowed     *bool     `json:"restoration_allowed,omitempty"`
	MinConfidenceThreshold *float64  `json:"min_confidence_threshold,omitempty"`
}

// IsEmpty reports whether no field is set.
func (o *Override) IsEmpty() bool {
	return o == nil || (o.Context == nil && o.EnabledEntities == nil && o.DisabledEntities == nil &&
		o.RestorationAllowed == nil && o.MinConfidenceThreshold == nil)
}
