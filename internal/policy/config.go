package policy

import (
	"slices"

	"github.com/raaihank/redact-sentinel/internal/config"
)

// FromConfig builds the configurable policies: the healthcare and finance
// domains with their configured entities, restore flag and threshold,
// followed by any custom entries. An empty entity list keeps the built-in
// list for that domain.
func FromConfig(cfg config.PolicyConfig) []RedactionPolicy {
	out := []RedactionPolicy{
		applyDomain(HealthcarePolicy, cfg.Healthcare),
		applyDomain(FinancePolicy, cfg.Finance),
	}
	for _, c := range cfg.Custom {
		out = append(out, RedactionPolicy{
			Context:                c.Context,
			EnabledEntities:        slices.Clone(c.EnabledEntities),
			DisabledEntities:       append([]string{}, c.DisabledEntities...),
			RestorationAllowed:     c.RestorationAllowed,
			MinConfidenceThreshold: c.MinConfidence,
			Description:            c.Description,
		})
	}
	return out
}

func applyDomain(base RedactionPolicy, d config.DomainPolicyConfig) RedactionPolicy {
	p := base.Clone()
	if len(d.Entities) > 0 {
		p.EnabledEntities = slices.Clone(d.Entities)
	}
	p.RestorationAllowed = d.AllowRestore
	p.MinConfidenceThreshold = d.MinConfidence
	return p
}
