package policy

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/raaihank/redact-sentinel/internal/privacy"
)

// Engine holds the policy registry. Lookups are lock-free; registrations
// swap in a new map so readers never observe a partial update.
type Engine struct {
	registry atomic.Pointer[map[string]RedactionPolicy]
}

// NewEngine creates an engine seeded with the predefined policies followed
// by any extra policies. Later entries replace earlier ones with the same name.
func NewEngine(seed ...RedactionPolicy) *Engine {
	e := &Engine{}
	m := make(map[string]RedactionPolicy)
	for _, p := range Predefined() {
		m[p.Context] = p
	}
	for _, p := range seed {
		m[p.Context] = p.Clone()
	}
	e.registry.Store(&m)
	return e
}

// Load returns a copy of the named policy.
func (e *Engine) Load(context string) (RedactionPolicy, error) {
	m := *e.registry.Load()
	p, ok := m[context]
	if !ok {
		return RedactionPolicy{}, fmt.Errorf("%w: %s. Available: %s",
			ErrUnknownContext, context, strings.Join(sortedKeys(m), ", "))
	}
	return p.Clone(), nil
}

// Register adds or replaces a policy.
func (e *Engine) Register(p RedactionPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p = p.Clone()
	for {
		old := e.registry.Load()
		next := maps.Clone(*old)
		next[p.Context] = p
		if e.registry.CompareAndSwap(old, &next) {
			return nil
		}
	}
}

// AvailableContexts lists registered policy names in sorted order.
func (e *Engine) AvailableContexts() []string {
	return sortedKeys(*e.registry.Load())
}

// Policies returns every registered policy sorted by context.
func (e *Engine) Policies() []RedactionPolicy {
	m := *e.registry.Load()
	out := make([]RedactionPolicy, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k].Clone())
	}
	return out
}

// Merge applies an override to a base policy. The base is not modified.
func (e *Engine) Merge(base RedactionPolicy, o *Override) RedactionPolicy {
	merged := base.Clone()
	if o == nil {
		return merged
	}
	if o.Context != nil {
		merged.Context = *o.Context
	}
	if o.EnabledEntities != nil {
		merged.EnabledEntities = slices.Clone(*o.EnabledEntities)
	}
	if o.DisabledEntities != nil {
		merged.DisabledEntities = slices.Clone(*o.DisabledEntities)
	}
	if o.RestorationAllowed != nil {
		merged.RestorationAllowed = *o.RestorationAllowed
	}
	if o.MinConfidenceThreshold != nil {
		merged.MinConfidenceThreshold = *o.MinConfidenceThreshold
	}
	return merged
}

// FilterEntities keeps detections whose type is allowed and whose score
// meets the threshold, preserving order.
func (e *Engine) FilterEntities(detections []privacy.Detection, p RedactionPolicy) []privacy.Detection {
	out := make([]privacy.Detection, 0, len(detections))
	for _, d := range detections {
		if p.IsEntityAllowed(d.Type) && p.MeetsConfidenceThreshold(d.Score) {
			out = append(out, d)
		}
	}
	return out
}

// Resolve computes the policy for one request. An unknown default context
// falls back to general. When overrides are allowed and name a known
// context, that context becomes the base before merging.
func (e *Engine) Resolve(defaultContext string, o *Override, allowOverride bool) RedactionPolicy {
	base, err := e.Load(defaultContext)
	if err != nil {
		base = GeneralPolicy.Clone()
		if p, lerr := e.Load(ContextGeneral); lerr == nil {
			base = p
		}
	}

	if o == nil || !allowOverride {
		return base
	}

	// An unknown override context keeps the default base.
	if o.Context != nil {
		if p, err := e.Load(*o.Context); err == nil {
			base = p
		}
	}

	return e.Merge(base, o)
}

func sortedKeys(m map[string]RedactionPolicy) []string {
	return slices.Sorted(maps.Keys(m))
}
