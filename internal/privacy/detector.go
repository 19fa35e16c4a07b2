package privacy

import (
	"context"
	"fmt"
	"sort"

	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"go.uber.org/zap"
)

// Detector finds PII candidates with regex recognizers. It is built once at
// startup and shared by every request.
type Detector struct {
	rules   []DetectionRule
	enabled map[string]bool
	logger  *logger.Logger
}

// New creates a new PII detector instance
func New(cfg config.DetectorConfig, log *logger.Logger) (*Detector, error) {
	detector := &Detector{
		rules:   GetDefaultRules(),
		enabled: make(map[string]bool),
		logger:  log,
	}

	if err := detector.configureDetectors(cfg.Recognizers); err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	log.Info("Privacy detector initialized",
		zap.Int("total_rules", len(detector.rules)),
		zap.Int("enabled_entities", detector.countEnabled()),
	)

	return detector, nil
}

// configureDetectors enables recognizers by entity name; "all" enables every rule
func (d *Detector) configureDetectors(names []string) error {
	for _, rule := range d.rules {
		d.enabled[rule.Name] = false
	}

	for _, name := range names {
		if name == "all" {
			for _, rule := range d.rules {
				d.enabled[rule.Name] = true
			}
			continue
		}

		if _, ok := d.enabled[name]; !ok {
			return fmt.Errorf("unknown detector: %s", name)
		}
		d.enabled[name] = true
	}

	return nil
}

func (d *Detector) countEnabled() int {
	n := 0
	for _, on := range d.enabled {
		if on {
			n++
		}
	}
	return n
}

// SupportedEntities lists the entity types the enabled recognizers emit.
func (d *Detector) SupportedEntities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, rule := range d.rules {
		if d.enabled[rule.Name] && !seen[rule.Name] {
			seen[rule.Name] = true
			out = append(out, rule.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Analyze runs every enabled recognizer over the text. Results are ordered by
// start offset, longer spans first, then by score.
func (d *Detector) Analyze(ctx context.Context, text string) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type key struct {
		typ        string
		start, end int
	}
	best := make(map[key]int)
	detections := make([]Detection, 0)

	for _, rule := range d.rules {
		if !d.enabled[rule.Name] {
			continue
		}

		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.Group], m[2*rule.Group+1]
			if start < 0 || end <= start {
				continue
			}

			value := text[start:end]
			if rule.Validate != nil && !rule.Validate(value) {
				continue
			}

			det := Detection{
				Type:  rule.Name,
				Start: start,
				End:   end,
				Score: enhanceScore(text, start, end, rule.Score, rule.ContextWords),
			}

			k := key{det.Type, det.Start, det.End}
			if i, ok := best[k]; ok {
				if det.Score > detections[i].Score {
					detections[i].Score = det.Score
				}
				continue
			}
			best[k] = len(detections)
			detections = append(detections, det)
		}
	}

	sort.SliceStable(detections, func(i, j int) bool {
		a, b := detections[i], detections[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Len() != b.Len() {
			return a.Len() > b.Len()
		}
		return a.Score > b.Score
	})

	d.logger.Debug("PII analysis complete", zap.Int("candidates", len(detections)))

	return detections, nil
}
