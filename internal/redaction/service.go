package redaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/privacy"
	"github.com/raaihank/redact-sentinel/internal/tokenstore"
	"go.uber.org/zap"
)

// DefaultTokenTTL applies when no TTL is configured.
const DefaultTokenTTL = 24 * time.Hour

// Service tokenizes detected PII into the token store and restores it.
type Service struct {
	analyzer privacy.Analyzer
	store    tokenstore.Store
	engine   *policy.Engine
	ttl      time.Duration
	logger   *logger.Logger

	newToken func() (string, error)
}

// NewService creates a redaction service
func NewService(analyzer privacy.Analyzer, store tokenstore.Store, engine *policy.Engine, cfg Config, log *logger.Logger) *Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		analyzer: analyzer,
		store:    store,
		engine:   engine,
		ttl:      ttl,
		logger:   log.WithComponent("redaction"),
		newToken: tokenstore.NewToken,
	}
}

// RedactAndStore replaces detected PII with tokens and persists each mapping.
// A nil policy disables filtering and skips policy metadata. Every token in
// the returned text is durable in the store before the call returns.
func (s *Service) RedactAndStore(ctx context.Context, text string, p *policy.RedactionPolicy) (*Result, error) {
	detections, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("entity detection failed: %w", err)
	}

	if p != nil {
		detections = s.engine.FilterEntities(detections, *p)
	}

	var meta *tokenstore.PolicyMeta
	if p != nil {
		meta = &tokenstore.PolicyMeta{Context: p.Context, RestorationAllowed: p.RestorationAllowed}
	}

	created := make([]string, 0, len(detections))
	tokenFor := make(map[int]string, len(detections))

	redacted, applied, err := privacy.Anonymize(text, detections, func(d privacy.Detection, original string) (string, error) {
		token, err := s.newToken()
		if err != nil {
			return "", err
		}
		if err := s.store.PutMapping(ctx, tokenstore.Mapping{Token: token, Original: original, Meta: meta}, s.ttl); err != nil {
			return "", err
		}
		created = append(created, token)
		tokenFor[d.Start] = token
		return token, nil
	})
	if err != nil {
		s.rollback(created)
		if errors.Is(err, tokenstore.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		return nil, fmt.Errorf("redaction failed: %w", err)
	}

	scores := make([]float64, len(detections))
	for i, d := range detections {
		scores[i] = d.Score
	}

	entities := make([]Entity, 0, len(applied))
	for _, idx := range applied {
		d := detections[idx]
		entities = append(entities, Entity{Type: d.Type, Token: tokenFor[d.Start], Score: d.Score})
	}

	s.logger.Debug("Redaction complete",
		zap.Int("candidates", len(detections)),
		zap.Int("tokens_created", len(created)),
		zap.Bool("policy_applied", p != nil))

	return &Result{
		RedactedText:  redacted,
		Scores:        scores,
		CreatedTokens: created,
		Entities:      entities,
		Policy:        p,
	}, nil
}

// rollback deletes tokens written before a mid-call failure. It is best
// effort and runs on a fresh context so caller cancellation does not skip it.
func (s *Service) rollback(tokens []string) {
	if len(tokens) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	keys := make([]string, 0, 2*len(tokens))
	for _, t := range tokens {
		keys = append(keys, t, tokenstore.PolicyKey(t))
	}
	if _, err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Rollback of partially stored tokens failed",
			zap.Int("tokens", len(tokens)), zap.Error(err))
	}
}

// Restore substitutes stored originals for every token in text. When
// checkPolicy is set, any token whose metadata forbids restoration fails the
// whole call with a *PolicyViolationError and nothing is substituted.
// Missing tokens are left verbatim and reported as warnings.
func (s *Service) Restore(ctx context.Context, text string, checkPolicy bool) (*RestoreResult, error) {
	tokens := tokenstore.FindTokens(text)

	unique := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}

	if checkPolicy {
		for _, t := range unique {
			raw, ok, err := s.store.Get(ctx, tokenstore.PolicyKey(t))
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
			}
			if !ok {
				continue
			}
			meta, err := tokenstore.DecodePolicyMeta(raw)
			if err != nil {
				s.logger.Warn("Ignoring malformed policy metadata", zap.String("token", t))
				continue
			}
			if !meta.RestorationAllowed {
				return nil, &PolicyViolationError{Context: meta.Context, Token: t}
			}
		}
	}

	result := &RestoreResult{
		RestoredText:  text,
		TokensMissing: []string{},
		Warnings:      []string{},
	}

	for _, t := range unique {
		original, ok, err := s.store.Get(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
		if !ok {
			result.TokensMissing = append(result.TokensMissing, t)
			result.Warnings = append(result.Warnings, "Token "+t+" expired or not found")
			continue
		}
		result.RestoredText = strings.ReplaceAll(result.RestoredText, t, original)
		result.TokensFound++
	}

	s.logger.Debug("Restore complete",
		zap.Int("tokens_found", result.TokensFound),
		zap.Int("tokens_missing", len(result.TokensMissing)),
		zap.Bool("check_policy", checkPolicy))

	return result, nil
}
