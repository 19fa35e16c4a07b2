package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/audit"
	"github.com/raaihank/redact-sentinel/internal/auditlog"
	"github.com/raaihank/redact-sentinel/internal/metrics"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/redaction"
	"github.com/raaihank/redact-sentinel/internal/security"
	"github.com/raaihank/redact-sentinel/internal/tokenstore"
	"github.com/raaihank/redact-sentinel/internal/websocket"
)

// handleRedact tokenizes PII in the request text
func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req RedactRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusUnprocessableEntity, "Request body must be JSON with a text field")
		return
	}

	var applied *policy.RedactionPolicy
	if s.config.Policy.Enabled {
		p := s.deps.Engine.Resolve(s.config.Policy.DefaultContext, req.Policy, s.config.Policy.AllowOverride)
		applied = &p
	}

	result, err := s.deps.Redactor.RedactAndStore(r.Context(), *req.Text, applied)
	if err != nil {
		if errors.Is(err, redaction.ErrStorageUnavailable) {
			log.Error("Redaction failed, token store unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Token store unavailable")
			return
		}
		log.Error("Redaction failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Redaction failed")
		return
	}

	metrics.TotalRedactions.Inc()
	for _, score := range result.Scores {
		metrics.ModelConfidenceScores.Observe(score)
	}
	contextLabel := s.contextLabel(applied)
	entityTypes := make(map[string]int, len(result.Entities))
	for _, e := range result.Entities {
		metrics.EntitiesRedacted.WithLabelValues(e.Type, contextLabel).Inc()
		entityTypes[e.Type]++
	}

	resp := RedactResponse{
		RedactedText:     result.RedactedText,
		ConfidenceScores: result.Scores,
		EntitiesFound:    result.Entities,
		AuditStatus:      "skipped",
	}
	if applied != nil {
		resp.PolicyApplied = &PolicyApplied{
			Context:            applied.Context,
			RestorationAllowed: applied.RestorationAllowed,
			EntitiesFiltered:   len(applied.EnabledEntities),
			Description:        applied.Description,
		}
	}

	if s.config.Audit.Enabled && s.deps.Audit != nil {
		if s.deps.Audit.Enqueue(audit.Job{
			RequestID:    requestID,
			RedactedText: result.RedactedText,
			Tokens:       result.CreatedTokens,
		}) {
			resp.AuditStatus = "queued"
		}
	}

	s.deps.Hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRedaction,
		RequestID: requestID,
		Data: websocket.RedactionEvent{
			EntitiesFound: len(result.Entities),
			EntityTypes:   entityTypes,
			PolicyContext: contextLabel,
			AuditQueued:   resp.AuditStatus == "queued",
			ProcessingMS:  float64(time.Since(start).Microseconds()) / 1000,
		},
	})

	log.Info("Redaction completed",
		zap.Int("entities", len(result.Entities)),
		zap.String("policy_context", contextLabel),
		zap.String("audit_status", resp.AuditStatus))

	writeJSON(w, http.StatusOK, resp)
}

// contextLabel bounds the policy context used in metric labels and events.
// Request overrides may name any context, so only registered names pass
// through.
func (s *Server) contextLabel(applied *policy.RedactionPolicy) string {
	if applied == nil {
		return "none"
	}
	if _, err := s.deps.Engine.Load(applied.Context); err != nil {
		return "custom"
	}
	return applied.Context
}

// handleRestore substitutes originals for tokens and records the attempt
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	var req RestoreRequest
	if err := decodeJSON(r, &req); err != nil || req.RedactedText == nil {
		writeError(w, http.StatusUnprocessableEntity, "Request body must be JSON with a redacted_text field")
		return
	}
	text := *req.RedactedText

	entry := &auditlog.RestorationEntry{
		RequestID:    requestID,
		RedactedText: text,
		TokenCount:   len(tokenstore.FindTokens(text)),
	}
	if key := getAPIKey(r.Context()); key != nil {
		entry.APIKeyID = key.ID
		entry.ServiceName = key.ServiceName
	}
	if ip := security.ClientIP(r); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := r.UserAgent(); ua != "" {
		entry.UserAgent = &ua
	}

	result, err := s.deps.Redactor.Restore(r.Context(), text, true)
	if err != nil {
		var pv *redaction.PolicyViolationError
		switch {
		case errors.As(err, &pv):
			msg := "Policy violation: " + pv.Error()
			entry.ErrorMessage = &msg
			s.logRestoration(r, entry)
			s.publishRestoration(requestID, entry.ServiceName, 0, 0, metrics.OutcomeForbidden)
			log.Warn("Restoration blocked by policy", zap.String("policy_context", pv.Context))
			writeError(w, http.StatusForbidden, "Restoration forbidden: "+pv.Error())
		case errors.Is(err, redaction.ErrStorageUnavailable):
			msg := err.Error()
			entry.ErrorMessage = &msg
			s.logRestoration(r, entry)
			s.publishRestoration(requestID, entry.ServiceName, 0, 0, metrics.OutcomeError)
			log.Error("Restoration failed, token store unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Restoration failed: token store unavailable")
		default:
			msg := err.Error()
			entry.ErrorMessage = &msg
			s.logRestoration(r, entry)
			s.publishRestoration(requestID, entry.ServiceName, 0, 0, metrics.OutcomeError)
			log.Error("Restoration failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Restoration failed")
		}
		return
	}

	entry.Success = true
	entry.RestoredText = &result.RestoredText
	logged := s.logRestoration(r, entry)
	s.publishRestoration(requestID, entry.ServiceName, result.TokensFound, len(result.TokensMissing), metrics.OutcomeSuccess)

	log.Info("Restoration completed",
		zap.Int("tokens_restored", result.TokensFound),
		zap.Int("tokens_missing", len(result.TokensMissing)),
		zap.String("service_name", entry.ServiceName))

	writeJSON(w, http.StatusOK, RestoreResponse{
		RequestID:      requestID,
		OriginalText:   result.RestoredText,
		TokensRestored: result.TokensFound,
		TokensMissing:  len(result.TokensMissing),
		Warnings:       result.Warnings,
		AuditLogged:    logged,
	})
}

// logRestoration writes the audit row. A failure is logged, not returned.
func (s *Server) logRestoration(r *http.Request, entry *auditlog.RestorationEntry) bool {
	if s.deps.Keys == nil {
		return false
	}
	if err := s.deps.Keys.LogRestoration(r.Context(), entry); err != nil {
		s.logger.WithRequestID(entry.RequestID).Error("Failed to write restoration audit log", zap.Error(err))
		return false
	}
	return true
}

func (s *Server) publishRestoration(requestID, service string, restored, missing int, outcome string) {
	metrics.Restorations.WithLabelValues(outcome).Inc()
	s.deps.Hub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeRestoration,
		RequestID: requestID,
		Data: websocket.RestorationEvent{
			ServiceName:    service,
			TokensRestored: restored,
			TokensMissing:  missing,
			Outcome:        outcome,
		},
	})
}

// handleListPolicies lists the registered policies
func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PoliciesResponse{
		AvailableContexts: s.deps.Engine.AvailableContexts(),
		DefaultContext:    s.config.Policy.DefaultContext,
		Policies:          s.deps.Engine.Policies(),
	})
}

// handleRegisterPolicy adds or replaces a named policy at runtime
func (s *Server) handleRegisterPolicy(w http.ResponseWriter, r *http.Request) {
	var p policy.RedactionPolicy
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "Request body must be a policy object")
		return
	}
	if p.DisabledEntities == nil {
		p.DisabledEntities = []string{}
	}
	if err := s.deps.Engine.Register(p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("Policy registered", zap.String("policy_context", p.Context))
	writeJSON(w, http.StatusCreated, p)
}

// handleSuggestPolicy recommends a policy context for text
func (s *Server) handleSuggestPolicy(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == nil {
		writeError(w, http.StatusUnprocessableEntity, "Request body must be JSON with a text field")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Recommender.Suggest(r.Context(), *req.Text))
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
