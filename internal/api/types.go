package api

import (
	"context"
	"time"

	"github.com/raaihank/redact-sentinel/internal/audit"
	"github.com/raaihank/redact-sentinel/internal/auditlog"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/recommend"
	"github.com/raaihank/redact-sentinel/internal/redaction"
	"github.com/raaihank/redact-sentinel/internal/tokenstore"
	"github.com/raaihank/redact-sentinel/internal/websocket"
)

// Redactor is the redaction pipeline used by the handlers.
type Redactor interface {
	RedactAndStore(ctx context.Context, text string, p *policy.RedactionPolicy) (*redaction.Result, error)
	Restore(ctx context.Context, text string, checkPolicy bool) (*redaction.RestoreResult, error)
}

// AuditQueue accepts background audit jobs.
type AuditQueue interface {
	Enqueue(job audit.Job) bool
}

// Recommender suggests a policy context for text.
type Recommender interface {
	Suggest(ctx context.Context, text string) recommend.Recommendation
}

// KeyStore manages API keys and the restoration audit trail.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, serviceName, description string) (*auditlog.CreatedKey, error)
	ListAPIKeys(ctx context.Context, includeRevoked bool) ([]auditlog.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
	ValidateAPIKey(ctx context.Context, raw string) (*auditlog.APIKey, error)
	LogRestoration(ctx context.Context, entry *auditlog.RestorationEntry) error
	ListAuditLogs(ctx context.Context, filter auditlog.LogFilter) ([]auditlog.RestorationEntry, error)
	Ping(ctx context.Context) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenStatter reports token store occupancy.
type TokenStatter interface {
	GetStats(ctx context.Context) (*tokenstore.Stats, error)
}

// LLMProbe reports whether the model server is reachable.
type LLMProbe interface {
	Healthy(ctx context.Context) error
}

// RedactRequest is the body of POST /redact.
type RedactRequest struct {
	Text   *string          `json:"text"`
	Policy *policy.Override `json:"policy,omitempty"`
}

// PolicyApplied describes the policy used for a redaction.
type PolicyApplied struct {
	Context            string `json:"context"`
	RestorationAllowed bool   `json:"restoration_allowed"`
	EntitiesFiltered   int    `json:"entities_filtered"`
	Description        string `json:"description,omitempty"`
}

// RedactResponse is the body returned by POST /redact.
type RedactResponse struct {
	RedactedText     string             `json:"redacted_text"`
	ConfidenceScores []float64          `json:"confidence_scores"`
	EntitiesFound    []redaction.Entity `json:"entities_found"`
	AuditStatus      string             `json:"audit_status"`
	PolicyApplied    *PolicyApplied     `json:"policy_applied"`
}

// RestoreRequest is the body of POST /restore.
type RestoreRequest struct {
	RedactedText *string `json:"redacted_text"`
}

// RestoreResponse is the body returned by POST /restore.
type RestoreResponse struct {
	RequestID      string   `json:"request_id"`
	OriginalText   string   `json:"original_text"`
	TokensRestored int      `json:"tokens_restored"`
	TokensMissing  int      `json:"tokens_missing"`
	Warnings       []string `json:"warnings"`
	AuditLogged    bool     `json:"audit_logged"`
}

// PoliciesResponse is the body returned by GET /policies.
type PoliciesResponse struct {
	AvailableContexts []string                 `json:"available_contexts"`
	DefaultContext    string                   `json:"default_context"`
	Policies          []policy.RedactionPolicy `json:"policies"`
}

// SuggestRequest is the body of POST /policies/suggest.
type SuggestRequest struct {
	Text *string `json:"text"`
}

// CreateKeyRequest is the body of POST /admin/api-keys.
type CreateKeyRequest struct {
	ServiceName string `json:"service_name"`
	Description string `json:"description"`
}

// CreateKeyResponse carries the raw key, shown once.
type CreateKeyResponse struct {
	APIKey      string    `json:"api_key"`
	KeyID       string    `json:"key_id"`
	ServiceName string    `json:"service_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// KeyListResponse is the body returned by GET /admin/api-keys.
type KeyListResponse struct {
	Keys  []auditlog.APIKey `json:"keys"`
	Total int               `json:"total"`
}

// AuditLogResponse is the body returned by GET /admin/audit-logs.
type AuditLogResponse struct {
	Logs   []auditlog.RestorationEntry `json:"logs"`
	Total  int                         `json:"total"`
	Limit  int                         `json:"limit"`
	Offset int                         `json:"offset"`
}

// HealthCheck is one dependency's status.
type HealthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Note   string `json:"note,omitempty"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Checks    map[string]HealthCheck `json:"checks"`
}

// StatsResponse is the body returned by GET /admin/stats.
type StatsResponse struct {
	TokenStore *tokenstore.Stats   `json:"token_store,omitempty"`
	WebSocket  *websocket.HubStats `json:"websocket,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
