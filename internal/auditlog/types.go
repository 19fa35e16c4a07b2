package auditlog

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an API key id does not exist.
	ErrNotFound = errors.New("api key not found")
	// ErrInvalidKey is returned when a raw key matches no stored hash.
	ErrInvalidKey = errors.New("invalid API key")
	// ErrRevoked is returned when a key exists but has been revoked.
	ErrRevoked = errors.New("API key has been revoked")
)

const (
	// DefaultLogLimit is used when a filter leaves Limit unset.
	DefaultLogLimit = 100
	// MaxLogLimit caps a single audit log page.
	MaxLogLimit = 1000
)

// APIKey is a stored service credential. Only the hash of the raw key is
// kept.
type APIKey struct {
	ID          string     `db:"id" json:"key_id"`
	KeyHash     string     `db:"key_hash" json:"-"`
	ServiceName string     `db:"service_name" json:"service_name"`
	Description *string    `db:"description" json:"description"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	Revoked     bool       `db:"revoked" json:"revoked"`
	RevokedAt   *time.Time `db:"revoked_at" json:"revoked_at"`
	LastUsedAt  *time.Time `db:"last_used_at" json:"last_used_at"`
	UsageCount  int64      `db:"usage_count" json:"usage_count"`
}

// CreatedKey carries the raw key, which is shown exactly once.
type CreatedKey struct {
	RawKey string
	Key    APIKey
}

// RestorationEntry is one row of the restoration audit trail.
type RestorationEntry struct {
	ID           string    `db:"id" json:"id"`
	RequestID    string    `db:"request_id" json:"request_id"`
	APIKeyID     string    `db:"api_key_id" json:"api_key_id"`
	ServiceName  string    `db:"service_name" json:"service_name"`
	Timestamp    time.Time `db:"timestamp" json:"timestamp"`
	RedactedText string    `db:"redacted_text" json:"redacted_text"`
	RestoredText *string   `db:"restored_text" json:"restored_text"`
	TokenCount   int       `db:"token_count" json:"token_count"`
	Success      bool      `db:"success" json:"success"`
	ErrorMessage *string   `db:"error_message" json:"error_message"`
	IPAddress    *string   `db:"ip_address" json:"ip_address"`
	UserAgent    *string   `db:"user_agent" json:"-"`
}

// LogFilter selects a page of the audit trail.
type LogFilter struct {
	ServiceName string
	Limit       int
	Offset      int
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}
