package auditlog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const apiKeyPrefix = "sk_"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS api_keys (
		id VARCHAR(36) PRIMARY KEY,
		key_hash VARCHAR(128) NOT NULL UNIQUE,
		service_name VARCHAR(255) NOT NULL,
		description TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		revoked BOOLEAN NOT NULL DEFAULT FALSE,
		revoked_at TIMESTAMPTZ,
		last_used_at TIMESTAMPTZ,
		usage_count BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS restoration_audit_log (
		id VARCHAR(36) PRIMARY KEY,
		request_id VARCHAR(36) NOT NULL,
		api_key_id VARCHAR(36) NOT NULL,
		service_name VARCHAR(255) NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		redacted_text TEXT NOT NULL,
		restored_text TEXT,
		token_count INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		error_message TEXT,
		ip_address VARCHAR(45),
		user_agent VARCHAR(512)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_restoration_audit_log_request_id ON restoration_audit_log (request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_restoration_audit_log_api_key_id ON restoration_audit_log (api_key_id)`,
	`CREATE INDEX IF NOT EXISTS idx_restoration_audit_log_timestamp ON restoration_audit_log (timestamp)`,
}

// Store persists API keys and the restoration audit trail in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and configures the pool
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	logger.Info("Audit store connected",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return NewStoreFromDB(db, logger), nil
}

// NewStoreFromDB wraps an existing connection.
func NewStoreFromDB(db *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Migrate creates the tables and indexes if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.logger.Info("Audit schema ready")
	return nil
}

// GenerateAPIKey returns a new raw key (sk_ + 64 hex chars) and its hash
func GenerateAPIKey() (raw, hash string, err error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", "", fmt.Errorf("failed to generate api key: %w", err)
	}
	raw = apiKeyPrefix + hex.EncodeToString(b[:])
	return raw, HashAPIKey(raw), nil
}

// HashAPIKey returns the hex SHA-256 of a raw key
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateAPIKey stores a new key for a service
func (s *Store) CreateAPIKey(ctx context.Context, serviceName, description string) (*CreatedKey, error) {
	raw, hash, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}

	key := APIKey{
		ID:          uuid.NewString(),
		KeyHash:     hash,
		ServiceName: serviceName,
		CreatedAt:   time.Now().UTC(),
	}
	if description != "" {
		key.Description = &description
	}

	query := `
		INSERT INTO api_keys (id, key_hash, service_name, description, created_at, revoked, usage_count)
		VALUES ($1, $2, $3, $4, $5, FALSE, 0)`

	if _, err := s.db.ExecContext(ctx, query, key.ID, key.KeyHash, key.ServiceName, key.Description, key.CreatedAt); err != nil {
		s.logger.Error("Failed to create API key", zap.String("service_name", serviceName), zap.Error(err))
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}

	s.logger.Info("API key created", zap.String("key_id", key.ID), zap.String("service_name", serviceName))
	return &CreatedKey{RawKey: raw, Key: key}, nil
}

// ListAPIKeys returns keys ordered by creation time
func (s *Store) ListAPIKeys(ctx context.Context, includeRevoked bool) ([]APIKey, error) {
	query := `
		SELECT id, key_hash, service_name, description, created_at, revoked,
			revoked_at, last_used_at, usage_count
		FROM api_keys`
	if !includeRevoked {
		query += " WHERE revoked = FALSE"
	}
	query += " ORDER BY created_at DESC"

	keys := []APIKey{}
	if err := s.db.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	return keys, nil
}

// RevokeAPIKey marks a key revoked
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked = TRUE, revoked_at = $2 WHERE id = $1`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Info("API key revoked", zap.String("key_id", id))
	return nil
}

// ValidateAPIKey looks up a raw key and records its use
func (s *Store) ValidateAPIKey(ctx context.Context, raw string) (*APIKey, error) {
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		return nil, ErrInvalidKey
	}

	var key APIKey
	err := s.db.GetContext(ctx, &key, `
		SELECT id, key_hash, service_name, description, created_at, revoked,
			revoked_at, last_used_at, usage_count
		FROM api_keys WHERE key_hash = $1`, HashAPIKey(raw))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if key.Revoked {
		return nil, ErrRevoked
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1`,
		key.ID, now); err != nil {
		s.logger.Warn("Failed to record API key usage", zap.String("key_id", key.ID), zap.Error(err))
	} else {
		key.UsageCount++
		key.LastUsedAt = &now
	}

	return &key, nil
}

// LogRestoration appends a row to the audit trail. ID and Timestamp are
// filled in when empty.
func (s *Store) LogRestoration(ctx context.Context, entry *RestorationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO restoration_audit_log (id, request_id, api_key_id, service_name, timestamp,
			redacted_text, restored_text, token_count, success, error_message, ip_address, user_agent)
		VALUES (:id, :request_id, :api_key_id, :service_name, :timestamp,
			:redacted_text, :restored_text, :token_count, :success, :error_message, :ip_address, :user_agent)`

	if _, err := s.db.NamedExecContext(ctx, query, entry); err != nil {
		s.logger.Error("Failed to write restoration audit log",
			zap.String("request_id", entry.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to log restoration: %w", err)
	}
	return nil
}

// ListAuditLogs returns the newest entries first
func (s *Store) ListAuditLogs(ctx context.Context, filter LogFilter) ([]RestorationEntry, error) {
	filter = normalizeFilter(filter)

	where := ""
	args := []interface{}{}
	argIndex := 1
	if filter.ServiceName != "" {
		where = fmt.Sprintf("WHERE service_name = $%d", argIndex)
		args = append(args, filter.ServiceName)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT id, request_id, api_key_id, service_name, timestamp, redacted_text,
			restored_text, token_count, success, error_message, ip_address, user_agent
		FROM restoration_audit_log
		%s
		ORDER BY timestamp DESC
		LIMIT $%d OFFSET $%d`, where, argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	entries := []RestorationEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return entries, nil
}

func normalizeFilter(f LogFilter) LogFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLogLimit
	}
	if f.Limit > MaxLogLimit {
		f.Limit = MaxLogLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks the password in a database URL for logging
func maskDatabaseURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	userPart := url[:at]
	scheme := strings.Index(userPart, "://")
	colon := strings.LastIndex(userPart, ":")
	if colon <= scheme+2 {
		return url
	}
	return userPart[:colon+1] + "***" + url[at:]
}
