package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyColumns = []string{
	"id", "key_hash", "service_name", "description", "created_at", "revoked",
	"revoked_at", "last_used_at", "usage_count",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStoreFromDB(sqlx.NewDb(db, "postgres"), nil), mock
}

func TestGenerateAPIKey(t *testing.T) {
	raw, hash, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(raw, "sk_"))
	assert.Len(t, raw, 3+64)
	assert.Len(t, hash, 64)
	assert.Equal(t, HashAPIKey(raw), hash)

	other, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, raw, other)
}

func TestMigrate(t *testing.T) {
	store, mock := newMockStore(t)
	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS api_keys").WillReturnError(errors.New("permission denied"))

	err := store.Migrate(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}

func TestCreateAPIKey(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_keys")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "billing", "nightly export", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.CreateAPIKey(context.Background(), "billing", "nightly export")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(created.RawKey, "sk_"))
	assert.Equal(t, HashAPIKey(created.RawKey), created.Key.KeyHash)
	assert.Equal(t, "billing", created.Key.ServiceName)
	require.NotNil(t, created.Key.Description)
	assert.NotEmpty(t, created.Key.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAPIKeys(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE revoked = FALSE ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow("k1", "h1", "billing", nil, now, false, nil, nil, int64(0)).
			AddRow("k2", "h2", "support", "desc", now, false, nil, now, int64(7)))

	keys, err := store.ListAPIKeys(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Nil(t, keys[0].Description)
	assert.Equal(t, int64(7), keys[1].UsageCount)
	require.NotNil(t, keys[1].LastUsedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows(keyColumns))
	keys, err = store.ListAPIKeys(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAPIKey(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET revoked = TRUE")).
		WithArgs("k1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.RevokeAPIKey(context.Background(), "k1"))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET revoked = TRUE")).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, store.RevokeAPIKey(context.Background(), "missing"), ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateAPIKey(t *testing.T) {
	raw := "sk_" + strings.Repeat("ab", 32)
	now := time.Now().UTC()

	t.Run("valid key bumps usage", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE key_hash = $1")).
			WithArgs(HashAPIKey(raw)).
			WillReturnRows(sqlmock.NewRows(keyColumns).
				AddRow("k1", HashAPIKey(raw), "billing", nil, now, false, nil, nil, int64(2)))
		mock.ExpectExec(regexp.QuoteMeta("UPDATE api_keys SET usage_count = usage_count + 1")).
			WithArgs("k1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		key, err := store.ValidateAPIKey(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, "billing", key.ServiceName)
		assert.Equal(t, int64(3), key.UsageCount)
		assert.NotNil(t, key.LastUsedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown key", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE key_hash = $1")).
			WillReturnError(sql.ErrNoRows)

		_, err := store.ValidateAPIKey(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("malformed key skips lookup", func(t *testing.T) {
		store, mock := newMockStore(t)
		_, err := store.ValidateAPIKey(context.Background(), "not-a-key")
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("revoked key", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM api_keys WHERE key_hash = $1")).
			WillReturnRows(sqlmock.NewRows(keyColumns).
				AddRow("k1", HashAPIKey(raw), "billing", nil, now, true, now, nil, int64(2)))

		_, err := store.ValidateAPIKey(context.Background(), raw)
		assert.ErrorIs(t, err, ErrRevoked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLogRestoration(t *testing.T) {
	store, mock := newMockStore(t)
	restored := "Email john@example.com"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO restoration_audit_log")).
		WithArgs(sqlmock.AnyArg(), "req-1", "k1", "billing", sqlmock.AnyArg(),
			"Email [REDACTED_aaaa]", restored, 1, true, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &RestorationEntry{
		RequestID:    "req-1",
		APIKeyID:     "k1",
		ServiceName:  "billing",
		RedactedText: "Email [REDACTED_aaaa]",
		RestoredText: &restored,
		TokenCount:   1,
		Success:      true,
	}
	require.NoError(t, store.LogRestoration(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAuditLogs(t *testing.T) {
	columns := []string{
		"id", "request_id", "api_key_id", "service_name", "timestamp", "redacted_text",
		"restored_text", "token_count", "success", "error_message", "ip_address", "user_agent",
	}
	now := time.Now().UTC()

	t.Run("service filter and limit cap", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE service_name = $1")).
			WithArgs("billing", MaxLogLimit, 0).
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("l1", "req-1", "k1", "billing", now, "[REDACTED_aaaa]", nil, 1, false,
					"Policy violation", "10.0.0.1", "curl")).
			RowsWillBeClosed()

		logs, err := store.ListAuditLogs(context.Background(), LogFilter{ServiceName: "billing", Limit: 5000, Offset: -3})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.False(t, logs[0].Success)
		require.NotNil(t, logs[0].ErrorMessage)
		assert.Equal(t, "Policy violation", *logs[0].ErrorMessage)
		assert.Nil(t, logs[0].RestoredText)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("LIMIT $1 OFFSET $2")).
			WithArgs(DefaultLogLimit, 20).
			WillReturnRows(sqlmock.NewRows(columns))

		logs, err := store.ListAuditLogs(context.Background(), LogFilter{Offset: 20})
		require.NoError(t, err)
		assert.Empty(t, logs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMaskDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://sentinel:***@db:5432/sentinel", maskDatabaseURL("postgres://sentinel:secret@db:5432/sentinel"))
	assert.Equal(t, "postgres://db:5432/sentinel", maskDatabaseURL("postgres://db:5432/sentinel"))
}
