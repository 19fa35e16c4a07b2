package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		l, err := New(Config{Level: "info", Format: "json"})
		require.NoError(t, err)
		assert.NotNil(t, l.Logger)
	})

	t.Run("bad level", func(t *testing.T) {
		_, err := New(Config{Level: "loud", Format: "json"})
		assert.Error(t, err)
	})

	t.Run("file sink", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "sentinel.log")
		l, err := New(Config{Level: "debug", Format: "console", File: &FileConfig{Enabled: true, Path: path}})
		require.NoError(t, err)
		l.Info("hello")
		assert.FileExists(t, path)
	})
}

func TestSanitizeHeaders(t *testing.T) {
	got := SanitizeHeaders(map[string][]string{
		"X-Api-Key":     {"sk_secret"},
		"Authorization": {"Bearer abc"},
		"X-Admin-Token": {"root"},
		"Content-Type":  {"application/json"},
		"Empty":         {},
	})

	assert.Equal(t, "[REDACTED]", got["X-Api-Key"])
	assert.Equal(t, "[REDACTED]", got["Authorization"])
	assert.Equal(t, "[REDACTED]", got["X-Admin-Token"])
	assert.Equal(t, "application/json", got["Content-Type"])
	_, ok := got["Empty"]
	assert.False(t, ok)
}
