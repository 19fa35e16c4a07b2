package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("successful response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var req generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "phi3", req.Model)
			assert.Equal(t, "check this", req.Prompt)
			assert.False(t, req.Stream)
			assert.Equal(t, "json", req.Format)

			_ = json.NewEncoder(w).Encode(generateResponse{Response: `{"leaked": false}`})
		}))
		defer server.Close()

		client := NewClient(Config{URL: server.URL, Model: "phi3"})
		out, err := client.Generate(ctx, "check this")
		require.NoError(t, err)
		assert.Equal(t, `{"leaked": false}`, out)
	})

	t.Run("full endpoint url is accepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/generate", r.URL.Path)
			_ = json.NewEncoder(w).Encode(generateResponse{Response: "ok"})
		}))
		defer server.Close()

		client := NewClient(Config{URL: server.URL + "/api/generate", Model: "phi3"})
		out, err := client.Generate(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	})

	t.Run("non-200 returns status error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("loading model"))
		}))
		defer server.Close()

		client := NewClient(Config{URL: server.URL, Model: "phi3"})
		_, err := client.Generate(ctx, "p")
		require.Error(t, err)

		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
		assert.Equal(t, "HTTP 503", err.Error())
		assert.Equal(t, "loading model", se.Body)
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer server.Close()

		client := NewClient(Config{URL: server.URL, Model: "phi3", Timeout: 50 * time.Millisecond})
		_, err := client.Generate(ctx, "p")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("invalid body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := NewClient(Config{URL: server.URL}).Generate(ctx, "p")
		assert.Error(t, err)
	})
}

func TestHealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models":[]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	assert.NoError(t, NewClient(Config{URL: server.URL}).Healthy(context.Background()))

	server.Close()
	assert.Error(t, NewClient(Config{URL: server.URL}).Healthy(context.Background()))
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{})
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, "http://localhost:11434", c.baseURL)
}
