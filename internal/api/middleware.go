package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/auditlog"
	"github.com/raaihank/redact-sentinel/internal/metrics"
)

type contextKey int

const (
	requestIDKey contextKey = iota
	apiKeyKey
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware assigns every request a UUID
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs the request line and status, never the body
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Inc()

		s.logger.WithRequestID(getRequestID(r.Context())).
			LogAccess(r.Method, r.URL.Path, r.Header, rw.statusCode, time.Since(start))
	})
}

// bodyLimitMiddleware caps request bodies
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limit := s.config.Server.MaxBodyBytes; limit > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIKey validates the service API key when key auth is enabled
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.Auth.EnableAPIKeys {
			next.ServeHTTP(w, r)
			return
		}
		if s.deps.Keys == nil {
			writeError(w, http.StatusServiceUnavailable, "API key store unavailable")
			return
		}

		raw := r.Header.Get(s.config.Auth.APIKeyHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "Missing API key")
			return
		}

		key, err := s.deps.Keys.ValidateAPIKey(r.Context(), raw)
		switch {
		case errors.Is(err, auditlog.ErrInvalidKey):
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		case errors.Is(err, auditlog.ErrRevoked):
			writeError(w, http.StatusUnauthorized, "API key has been revoked")
			return
		case err != nil:
			s.logger.Error("API key validation failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "API key store unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin checks the admin token header
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := s.config.Auth.AdminToken
		if want == "" {
			writeError(w, http.StatusForbidden, "Admin API disabled")
			return
		}
		got := r.Header.Get(s.config.Auth.AdminHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			writeError(w, http.StatusUnauthorized, "Invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Hijack lets the websocket upgrader take over the connection
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

// getRequestID extracts request ID from context
func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return "unknown"
}

func getAPIKey(ctx context.Context) *auditlog.APIKey {
	key, _ := ctx.Value(apiKeyKey).(*auditlog.APIKey)
	return key
}
