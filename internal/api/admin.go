package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/auditlog"
)

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.requireKeyStore(w) {
		return
	}

	var req CreateKeyRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.ServiceName) == "" {
		writeError(w, http.StatusUnprocessableEntity, "service_name is required")
		return
	}

	created, err := s.deps.Keys.CreateAPIKey(r.Context(), req.ServiceName, req.Description)
	if err != nil {
		s.logger.Error("Failed to create API key", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Failed to create API key")
		return
	}

	writeJSON(w, http.StatusCreated, CreateKeyResponse{
		APIKey:      created.RawKey,
		KeyID:       created.Key.ID,
		ServiceName: created.Key.ServiceName,
		CreatedAt:   created.Key.CreatedAt,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	if !s.requireKeyStore(w) {
		return
	}

	includeRevoked, _ := strconv.ParseBool(r.URL.Query().Get("include_revoked"))
	keys, err := s.deps.Keys.ListAPIKeys(r.Context(), includeRevoked)
	if err != nil {
		s.logger.Error("Failed to list API keys", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Failed to list API keys")
		return
	}

	writeJSON(w, http.StatusOK, KeyListResponse{Keys: keys, Total: len(keys)})
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if !s.requireKeyStore(w) {
		return
	}

	id := mux.Vars(r)["id"]
	err := s.deps.Keys.RevokeAPIKey(r.Context(), id)
	switch {
	case errors.Is(err, auditlog.ErrNotFound):
		writeError(w, http.StatusNotFound, "API key not found")
		return
	case err != nil:
		s.logger.Error("Failed to revoke API key", zap.String("key_id", id), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Failed to revoke API key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("API key %s revoked", id)})
}

func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if !s.requireKeyStore(w) {
		return
	}

	q := r.URL.Query()
	filter := auditlog.LogFilter{ServiceName: q.Get("service_name"), Limit: auditlog.DefaultLogLimit}

	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 1 {
			writeError(w, http.StatusUnprocessableEntity, "limit must be a positive integer")
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			writeError(w, http.StatusUnprocessableEntity, "offset must be a non-negative integer")
			return
		}
	}

	maxRows := auditlog.MaxLogLimit
	if m := s.config.Auth.AuditLogMaxRows; m > 0 && m < maxRows {
		maxRows = m
	}
	filter.Limit = min(filter.Limit, maxRows)

	logs, err := s.deps.Keys.ListAuditLogs(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list audit logs", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Failed to list audit logs")
		return
	}

	writeJSON(w, http.StatusOK, AuditLogResponse{
		Logs:   logs,
		Total:  len(logs),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func (s *Server) requireKeyStore(w http.ResponseWriter) bool {
	if s.deps.Keys == nil {
		writeError(w, http.StatusServiceUnavailable, "Audit database disabled")
		return false
	}
	return true
}
