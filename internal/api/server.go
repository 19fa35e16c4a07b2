package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/security"
	"github.com/raaihank/redact-sentinel/internal/web"
	"github.com/raaihank/redact-sentinel/internal/websocket"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Dependencies are the collaborators behind the HTTP surface. Keys, Audit,
// LLM, Hub and Limiter may be nil.
type Dependencies struct {
	Redactor    Redactor
	Engine      *policy.Engine
	Recommender Recommender
	Audit       AuditQueue
	Keys        KeyStore
	Tokens      Pinger
	LLM         LLMProbe
	Hub         *websocket.Hub
	Limiter     *security.RateLimiter
}

// Server represents the redaction API server
type Server struct {
	config *config.Config
	logger *logger.Logger
	deps   Dependencies
	router *mux.Router
	server *http.Server
}

// New creates a new API server instance
func New(cfg *config.Config, log *logger.Logger, deps Dependencies) *Server {
	s := &Server{
		config: cfg,
		logger: log.WithComponent("api"),
		deps:   deps,
		router: mux.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	// Probes and exposition skip the rate limiter
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	s.router.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	if s.config.WebSocket.Enabled && s.deps.Hub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.deps.Hub.HandleWebSocket).Methods(http.MethodGet)
		s.router.Handle("/dashboard", web.NewDashboard(s.config.WebSocket.Path)).Methods(http.MethodGet)
	}

	api := s.router.NewRoute().Subrouter()
	if s.deps.Limiter != nil {
		api.Use(s.deps.Limiter.Middleware)
	}
	api.Use(s.bodyLimitMiddleware)

	api.HandleFunc("/redact", s.handleRedact).Methods(http.MethodPost)
	api.Handle("/restore", s.requireAPIKey(http.HandlerFunc(s.handleRestore))).Methods(http.MethodPost)
	api.HandleFunc("/policies", s.handleListPolicies).Methods(http.MethodGet)
	api.Handle("/policies", s.requireAdmin(http.HandlerFunc(s.handleRegisterPolicy))).Methods(http.MethodPost)
	api.HandleFunc("/policies/suggest", s.handleSuggestPolicy).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/api-keys", s.handleCreateAPIKey).Methods(http.MethodPost)
	admin.HandleFunc("/api-keys", s.handleListAPIKeys).Methods(http.MethodGet)
	admin.HandleFunc("/api-keys/{id}", s.handleRevokeAPIKey).Methods(http.MethodDelete)
	admin.HandleFunc("/audit-logs", s.handleListAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting redaction API server",
		zap.Int("port", s.config.Server.Port),
		zap.Bool("policy_engine", s.config.Policy.Enabled),
		zap.String("default_context", s.config.Policy.DefaultContext),
		zap.Bool("audit", s.config.Audit.Enabled),
		zap.Bool("api_keys", s.config.Auth.EnableAPIKeys),
	)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping redaction API server")
	return s.server.Shutdown(ctx)
}
