package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/api"
	"github.com/raaihank/redact-sentinel/internal/audit"
	"github.com/raaihank/redact-sentinel/internal/auditlog"
	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/llm"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/policy"
	"github.com/raaihank/redact-sentinel/internal/privacy"
	"github.com/raaihank/redact-sentinel/internal/recommend"
	"github.com/raaihank/redact-sentinel/internal/redaction"
	"github.com/raaihank/redact-sentinel/internal/security"
	"github.com/raaihank/redact-sentinel/internal/tokenstore"
	"github.com/raaihank/redact-sentinel/internal/websocket"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		healthURL   = flag.String("health-url", "http://localhost:8000/health/live", "URL probed by -health-check")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Redact-Sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck(*healthURL)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting Redact-Sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tokens, err := tokenstore.NewRedisStore(&tokenstore.Config{
		RedisURL:     cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize token store", zap.Error(err))
	}
	defer tokens.Close()

	var keys *auditlog.Store
	if cfg.Postgres.Enabled {
		keys, err = auditlog.NewStore(&auditlog.Config{
			DatabaseURL:     cfg.Postgres.DatabaseURL,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
		}, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize audit database", zap.Error(err))
		}
		defer keys.Close()

		if cfg.Postgres.AutoMigrate {
			migrateCtx, migrateCancel := context.WithTimeout(ctx, 30*time.Second)
			err := keys.Migrate(migrateCtx)
			migrateCancel()
			if err != nil {
				log.Fatal("Failed to migrate audit database", zap.Error(err))
			}
		}
	} else {
		log.Warn("Audit database disabled; API keys and restoration audit trail unavailable")
	}

	detector, err := privacy.New(cfg.Detector, log)
	if err != nil {
		log.Fatal("Failed to initialize detector", zap.Error(err))
	}

	engine := policy.NewEngine(policy.FromConfig(cfg.Policy)...)
	redactor := redaction.NewService(detector, tokens, engine, redaction.Config{TokenTTL: cfg.Redis.TokenTTL}, log)

	model := llm.NewClient(llm.Config{
		URL:     cfg.LLM.URL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(&websocket.HubConfig{
			BroadcastRedactions:   cfg.WebSocket.BroadcastRedact,
			BroadcastAudit:        cfg.WebSocket.BroadcastAudit,
			BroadcastRestorations: cfg.WebSocket.BroadcastRestore,
			BroadcastConnections:  true,
			Username:              cfg.WebSocket.Username,
			Password:              cfg.WebSocket.Password,
			MaxConnections:        cfg.WebSocket.MaxConnections,
			AllowedOrigins:        cfg.WebSocket.AllowedOrigins,
		}, log.Logger)
		go hub.Run(ctx)
	}

	deps := api.Dependencies{
		Redactor:    redactor,
		Engine:      engine,
		Recommender: recommend.NewService(model, log),
		Tokens:      tokens,
		LLM:         model,
		Hub:         hub,
	}
	if keys != nil {
		deps.Keys = keys
	}

	var coordinator *audit.Coordinator
	if cfg.Audit.Enabled {
		agent := audit.NewAgent(model, cfg.Audit.PromptVersion, cfg.Audit.FewShotExamples, log)
		coordinator = audit.NewCoordinator(agent, tokens, hub, audit.CoordinatorConfig{
			QueueSize:       cfg.Audit.QueueSize,
			Workers:         cfg.Audit.Workers,
			PurgeKeyTimeout: cfg.Redis.PurgeKeyTimeout,
		}, log)
		coordinator.Start(ctx)
		deps.Audit = coordinator
	}

	if cfg.Security.RateLimit.Enabled {
		limiter := security.NewRateLimiter(&cfg.Security)
		limiter.StartCleanupRoutine(ctx)
		deps.Limiter = limiter
	}

	if err := config.Watch(func(next *config.Config) {
		for _, p := range policy.FromConfig(next.Policy) {
			if err := engine.Register(p); err != nil {
				log.Warn("Skipping invalid policy from reloaded config",
					zap.String("policy_context", p.Context), zap.Error(err))
			}
		}
		log.Info("Policies reloaded", zap.Strings("contexts", engine.AvailableContexts()))
	}, func(err error) {
		log.Warn("Ignoring invalid configuration change", zap.Error(err))
	}); err != nil {
		log.Debug("Configuration hot reload disabled", zap.Error(err))
	}

	server := api.New(cfg, log, deps)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
	}

	// Drain queued audits before the token store closes
	if coordinator != nil {
		coordinator.Stop()
	}
	cancel()

	log.Info("Server shutdown complete")
}

// performHealthCheck performs a health check against the running server
func performHealthCheck(url string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
