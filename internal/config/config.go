package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	mu     sync.Mutex
	active *viper.Viper
)

// Keys that are commonly supplied only through the environment.
var envKeys = []string{
	"server.port",
	"redis.url",
	"redis.token_ttl",
	"postgres.enabled",
	"postgres.database_url",
	"llm.url",
	"llm.model",
	"llm.timeout",
	"policy.default_context",
	"policy.allow_override",
	"audit.enabled",
	"audit.prompt_version",
	"auth.enable_api_keys",
	"auth.admin_token",
	"logging.level",
	"logging.format",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/redact-sentinel/")
	v.AddConfigPath("$HOME/.redact-sentinel/")

	// Environment variable overrides
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	active = v
	mu.Unlock()

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}

	if config.Redis.TokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl: %s", config.Redis.TokenTTL)
	}

	if config.LLM.Timeout <= 0 {
		return fmt.Errorf("invalid llm timeout: %s", config.LLM.Timeout)
	}

	if config.Policy.DefaultContext == "" {
		return fmt.Errorf("policy default_context is required")
	}

	for name, p := range map[string]DomainPolicyConfig{
		"healthcare": config.Policy.Healthcare,
		"finance":    config.Policy.Finance,
	} {
		if p.MinConfidence < 0 || p.MinConfidence > 1 {
			return fmt.Errorf("invalid %s min_confidence: %v (must be within 0..1)", name, p.MinConfidence)
		}
	}

	for i, c := range config.Policy.Custom {
		if strings.TrimSpace(c.Context) == "" {
			return fmt.Errorf("policy custom[%d]: context is required", i)
		}
		if c.MinConfidence < 0 || c.MinConfidence > 1 {
			return fmt.Errorf("policy custom[%d] %s: invalid min_confidence: %v (must be within 0..1)", i, c.Context, c.MinConfidence)
		}
	}

	if config.Audit.QueueSize <= 0 || config.Audit.Workers <= 0 {
		return fmt.Errorf("audit queue_size and workers must be positive")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// revisions are reported through onError and otherwise ignored.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := active
	mu.Unlock()

	if v == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}
