package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore keeps token mappings in Redis
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(config *Config, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	opts.MinIdleConns = config.MinIdleConns
	if config.DialTimeout > 0 {
		opts.DialTimeout = config.DialTimeout
	}
	if config.ReadTimeout > 0 {
		opts.ReadTimeout = config.ReadTimeout
	}
	if config.WriteTimeout > 0 {
		opts.WriteTimeout = config.WriteTimeout
	}

	store := NewRedisStoreFromClient(redis.NewClient(opts), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Token store initialized successfully",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("pool_size", opts.PoolSize))

	return store, nil
}

// NewRedisStoreFromClient wraps an existing client without pinging it
func NewRedisStoreFromClient(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{client: client, logger: logger}
}

// Get reads a key. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get: %w", ErrUnavailable, err)
	}
	return val, true, nil
}

// PutMapping writes the token value and its policy metadata in one
// MULTI/EXEC transaction so a reader never sees one without the other.
func (s *RedisStore) PutMapping(ctx context.Context, m Mapping, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, m.Token, m.Original, ttl)
		if m.Meta != nil {
			pipe.Set(ctx, PolicyKey(m.Token), EncodePolicyMeta(*m.Meta), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: put mapping: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes keys and returns how many existed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: delete: %w", ErrUnavailable, err)
	}
	return n, nil
}

// TTL returns the remaining lifetime of a key. Negative values follow Redis
// semantics for missing keys and keys without expiry.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: ttl: %w", ErrUnavailable, err)
	}
	return d, nil
}

// Ping tests the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// GetStats returns key count and memory usage
func (s *RedisStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	keys, err := s.client.DBSize(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: dbsize: %w", ErrUnavailable, err)
	}
	stats.TotalKeys = keys

	// INFO is optional; some deployments disable it.
	if info, err := s.client.Info(ctx, "memory").Result(); err == nil {
		for _, line := range strings.Split(info, "\r\n") {
			if memStr, ok := strings.CutPrefix(line, "used_memory:"); ok {
				if mem, err := strconv.ParseInt(memStr, 10, 64); err == nil {
					stats.MemoryUsage = mem
				}
			}
		}
	}

	return stats, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// maskRedisURL masks the password in a Redis URL for logging
func maskRedisURL(url string) string {
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
