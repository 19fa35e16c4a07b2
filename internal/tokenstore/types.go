package tokenstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every transport failure talking to the store.
var ErrUnavailable = errors.New("token store unavailable")

// Mapping is one token written by a redaction call. Meta is the optional
// policy metadata stored under PolicyKey(Token).
type Mapping struct {
	Token    string
	Original string
	Meta     *PolicyMeta
}

// PolicyMeta records the policy a token was minted under.
type PolicyMeta struct {
	Context            string
	RestorationAllowed bool
}

// Stats reports store occupancy.
type Stats struct {
	TotalKeys   int64 `json:"total_keys"`
	MemoryUsage int64 `json:"memory_usage_bytes"`
}

// Store is the key-value surface used by the redaction and audit paths. A
// missing key is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	PutMapping(ctx context.Context, m Mapping, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
	Close() error
}

// Config contains Redis connection settings
type Config struct {
	RedisURL     string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}
