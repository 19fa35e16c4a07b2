package security

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/raaihank/redact-sentinel/internal/config"
	"github.com/raaihank/redact-sentinel/internal/metrics"
)

// RateLimiter enforces a per-client token bucket
type RateLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	mu       sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg *config.SecurityConfig) *RateLimiter {
	rpm := cfg.RateLimit.RequestsPerMin
	burst := cfg.RateLimit.Burst
	if burst < 1 {
		burst = max(rpm, 1)
	}
	return &RateLimiter{
		enabled: cfg.RateLimit.Enabled && rpm > 0,
		limit:   rate.Limit(float64(rpm) / 60.0),
		burst:   burst,
		idleTTL: time.Hour,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks if a request from the given client is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.enabled {
		return true
	}

	b := r.getBucket(clientIP)
	b.mu.Lock()
	b.lastSeen = time.Now()
	b.mu.Unlock()
	return b.limiter.Allow()
}

// getBucket gets or creates a bucket for a client
func (r *RateLimiter) getBucket(clientIP string) *bucket {
	r.mu.RLock()
	b, exists := r.buckets[clientIP]
	r.mu.RUnlock()

	if exists {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists := r.buckets[clientIP]; exists {
		return b
	}

	b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst), lastSeen: time.Now()}
	r.buckets[clientIP] = b
	return b
}

// Clients returns the number of tracked clients
func (r *RateLimiter) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.buckets)
}

// CleanupOldBuckets removes buckets idle for longer than the TTL
func (r *RateLimiter) CleanupOldBuckets() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.idleTTL)
	for ip, b := range r.buckets {
		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, ip)
		}
		b.mu.Unlock()
	}
}

// StartCleanupRoutine prunes idle buckets until ctx is cancelled
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOldBuckets()
			}
		}
	}()
}

// Middleware rejects requests over the limit with 429
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow(ClientIP(req)) {
			metrics.RateLimited.Inc()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"detail":"Rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, req)
	})
}

// ClientIP extracts the client IP from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
