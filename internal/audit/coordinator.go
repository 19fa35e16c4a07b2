package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/redact-sentinel/internal/llm"
	"github.com/raaihank/redact-sentinel/internal/logger"
	"github.com/raaihank/redact-sentinel/internal/metrics"
	"github.com/raaihank/redact-sentinel/internal/tokenstore"
	"github.com/raaihank/redact-sentinel/internal/websocket"
)

// Job is one redacted text waiting to be audited.
type Job struct {
	RequestID    string
	RedactedText string
	Tokens       []string
}

// Verifier returns a leak verdict for redacted text.
type Verifier interface {
	Verify(ctx context.Context, text string) llm.LeakVerdict
}

// KeyDeleter removes keys from the token store.
type KeyDeleter interface {
	Delete(ctx context.Context, keys ...string) (int64, error)
}

// Publisher receives operator events.
type Publisher interface {
	BroadcastEvent(event websocket.Event)
}

// CoordinatorConfig sizes the work queue.
type CoordinatorConfig struct {
	QueueSize       int
	Workers         int
	PurgeKeyTimeout time.Duration
}

// Coordinator runs audit jobs on a bounded queue and purges the tokens of
// any text the auditor flags.
type Coordinator struct {
	verifier  Verifier
	store     KeyDeleter
	publisher Publisher
	cfg       CoordinatorConfig
	logger    *logger.Logger

	queue chan Job
	wg    sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewCoordinator creates a coordinator. publisher may be nil.
func NewCoordinator(verifier Verifier, store KeyDeleter, publisher Publisher, cfg CoordinatorConfig, log *logger.Logger) *Coordinator {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PurgeKeyTimeout <= 0 {
		cfg.PurgeKeyTimeout = 2 * time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Coordinator{
		verifier:  verifier,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		logger:    log.WithComponent("audit_coordinator"),
		queue:     make(chan Job, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true

	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i)
	}
	c.logger.Info("Audit coordinator started",
		zap.Int("workers", c.cfg.Workers),
		zap.Int("queue_size", c.cfg.QueueSize),
	)
}

// Enqueue schedules a job without blocking. It reports false when the job
// was dropped because the queue is full or the coordinator is stopped.
func (c *Coordinator) Enqueue(job Job) bool {
	job.Tokens = append([]string(nil), job.Tokens...)

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.queue <- job:
		metrics.AuditQueueDepth.Set(float64(len(c.queue)))
		return true
	default:
		metrics.AuditJobsDropped.Inc()
		c.logger.Warn("Audit queue full, dropping job",
			zap.String("request_id", job.RequestID),
			zap.Int("tokens", len(job.Tokens)),
		)
		return false
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	c.wg.Wait()
	c.logger.Info("Audit coordinator stopped")
}

func (c *Coordinator) worker(ctx context.Context, id int) {
	defer c.wg.Done()
	for job := range c.queue {
		metrics.AuditQueueDepth.Set(float64(len(c.queue)))
		if err := c.process(ctx, job); err != nil {
			metrics.AuditTaskFailures.Inc()
			c.logger.Error("Audit task failed",
				zap.Int("worker", id),
				zap.String("request_id", job.RequestID),
				zap.Error(err),
			)
		}
	}
}

// process audits one job. A panic is returned as an error.
func (c *Coordinator) process(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during audit: %v", r)
		}
	}()

	log := c.logger.WithRequestID(job.RequestID)

	verdict := c.verifier.Verify(ctx, job.RedactedText)
	if verdict.Indeterminate() {
		log.Warn("Audit verdict indeterminate", zap.String("error", verdict.Error))
	}
	if !verdict.Leaked {
		log.Debug("Audit passed", zap.Int("tokens", len(job.Tokens)))
		return nil
	}

	metrics.AuditorLeakDetections.Inc()
	log.Warn("Auditor detected PII leak, purging tokens",
		zap.String("reason", verdict.Reason),
		zap.Int("tokens", len(job.Tokens)),
	)

	purged := c.purge(ctx, log, job.Tokens)
	metrics.AuditorKeysPurged.Add(float64(purged))

	if c.publisher != nil {
		c.publisher.BroadcastEvent(websocket.Event{
			Type:      websocket.EventTypeLeakDetected,
			Timestamp: time.Now(),
			RequestID: job.RequestID,
			Data: websocket.LeakEvent{
				Reason:      verdict.Reason,
				TokensTotal: len(job.Tokens),
				KeysPurged:  purged,
			},
		})
	}
	return nil
}

// purge deletes each token and its policy key independently. Failures are
// logged and skipped.
func (c *Coordinator) purge(ctx context.Context, log *logger.Logger, tokens []string) int {
	purged := 0
	for _, token := range tokens {
		for _, key := range []string{token, tokenstore.PolicyKey(token)} {
			kctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.PurgeKeyTimeout)
			n, err := c.store.Delete(kctx, key)
			cancel()
			if err != nil {
				log.Warn("Failed to purge key", zap.String("key", key), zap.Error(err))
				continue
			}
			purged += int(n)
		}
	}
	return purged
}
