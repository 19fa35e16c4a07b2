package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/redact-sentinel/internal/metrics"
)

const (
	generatePath = "/api/generate"
	tagsPath     = "/api/tags"

	// DefaultTimeout bounds a single inference call.
	DefaultTimeout = 30 * time.Second
)

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Config contains LLM endpoint settings
type Config struct {
	URL     string
	Model   string
	Timeout time.Duration
}

// Client calls an Ollama-compatible /api/generate endpoint.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewClient creates a client. URL may be the server base or the full
// generate endpoint.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	base = strings.TrimSuffix(base, generatePath)
	if base == "" {
		base = "http://localhost:11434"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    base,
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Generate sends a non-streaming JSON-mode prompt and returns the model's
// raw response text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := c.generate(ctx, prompt)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LLMRequestDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return out, err
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", fmt.Errorf("marshalling generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm api call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}

	return out.Response, nil
}

// Healthy probes the model server's tag listing.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tagsPath, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
