// Package embedder converts text to fixed-dimension vectors via an
// external HTTP embedding service, with bounded timeout, capped
// exponential backoff retry, and bounded-parallel batching. This
// implements C3 of the indexing engine (spec §4.3).
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/wb200/wbgrep/internal/wberr"
)

// Dimension is the expected embedding length (spec §6).
const Dimension = 1024

// Config configures a Client.
type Config struct {
	// BaseURL is the embedding backend's base URL.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retries is the total number of attempts (including the first),
	// per spec §4.3.
	Retries int

	// Concurrency bounds in-flight requests for EmbedBatch.
	Concurrency int

	// Logger receives retry and failure diagnostics. A nil Logger is
	// replaced with a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns spec §6/§4.3's defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:11434",
		Model:       "qwen3-embedding:0.6b",
		Timeout:     30 * time.Second,
		Retries:     3,
		Concurrency: 8,
	}
}

// Client is an HTTP client for an Ollama-compatible embeddings backend.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// New creates a Client, applying DefaultConfig's values to any zero fields.
func New(cfg Config) *Client {
	d := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = d.Retries
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Embed generates an embedding for a single text, retrying transient
// network failures per spec §4.3's backoff schedule.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embedRequest{Model: c.cfg.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	attempts := 0
	op := func() (embedResponse, error) {
		attempts++

		reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.BaseURL+"/api/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return embedResponse{}, backoff.Permanent(fmt.Errorf("building request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if isTransient(err) {
				c.logger.Warn("embedding request failed, retrying",
					zap.Int("attempt", attempts), zap.Error(err))
				return embedResponse{}, err // retryable
			}
			return embedResponse{}, backoff.Permanent(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return embedResponse{}, backoff.Permanent(fmt.Errorf("reading response: %w", err))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return embedResponse{}, backoff.Permanent(&wberr.BackendProtocolError{StatusCode: resp.StatusCode, Body: string(body)})
		}

		var out embedResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return embedResponse{}, backoff.Permanent(fmt.Errorf("parsing response: %w", err))
		}
		return out, nil
	}

	result, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&retrySchedule{}),
		backoff.WithMaxTries(uint(c.cfg.Retries)),
	)
	if err != nil {
		c.logger.Error("embedding failed after retries",
			zap.Int("attempts", attempts), zap.Error(err))
		var perr *wberr.BackendProtocolError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &wberr.TransientBackendError{Attempts: attempts, Err: err}
	}

	return result.Embedding, nil
}

// retrySchedule implements spec §4.3's backoff: before attempt k (k>=2),
// wait min(1000*2^(k-2), 10000) ms. backoff.BackOff's NextBackOff is
// called once per failed attempt, so the n-th call corresponds to the
// delay before attempt n+1 (i.e. k = n+1).
type retrySchedule struct {
	n int
}

func (r *retrySchedule) NextBackOff() time.Duration {
	r.n++
	k := r.n + 1
	ms := 1000 * (1 << uint(k-2))
	if ms > 10000 {
		ms = 10000
	}
	return time.Duration(ms) * time.Millisecond
}

// EmbedBatch generates embeddings for texts with at most Concurrency
// in-flight requests. Per-item failures are recorded and replaced with a
// zero vector (spec §4.3); EmbedBatch itself only fails if every item
// failed.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	sem := semaphore.NewWeighted(int64(c.cfg.Concurrency))
	var wg sync.WaitGroup

	for i, text := range texts {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			results[i] = make([]float32, Dimension)
			continue
		}
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer sem.Release(1)

			vec, err := c.Embed(ctx, text)
			if err != nil {
				errs[i] = err
				results[i] = make([]float32, Dimension)
				return
			}
			results[i] = vec
		}(i, text)
	}

	wg.Wait()

	failures := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if failures == len(texts) {
		c.logger.Error("embedding batch failed entirely", zap.Int("n", len(texts)), zap.Error(firstErr))
		return nil, &wberr.BatchEmbeddingError{N: len(texts), FirstErr: firstErr}
	}
	if failures > 0 {
		c.logger.Warn("embedding batch had partial failures",
			zap.Int("failed", failures), zap.Int("total", len(texts)))
	}

	return results, nil
}

// Ping reports whether the backend is reachable.
func (c *Client) Ping(ctx context.Context) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// HasModel reports whether the backend advertises a model matching the
// configured model name, or its base prefix before the first ':'.
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &wberr.BackendProtocolError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out tagsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, fmt.Errorf("parsing response: %w", err)
	}

	basePrefix := c.cfg.Model
	if idx := strings.IndexByte(basePrefix, ':'); idx >= 0 {
		basePrefix = basePrefix[:idx]
	}

	for _, m := range out.Models {
		if m.Name == c.cfg.Model || strings.HasPrefix(m.Name, basePrefix) {
			return true, nil
		}
	}
	return false, nil
}

// isTransient reports whether err looks like a network-level failure that
// warrants a retry (timeouts, connection reset/refused) rather than a
// protocol-level error.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection reset", "connection refused", "fetch failed", "eof"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
