// Package client is the HTTP transport of the cart client. It attaches the
// session's bearer token, decodes the response envelope and ends the session
// when the backend reports it expired.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"lingxian-cart/internal/domain"
	"lingxian-cart/internal/session"
)

// Config configures the transport.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit caps outgoing requests per second; zero disables throttling.
	RateLimit float64
	Retry     RetryConfig
	UserAgent string
}

// RetryConfig configures retries of idempotent reads (GET) on transport failures.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// Client sends enveloped requests to the cart backend, attaching the session
// token and clearing the session when the backend reports it expired.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	headers    map[string]string
	session    session.Store
	limiter    *rate.Limiter
	retry      RetryConfig
	logger     *zap.Logger
}

// New validates cfg and builds a Client that reads credentials from sess.
func New(cfg Config, sess session.Store, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host are required", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "lingxian-cart/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   cfg.UserAgent,
		},
		session: sess,
		retry:   cfg.Retry,
		logger:  logger,
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c, nil
}

// Call sends one request and returns the decoded envelope. Network failures,
// non-2xx statuses and undecodable bodies are *domain.TransportError; an
// envelope whose code is not 200 is returned together with a *domain.BusinessError.
func (c *Client) Call(ctx context.Context, method, path string, body interface{}) (*domain.Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
	}
	target := c.baseURL.JoinPath(path)

	attempts := 1
	if method == http.MethodGet {
		attempts += c.retry.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
		env, err := c.do(ctx, method, target, payload)
		if err == nil {
			return c.settle(ctx, env)
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		c.logger.Debug("retrying request", zap.String("method", method), zap.String("path", path), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, method string, target *url.URL, payload []byte) (*domain.Envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{Err: err}
		}
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token := c.token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	c.logger.Debug("cart request",
		zap.String("method", method),
		zap.String("url", target.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	if err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	return &env, nil
}

// settle turns a non-success envelope into an error and ends an expired session.
func (c *Client) settle(ctx context.Context, env *domain.Envelope) (*domain.Envelope, error) {
	if env.OK() {
		return env, nil
	}
	if env.Code == domain.CodeUnauthorized && c.session != nil {
		for _, key := range []string{session.KeyToken, session.KeyUserInfo} {
			if err := c.session.Remove(ctx, key); err != nil {
				c.logger.Warn("clear expired session", zap.String("key", key), zap.Error(err))
			}
		}
		c.logger.Info("session expired, credentials cleared")
	}
	return env, env.Err()
}

func (c *Client) token(ctx context.Context) string {
	if c.session == nil {
		return ""
	}
	token, err := c.session.Get(ctx, session.KeyToken)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			c.logger.Warn("read session token", zap.Error(err))
		}
		return ""
	}
	return token
}

func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.retry.RetryDelay) * math.Pow(2, float64(attempt-1))
	if c.retry.MaxDelay > 0 && delay > float64(c.retry.MaxDelay) {
		delay = float64(c.retry.MaxDelay)
	}
	return time.Duration(delay)
}

func retryable(err error) bool {
	var te *domain.TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.StatusCode == 0 || te.StatusCode >= 500 || te.StatusCode == http.StatusTooManyRequests
}
