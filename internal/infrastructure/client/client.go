// Package client talks to the invoicedesk server over HTTP.
// It includes bearer authentication, retry logic and error message extraction.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/erp/invoicedesk/internal/infrastructure/config"
)

// Client is the low-level HTTP client
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	headers     map[string]string
	token       string
	retryConfig RetryConfig
	mu          sync.RWMutex
}

// RetryConfig configures retry behavior.
// Only idempotent methods are retried.
type RetryConfig struct {
	MaxRetries  int
	RetryDelay  time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	ShouldRetry func(resp *http.Response, err error) bool
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelay: 500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2.0,
		ShouldRetry: func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		},
	}
}

// NewClient creates a client for the configured server.
// A nil retryCfg uses DefaultRetryConfig with cfg.Retries attempts.
func NewClient(cfg config.RemoteConfig, retryCfg *RetryConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %s", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if retryCfg == nil {
		def := DefaultRetryConfig()
		def.MaxRetries = cfg.Retries
		retryCfg = &def
	}
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = DefaultRetryConfig().ShouldRetry
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		token:      cfg.Token,
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
			"User-Agent":   "deskctl/1.0",
		},
		retryConfig: *retryCfg,
	}, nil
}

// Request represents an HTTP request to be executed
type Request struct {
	Method      string
	Path        string
	QueryParams map[string]string
	Body        any
}

// Response represents an HTTP response
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do executes a request with retry logic.
// Transport failures are returned as errors; HTTP error statuses are not.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildURL(req.Path, req.QueryParams)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}

	var body []byte
	if req.Body != nil {
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
	}

	maxRetries := c.retryConfig.MaxRetries
	if !isIdempotent(req.Method) {
		maxRetries = 0
	}

	var lastResp *Response
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating HTTP request: %w", err)
		}
		c.setHeaders(httpReq)

		start := time.Now()
		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastResp, lastErr = nil, err
			if attempt < maxRetries && c.retryConfig.ShouldRetry(nil, err) {
				continue
			}
			return nil, err
		}

		resp := &Response{StatusCode: httpResp.StatusCode, Headers: httpResp.Header}
		resp.Body, err = io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		resp.Duration = time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("reading response body: %w", err)
		}

		lastResp, lastErr = resp, nil
		if attempt < maxRetries && c.retryConfig.ShouldRetry(httpResp, nil) {
			continue
		}
		return resp, nil
	}
	return lastResp, lastErr
}

// SetToken replaces the bearer token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// GetBaseURL returns the client's base URL
func (c *Client) GetBaseURL() string {
	return c.baseURL.String()
}

func (c *Client) buildURL(path string, queryParams map[string]string) (*url.URL, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := c.baseURL.Parse(strings.TrimSuffix(c.baseURL.Path, "/") + path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if len(queryParams) > 0 {
		q := u.Query()
		for k, v := range queryParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) setHeaders(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryConfig.RetryDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	if c.retryConfig.MaxDelay > 0 && delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	// jitter of 25%
	jitter := delay * 0.25
	delay += (rand.Float64()*2 - 1) * jitter
	return time.Duration(delay)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
