// Package apiclient talks to the device provisioning and payment notification services.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"provflow/logging"
	"provflow/platform/retry"
)

const maxErrorBody = 2048

// AuthType selects how requests are authenticated.
type AuthType int

const (
	AuthNone AuthType = iota
	AuthBearer
	AuthSubscriptionKey
)

// APIError is returned for non-2xx responses.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	Auth      AuthType
	Secret    string
	UserAgent string
	Timeout   time.Duration
	// Retry drives the transport's retry count and backoff. MaxAttempts counts the first try.
	Retry retry.Policy
}

// Client is a JSON HTTP client with retrying transport.
type Client struct {
	baseURL   string
	auth      AuthType
	secret    string
	userAgent string
	http      *retryablehttp.Client
	logger    *logging.Logger
}

// NewClient creates a client for opts.BaseURL.
func NewClient(opts Options) *Client {
	logger := logging.Default().WithComponent("api_client")

	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.HTTPClient.Timeout = opts.Timeout
	rc.RetryMax = max(opts.Retry.MaxAttempts-1, 0)
	policy := opts.Retry
	rc.Backoff = func(_, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
		return policy.Wait(attemptNum + 1)
	}
	rc.CheckRetry = retryablehttp.DefaultRetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			logger.API("Retrying request", "method", req.Method, "url", req.URL.String(), "attempt", attempt+1)
		}
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "DeviceTransactionAutomation/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		auth:      opts.Auth,
		secret:    opts.Secret,
		userAgent: userAgent,
		http:      rc,
		logger:    logger,
	}
}

func (c *Client) url(endpoint string) string {
	if endpoint == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

// Post sends body as JSON and decodes the JSON response into out. A nil out discards the body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, body, out)
}

// Get decodes the JSON response of endpoint into out.
func (c *Client) Get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	target := c.url(endpoint)
	req, err := retryablehttp.NewRequestWithContext(ctx, method, target, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.API("Request failed", "method", method, "url", target, "error", err)
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	c.logger.API("Request completed", "method", method, "url", target, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text := string(raw)
		if len(text) > maxErrorBody {
			text = text[:maxErrorBody]
		}
		return &APIError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: text}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", target, err)
	}
	return nil
}

func (c *Client) decorate(h http.Header) {
	h.Set("User-Agent", c.userAgent)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	switch c.auth {
	case AuthBearer:
		if c.secret != "" {
			h.Set("Authorization", "Bearer "+c.secret)
		}
	case AuthSubscriptionKey:
		h.Set("Subscription-Key", c.secret)
	}
}

// HealthCheck reports whether the base URL answers below 500 within 5s.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return false
	}
	c.decorate(req.Header)
	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
