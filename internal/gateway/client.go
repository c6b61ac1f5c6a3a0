// Package gateway is the HTTP client for the institute notification API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// maxBackoff caps the wait between rate-limited attempts, including waits
// requested through Retry-After.
const maxBackoff = 30 * time.Second

// TokenSource supplies the bearer token for each request. It is consulted
// per request so a re-login takes effect without rebuilding the client.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RatePerSec int
}

// Client is a thin HTTP client for the notification REST API.
// It handles Bearer token authentication, JSON marshaling, outbound
// throttling, and automatic retry with exponential backoff on HTTP 429.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	maxRetries int
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a new API client for cfg.BaseURL.
func NewClient(cfg Config, tokens TokenSource, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
		burst = cfg.RatePerSec
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries: maxRetries,
		limiter:    rate.NewLimiter(limit, burst),
		log:        log,
	}
}

// do is the core HTTP method that builds the request, handles auth,
// rate limiting with exponential backoff, and JSON serialization. It
// returns the raw response body of a successful call.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) ([]byte, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	token, err := c.tokens.Token()
	if err != nil {
		return nil, &AuthError{Message: fmt.Sprintf("loading auth token: %v", err)}
	}
	if token == "" {
		return nil, &AuthError{Message: "no auth token available; log in first"}
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		requestID := uuid.New().String()
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = &StatusError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Message:    "rate limited",
			}
			if attempt == c.maxRetries {
				break
			}
			c.log.Debug().
				Str("request_id", requestID).
				Int("attempt", attempt).
				Dur("wait", waitDuration).
				Msg("rate limited, backing off")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			msg := errorMessage(respBody)
			if msg == "" {
				msg = "check your login for " + c.baseURL
			}
			return nil, &AuthError{Message: msg}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Method:     method,
				Path:       path,
				Message:    errorMessage(respBody),
			}
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// errorMessage extracts a human-readable message from an error body.
func errorMessage(body []byte) string {
	var apiErr errorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.text() != "" {
		return apiErr.text()
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds >= 0 {
			return min(time.Duration(seconds)*time.Second, maxBackoff)
		}
	}

	// Exponential backoff: 1s, 2s, 4s, ...
	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}
