// Package httpapi is the JSON-over-HTTP plumbing shared by the Pinecone,
// Firecrawl and embedding clients.
package httpapi

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

	"github.com/decision-crafters/pinecone-mcp-helper/internal/domain"
	"github.com/decision-crafters/pinecone-mcp-helper/internal/resilience"
)

const maxErrorBody = 512

// Client sends JSON requests to one service through a resilience guard
type Client struct {
	service    string
	baseURL    string
	headers    http.Header
	httpClient *http.Client
	guard      *resilience.Guard
}

// Options configures a Client
type Options struct {
	Service    string
	BaseURL    string
	Headers    map[string]string
	Timeout    time.Duration
	HTTPClient *http.Client
	Guard      *resilience.Guard
}

// New creates a Client
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	guard := opts.Guard
	if guard == nil {
		guard = resilience.Passthrough(opts.Service)
	}
	headers := make(http.Header, len(opts.Headers))
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	return &Client{
		service:    opts.Service,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		headers:    headers,
		httpClient: httpClient,
		guard:      guard,
	}
}

// Service returns the service name used in errors
func (c *Client) Service() string {
	return c.service
}

// BaseURL returns the base URL requests are resolved against
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithBaseURL returns a copy of c that talks to a different host
func (c *Client) WithBaseURL(baseURL string) *Client {
	cp := *c
	cp.baseURL = strings.TrimSuffix(baseURL, "/")
	return &cp
}

// Do sends in as JSON (when non-nil) to path and decodes the response
// into out (when non-nil). Paths starting with http are used as is.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = b
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	return c.guard.Do(ctx, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range c.headers {
			req.Header[k] = v
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return domain.NewAPIError(c.service, 0, fmt.Sprintf("request failed: %v", err), err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return c.statusError(resp, respBody)
		}
		if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse %s response: %w", c.service, err)
		}
		return nil
	})
}

// statusError maps an HTTP failure to a domain error
func (c *Client) statusError(resp *http.Response, body []byte) error {
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewAPIError(c.service, resp.StatusCode, msg, domain.ErrAuthFailed)
	case http.StatusNotFound:
		return domain.NewAPIError(c.service, resp.StatusCode, msg, domain.ErrNotFound)
	case http.StatusTooManyRequests:
		return &domain.RetryableError{
			Err:        domain.NewAPIError(c.service, resp.StatusCode, msg, domain.ErrRateLimited),
			RetryAfter: int(resilience.ParseRetryAfter(resp.Header.Get("Retry-After")).Seconds()),
		}
	default:
		return domain.NewAPIError(c.service, resp.StatusCode, msg, nil)
	}
}

// errorMessage pulls a message out of the common JSON error shapes,
// falling back to the truncated raw body.
func errorMessage(body []byte) string {
	var shaped struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &shaped) == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		var s string
		if json.Unmarshal(shaped.Error, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(shaped.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

// IsNotFound reports whether err is a 404 from a remote API
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
