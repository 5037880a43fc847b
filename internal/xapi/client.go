// Package xapi is a minimal X API v2 client implementing platform.Client
// with OAuth 1.0a user-context signing.
package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/ibeckermayer/reply4me/internal/platform"
)

const (
	DefaultHost       = "https://api.twitter.com"
	DefaultUploadHost = "https://upload.twitter.com"
)

// Credentials are the app and user tokens for user-context calls.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

type Client struct {
	// HTTP is the signed client. If nil, New builds one.
	HTTP       *http.Client
	Host       string
	UploadHost string
	Now        func() time.Time

	selfMu sync.Mutex
	selfID string
}

// New builds a Client whose requests are OAuth1-signed over a cleanhttp
// pooled transport.
func New(creds Credentials, timeout time.Duration) *Client {
	base := cleanhttp.DefaultPooledClient()
	if timeout > 0 {
		base.Timeout = timeout
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	return &Client{
		HTTP:       cfg.Client(ctx, token),
		Host:       DefaultHost,
		UploadHost: DefaultUploadHost,
		Now:        time.Now,
	}
}

var _ platform.Client = (*Client)(nil)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("x api %d: %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("x api %d: %s", e.StatusCode, e.Body)
}

// Unwrap marks client errors other than 429 as permanent.
func (e *APIError) Unwrap() error {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return platform.ErrPermanent
	}
	return nil
}

func (c *Client) errorFromResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return &platform.RateLimitError{RetryAfter: c.retryAfter(resp.Header)}
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil {
		apiErr.Title = problem.Title
		apiErr.Detail = problem.Detail
	}
	return apiErr
}

// minRateLimitWait is returned when the reset instant has already passed and
// no Retry-After was given.
const minRateLimitWait = time.Second

// retryAfter prefers a future x-rate-limit-reset (unix seconds), then
// Retry-After. Zero means the response carried neither header.
func (c *Client) retryAfter(h http.Header) time.Duration {
	resetSeen := false
	if n, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		if d := time.Unix(n, 0).Sub(c.Now()); d > 0 {
			return d.Round(time.Second)
		}
		resetSeen = true
	}
	if n, err := strconv.Atoi(h.Get("Retry-After")); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if resetSeen {
		return minRateLimitWait
	}
	return 0
}

// do sends a JSON request to host+path and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, host, path string, params url.Values, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	uri := host + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFromResponse(resp, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
