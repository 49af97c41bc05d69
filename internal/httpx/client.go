// Package httpx provides the pooled, rate-limited, retrying HTTP client used
// for every outbound ClickUp API call. Retry classification lives in
// classify.go; this file is the request loop.
package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"tracksync/internal/ratelimit"
)

const defaultRequestTimeout = 30 * time.Second

// Pool capacity stays above the batch worker cap (60) so retries and
// concurrent background calls reuse pooled sockets instead of opening new
// connections mid-storm.
const poolSize = 80

// Limiter is the admission-control dependency (see internal/ratelimit).
type Limiter interface {
	Acquire() time.Duration
	Stats() ratelimit.Stats
}

// Client performs single logical requests against one API base URL. Safe for
// concurrent use; one Client is shared process-wide.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter Limiter
	policy  RetryPolicy
	rng     *rand.Rand

	// sleep is swappable for tests.
	sleep func(time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy overrides the retry policy.
func WithPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// WithSleep overrides the backoff sleep function.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

// New builds a Client over a keep-alive transport sized to poolSize.
func New(baseURL, token string, limiter Limiter, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize,
		IdleConnTimeout:     90 * time.Second,
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Transport: transport,
			Timeout:   defaultRequestTimeout,
		},
		limiter: limiter,
		policy:  DefaultRetryPolicy(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats exposes the limiter counters for fetch summaries.
func (c *Client) Stats() ratelimit.Stats {
	return c.limiter.Stats()
}

// Get issues a GET with optional query params.
func (c *Client) Get(path string, params url.Values) ([]byte, error) {
	return c.Do(http.MethodGet, path, params, nil)
}

// Post issues a POST with a JSON payload.
func (c *Client) Post(path string, params url.Values, payload any) ([]byte, error) {
	return c.Do(http.MethodPost, path, params, payload)
}

// Put issues a PUT with a JSON payload.
func (c *Client) Put(path string, payload any) ([]byte, error) {
	return c.Do(http.MethodPut, path, nil, payload)
}

// Do performs one logical request: acquire a rate-limit token, issue the call
// over the pooled transport, classify the outcome, and retry transient
// failures with the policy's backoff. A fatal outcome or the attempt ceiling
// returns an error; Do never panics past the caller.
func (c *Client) Do(method, path string, params url.Values, payload any) ([]byte, error) {
	var bodyBytes []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request payload: %w", err)
		}
		bodyBytes = b
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		c.limiter.Acquire()

		status, body, err := c.once(method, reqURL, bodyBytes)
		class := Classify(status, err)
		switch class {
		case ClassOK:
			return body, nil
		case ClassFatal:
			return nil, fmt.Errorf("api %d: %s", status, truncate(body, 200))
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("api %d", status)
		}

		if attempt < c.policy.MaxAttempts-1 {
			c.sleep(c.policy.Backoff(class, attempt, c.rng))
		}
	}
	return nil, fmt.Errorf("max retries exceeded for %s %s: %w", method, path, lastErr)
}

func (c *Client) once(method, reqURL string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, reqURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
