package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/neurotune/internal/shared"
)

const (
	DefaultBaseURL     = "https://api.spotify.com/v1"
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second

	defaultRetryAfter = time.Second
	// maxRateLimitWaits bounds consecutive 429 waits, which do not consume attempts.
	maxRateLimitWaits = 10
)

// TokenProvider hands out access tokens. An empty token means not authenticated.
type TokenProvider interface {
	ValidToken(ctx context.Context) (string, error)
}

// ClientOptions configures a [Client]. Tokens is required.
type ClientOptions struct {
	BaseURL     string
	HTTPClient  *http.Client
	Tokens      TokenProvider
	Limiter     *rate.Limiter
	MaxAttempts int
	BaseDelay   time.Duration
	Sleep       shared.SleepFunc
	Now         func() time.Time
	Logger      *log.Logger
}

// Client performs authenticated provider requests with rate-limit handling and retries.
type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenProvider
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	sleep       shared.SleepFunc
	now         func() time.Time
	logger      *log.Logger
}

// NewClient creates a [Client], filling unset options with defaults.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		http:        opts.HTTPClient,
		tokens:      opts.Tokens,
		limiter:     opts.Limiter,
		maxAttempts: opts.MaxAttempts,
		baseDelay:   opts.BaseDelay,
		sleep:       opts.Sleep,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.sleep == nil {
		c.sleep = shared.SleepContext
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "client")
	return c
}

// NewLimiter builds the outbound pacing limiter. A non-positive rps disables pacing.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RequestOptions describes one provider call. Method defaults to GET and
// MaxAttempts to the client's setting.
type RequestOptions struct {
	Method      string
	Query       url.Values
	Body        any
	MaxAttempts int
}

// Response is a successful provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	IsJSON     bool
}

// Decode unmarshals a JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || !r.IsJSON {
		return shared.NewError(shared.KindFormat, "decode", fmt.Errorf("response is not JSON"))
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return shared.NewError(shared.KindFormat, "decode", err)
	}
	return nil
}

// Text returns the raw body.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

// Request performs an authenticated call to endpoint (relative to the base URL).
//
// A 204 returns nil, nil. 401 fails immediately with [shared.KindSessionExpired]; 429 waits for
// Retry-After without using an attempt; 5xx, 408 and transport failures are retried with
// exponential backoff; any other status fails with [shared.KindAPI] at once.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	op := method + " " + endpoint

	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, shared.NewError(shared.KindUnauthenticated, op, err)
	}
	if token == "" {
		return nil, shared.NewError(shared.KindUnauthenticated, op, nil)
	}

	target := c.baseURL + endpoint
	if len(opts.Query) > 0 {
		target += "?" + opts.Query.Encode()
	}

	var payload []byte
	if opts.Body != nil {
		if payload, err = json.Marshal(opts.Body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.maxAttempts
	}

	var lastErr error
	rateLimitWaits := 0
	for attempt := 0; attempt < maxAttempts; {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, shared.NewError(shared.KindNetwork, op, err)
		}

		resp, err := c.do(ctx, method, target, token, payload)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, shared.NewError(shared.KindNetwork, op, ctx.Err())
			}
			lastErr = shared.NewError(shared.KindNetwork, op, err)
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, shared.NewError(shared.KindSessionExpired, op, nil)
		case resp.StatusCode == http.StatusTooManyRequests:
			rateLimitWaits++
			if rateLimitWaits > maxRateLimitWaits {
				return nil, shared.NewError(shared.KindRateLimited, op, fmt.Errorf("gave up after %d waits", maxRateLimitWaits))
			}
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
			c.logger.Warn("rate limited", "op", op, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, shared.NewError(shared.KindNetwork, op, err)
			}
			continue
		case resp.StatusCode == http.StatusNoContent:
			return nil, nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return parseResponse(op, resp)
		default:
			lastErr = shared.APIError(op, resp.StatusCode)
			if !retryable(resp.StatusCode) {
				return nil, lastErr
			}
		}

		attempt++
		if attempt >= maxAttempts {
			break
		}

		delay := c.baseDelay * time.Duration(1<<(attempt-1))
		c.logger.Warn("retrying request", "op", op, "attempt", attempt+1, "max_attempts", maxAttempts, "delay", delay, "error", lastErr)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, shared.NewError(shared.KindNetwork, op, err)
		}
	}

	c.logger.Error("request failed", "op", op, "attempts", maxAttempts, "error", lastErr)
	return nil, lastErr
}

// bufferedResponse is an [http.Response] with its body read.
type bufferedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (c *Client) do(ctx context.Context, method, target, token string, payload []byte) (*bufferedResponse, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &bufferedResponse{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func parseResponse(op string, resp *bufferedResponse) (*Response, error) {
	r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	if len(resp.Body) == 0 || !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		return r, nil
	}
	if !json.Valid(resp.Body) {
		return nil, shared.NewError(shared.KindFormat, op, fmt.Errorf("invalid JSON body"))
	}
	r.IsJSON = true
	return r, nil
}

// retryable reports whether a failed status may succeed on a later attempt.
func retryable(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout
}

// parseRetryAfter reads a Retry-After header given in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return defaultRetryAfter
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		if d := when.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}
