// Package httpclient is the resilient request layer shared by every
// outbound integration: keep-alive connection reuse, rotating user agents,
// bounded retries with exponential backoff and optional pacing.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBodySize bounds how much of a response body is buffered
const maxBodySize = 64 << 20

// Config configures the transport of a Client
type Config struct {
	Timeout             time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig returns the default transport configuration
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// RetryHook is called before every retry
type RetryHook func(ctx context.Context, method, host string, retry int, reason string)

// Client executes HTTP requests with retries. It holds no per-call state
// and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	policy     RetryPolicy
	agents     UserAgentRotator
	limiter    *rate.Limiter
	onRetry    RetryHook
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithRetryPolicy sets the retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithUserAgents sets the user agent rotator
func WithUserAgents(r UserAgentRotator) Option {
	return func(c *Client) {
		if r != nil {
			c.agents = r
		}
	}
}

// WithRateLimiter paces every attempt through limiter
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithRetryHook registers a hook called before every retry
func WithRetryHook(h RetryHook) Option {
	return func(c *Client) { c.onRetry = h }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.Named("httpclient")
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client with a keep-alive transport
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout <= 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	transport.IdleConnTimeout = cfg.IdleConnTimeout
	transport.DisableKeepAlives = false

	c := &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		policy: DefaultRetryPolicy(),
		agents: StaticUserAgent(DefaultUserAgent),
		logger: zap.NewNop(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is one logical call. Body is resent on every attempt.
type Request struct {
	Method string
	URL    string
	Params url.Values
	Header http.Header
	Body   []byte
}

// Response is a fully buffered successful response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

// Execute performs method on rawURL with query params
func (c *Client) Execute(ctx context.Context, method, rawURL string, params url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: method, URL: rawURL, Params: params})
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Params: params, Header: header})
}

// Do executes req, retrying per the client's policy. POST and PATCH are
// only resent when the server cannot have acted on them. Any non-2xx
// final status or transport failure is returned as a *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Params)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL, Err: err}
	}
	host := target.Host
	redacted := target.Redacted()

	var (
		lastErr    error
		lastStatus int
		lastBody   []byte
		wait       time.Duration
	)

	for attempt := 1; attempt <= c.policy.MaxRetries+1; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, &NetworkError{Method: req.Method, URL: redacted, StatusCode: lastStatus, Attempts: attempt - 1, Err: err}
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &NetworkError{Method: req.Method, URL: redacted, StatusCode: lastStatus, Attempts: attempt - 1, Err: err}
			}
		}

		resp, body, err := c.attempt(ctx, req, target)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return &Response{
				StatusCode: resp.StatusCode,
				Header:     resp.Header,
				Body:       body,
				Attempts:   attempt,
			}, nil
		}

		lastErr = err
		lastStatus = 0
		lastBody = nil
		if resp != nil {
			lastStatus = resp.StatusCode
			lastBody = body
		}

		if ctx.Err() != nil {
			return nil, &NetworkError{Method: req.Method, URL: redacted, StatusCode: lastStatus, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt > c.policy.MaxRetries || !c.policy.allows(req.Method, resp, err) {
			return nil, &NetworkError{
				Method:     req.Method,
				URL:        redacted,
				StatusCode: lastStatus,
				Attempts:   attempt,
				Body:       snippet(lastBody),
				Err:        lastErr,
			}
		}

		wait = c.policy.Backoff(attempt)
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			if d, ok := retryAfter(resp.Header, c.now()); ok {
				wait = d
			}
		}

		reason := retryReason(lastStatus, err)
		c.logger.Warn("Request failed, retrying",
			zap.String("method", req.Method),
			zap.String("url", redacted),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Duration("wait", wait),
		)
		if c.onRetry != nil {
			c.onRetry(ctx, req.Method, host, attempt, reason)
		}
	}

	// unreachable: the loop always returns on its last attempt
	return nil, &NetworkError{Method: req.Method, URL: redacted, StatusCode: lastStatus, Attempts: c.policy.MaxRetries + 1, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, req Request, target *url.URL) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyReader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), bodyReader)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.agents.Next())
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp, body, nil
}

func buildURL(rawURL string, params url.Values) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing scheme or host", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func retryReason(status int, err error) string {
	switch {
	case err != nil && isTimeout(err):
		return "timeout"
	case err != nil:
		return "connection"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	default:
		return fmt.Sprintf("status_%d", status)
	}
}

func snippet(body []byte) string {
	const n = 500
	if len(body) > n {
		return string(body[:n])
	}
	return string(body)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
