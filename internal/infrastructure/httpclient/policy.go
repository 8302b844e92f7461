package httpclient

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RetryPolicy decides whether and how long to wait before another attempt.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the wait for each later retry.
	Multiplier float64
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Jitter is the +/- fraction applied to each wait. 0 disables jitter.
	Jitter float64
	// ShouldRetry decides whether a response or transport error is retryable.
	ShouldRetry func(resp *http.Response, err error) bool
	// RetryNonIdempotent lets POST and PATCH retry on any retryable
	// outcome. By default they retry only when the server cannot have
	// acted on them: a 429 or a failed dial.
	RetryNonIdempotent bool
}

// DefaultRetryPolicy returns the default retry policy: 5 retries, 500ms
// doubling up to 60s, 25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  5,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    60 * time.Second,
		Jitter:      0.25,
		ShouldRetry: IsRetryable,
	}
}

// NoRetry returns a policy that makes exactly one attempt
func NoRetry() RetryPolicy {
	return RetryPolicy{ShouldRetry: IsRetryable}
}

// IsRetryable retries connection failures, timeouts, 429 and 5xx.
// A cancelled context is never retried.
func IsRetryable(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}

// Backoff returns the wait before retry number retry (1-based)
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(mult, float64(retry-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		jitter := delay * p.Jitter
		delay = delay + (rand.Float64()*2-1)*jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p RetryPolicy) shouldRetry(resp *http.Response, err error) bool {
	if p.ShouldRetry == nil {
		return IsRetryable(resp, err)
	}
	return p.ShouldRetry(resp, err)
}

// allows decides whether a failed attempt of method may be sent again
func (p RetryPolicy) allows(method string, resp *http.Response, err error) bool {
	if !p.shouldRetry(resp, err) {
		return false
	}
	if p.RetryNonIdempotent || IsIdempotent(method) {
		return true
	}
	return notProcessed(resp, err)
}

// IsIdempotent reports whether repeating method has the same effect as
// sending it once.
func IsIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// notProcessed is true when the server provably did not act on the
// request: it was throttled, or the connection was never established.
func notProcessed(resp *http.Response, err error) bool {
	if err == nil {
		return resp != nil && resp.StatusCode == http.StatusTooManyRequests
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date
func retryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0, true
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// isTimeout reports whether a transport error is a timeout
func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ---------------------------------------------------------------------------
// User agents
// ---------------------------------------------------------------------------

// UserAgentRotator picks the User-Agent of each outbound request
type UserAgentRotator interface {
	Next() string
}

// DefaultUserAgent is used when no pool is configured
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// StaticUserAgent always returns the same value
type StaticUserAgent string

// Next returns the user agent
func (s StaticUserAgent) Next() string {
	return string(s)
}

// RandomUserAgents picks uniformly from a pool
type RandomUserAgents struct {
	mu     sync.Mutex
	agents []string
	rnd    *rand.Rand
}

// NewRandomUserAgents creates a rotator. An empty pool falls back to DefaultUserAgent.
func NewRandomUserAgents(agents []string) *RandomUserAgents {
	pool := make([]string, 0, len(agents))
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			pool = append(pool, a)
		}
	}
	if len(pool) == 0 {
		pool = []string{DefaultUserAgent}
	}
	return &RandomUserAgents{
		agents: pool,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns a random user agent from the pool
func (r *RandomUserAgents) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agents[r.rnd.Intn(len(r.agents))]
}

// RoundRobinUserAgents cycles through a pool in order
type RoundRobinUserAgents struct {
	mu     sync.Mutex
	agents []string
	next   int
}

// NewRoundRobinUserAgents creates a rotator. An empty pool falls back to DefaultUserAgent.
func NewRoundRobinUserAgents(agents []string) *RoundRobinUserAgents {
	if len(agents) == 0 {
		agents = []string{DefaultUserAgent}
	}
	return &RoundRobinUserAgents{agents: agents}
}

// Next returns the next user agent
func (r *RoundRobinUserAgents) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ua := r.agents[r.next%len(r.agents)]
	r.next++
	return ua
}
