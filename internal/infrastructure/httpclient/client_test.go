package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

// recordingSleeper replaces real waits in tests
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func newTestClient(policy RetryPolicy, opts ...Option) (*Client, *recordingSleeper) {
	logger, _ := zap.NewDevelopment()
	opts = append([]Option{WithRetryPolicy(policy), WithLogger(logger)}, opts...)
	c := New(Config{Timeout: 5 * time.Second}, opts...)
	s := &recordingSleeper{}
	c.sleep = s.sleep
	return c, s
}

func TestClient_RetryBound(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	policy := DefaultRetryPolicy()
	policy.MaxRetries = 5
	var hooked atomic.Int32
	c, sleeper := newTestClient(policy, WithRetryHook(func(context.Context, string, string, int, string) {
		hooked.Add(1)
	}))

	resp, err := c.Execute(context.Background(), http.MethodGet, srv.URL+"/feed", nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, int32(6), attempts.Load())
	assert.Equal(t, int32(5), hooked.Load())
	assert.Len(t, sleeper.waits, 5)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusServiceUnavailable, netErr.StatusCode)
	assert.Equal(t, 6, netErr.Attempts)
	assert.Equal(t, "maintenance", netErr.Body)
	assert.ErrorIs(t, err, shared.ErrNetwork)
	assert.Equal(t, http.StatusServiceUnavailable, StatusCodeOf(err))
}

func TestClient_RecoversAfterTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(DefaultRetryPolicy())

	resp, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, resp.Attempts)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, sleeper := newTestClient(DefaultRetryPolicy())

	_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, http.StatusUnauthorized, StatusCodeOf(err))
}

func TestClient_RetryAfterOverridesBackoff(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	policy := DefaultRetryPolicy()
	policy.Jitter = 0
	c, sleeper := newTestClient(policy)

	_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, nil)

	require.NoError(t, err)
	require.Len(t, sleeper.waits, 1)
	assert.Equal(t, 7*time.Second, sleeper.waits[0])
}

func TestClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	policy := DefaultRetryPolicy()
	policy.MaxRetries = 2
	c, sleeper := newTestClient(policy)

	_, err := c.Execute(context.Background(), http.MethodGet, addr, nil)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 3, netErr.Attempts)
	assert.Equal(t, 0, netErr.StatusCode)
	assert.NotNil(t, netErr.Err)
	assert.Len(t, sleeper.waits, 2)
}

func TestClient_UserAgentRotationAndParams(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	var query url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.UserAgent())
		query = r.URL.Query()
		mu.Unlock()
	}))
	defer srv.Close()

	c, _ := newTestClient(NoRetry(), WithUserAgents(NewRoundRobinUserAgents([]string{"ua-1", "ua-2"})))

	for i := 0; i < 3; i++ {
		_, err := c.Execute(context.Background(), http.MethodGet, srv.URL, url.Values{"api_key": {"k"}})
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"ua-1", "ua-2", "ua-1"}, agents)
	assert.Equal(t, "k", query.Get("api_key"))
}

func TestClient_InvalidURL(t *testing.T) {
	c, _ := newTestClient(NoRetry())

	_, err := c.Execute(context.Background(), http.MethodGet, "not a url", nil)

	assert.ErrorIs(t, err, shared.ErrNetwork)
}

func TestClient_CancelledContextStopsRetrying(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, _ := newTestClient(DefaultRetryPolicy())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := c.Execute(ctx, http.MethodGet, srv.URL, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestClient_PostIsNotResentAfterServerError(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, sleeper := newTestClient(DefaultRetryPolicy())

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Empty(t, sleeper.waits)
	assert.Equal(t, http.StatusBadGateway, StatusCodeOf(err))
}

func TestClient_PostIsResentWhenThrottled(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := newTestClient(DefaultRetryPolicy())

	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: srv.URL, Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_PostIsResentWhenDialFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	policy := DefaultRetryPolicy()
	policy.MaxRetries = 1
	c, sleeper := newTestClient(policy)

	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, URL: addr, Body: []byte(`{}`)})

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, 2, netErr.Attempts)
	assert.Len(t, sleeper.waits, 1)
}
