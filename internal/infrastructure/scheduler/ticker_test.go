package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestTickerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  TickerConfig
		wantErr bool
	}{
		{"valid", TickerConfig{Name: "products", Interval: time.Hour}, false},
		{"missing name", TickerConfig{Interval: time.Hour}, true},
		{"zero interval", TickerConfig{Name: "orders"}, true},
		{"negative interval", TickerConfig{Name: "orders", Interval: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewIntervalTicker_RequiresJob(t *testing.T) {
	_, err := NewIntervalTicker(TickerConfig{Name: "products", Interval: time.Second}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestIntervalTicker_RunsImmediatelyAndRepeats(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}

	var mu sync.Mutex
	var announced []time.Time
	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "orders", Interval: 20 * time.Millisecond, RunImmediately: true},
		job,
		zaptest.NewLogger(t),
		WithNextRun(func(at time.Time) {
			mu.Lock()
			announced = append(announced, at)
			mu.Unlock()
		}),
	)
	require.NoError(t, err)

	require.NoError(t, ticker.Start(context.Background()))
	assert.True(t, ticker.IsRunning())
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, ticker.Stop(stopCtx))
	assert.False(t, ticker.IsRunning())

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, announced)
}

func TestIntervalTicker_WaitsWithoutRunImmediately(t *testing.T) {
	var calls atomic.Int32
	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "products", Interval: time.Hour},
		func(ctx context.Context) error { calls.Add(1); return nil },
		zaptest.NewLogger(t),
	)
	require.NoError(t, err)

	require.NoError(t, ticker.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, ticker.Stop(context.Background()))

	assert.Zero(t, calls.Load())
}

func TestIntervalTicker_NeverOverlaps(t *testing.T) {
	var active, maxActive, calls atomic.Int32
	job := func(ctx context.Context) error {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		calls.Add(1)
		// a run longer than the interval
		time.Sleep(25 * time.Millisecond)
		return nil
	}

	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "products", Interval: 5 * time.Millisecond, RunImmediately: true},
		job,
		zaptest.NewLogger(t),
	)
	require.NoError(t, err)
	require.NoError(t, ticker.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, ticker.Stop(context.Background()))

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestIntervalTicker_SurvivesErrorsAndPanics(t *testing.T) {
	var calls atomic.Int32
	job := func(ctx context.Context) error {
		switch calls.Add(1) {
		case 1:
			return errors.New("feed unavailable")
		case 2:
			panic("nil storefront")
		default:
			return nil
		}
	}

	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "products", Interval: 5 * time.Millisecond, RunImmediately: true},
		job,
		zaptest.NewLogger(t),
	)
	require.NoError(t, err)
	require.NoError(t, ticker.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, ticker.Stop(context.Background()))

	runs, _ := ticker.Runs()
	assert.GreaterOrEqual(t, runs, 3)
}

func TestIntervalTicker_StopTimesOutOnStuckJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	job := func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}

	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "orders", Interval: time.Hour, RunImmediately: true},
		job,
		// the loop outlives the test, so it must not log through t
		zap.NewNop(),
	)
	require.NoError(t, err)
	require.NoError(t, ticker.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, ticker.Stop(ctx), ErrStopTimeout)

	close(release)
}

func TestIntervalTicker_StartAndStopAreIdempotent(t *testing.T) {
	ticker, err := NewIntervalTicker(
		TickerConfig{Name: "orders", Interval: time.Hour},
		func(ctx context.Context) error { return nil },
		nil,
	)
	require.NoError(t, err)

	require.NoError(t, ticker.Stop(context.Background()))
	require.NoError(t, ticker.Start(context.Background()))
	require.NoError(t, ticker.Start(context.Background()))
	require.NoError(t, ticker.Stop(context.Background()))
	require.NoError(t, ticker.Stop(context.Background()))
}
