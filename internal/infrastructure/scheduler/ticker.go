// Package scheduler runs the sync jobs on fixed intervals.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of scheduled work
type Job func(ctx context.Context) error

// NextRunFunc is told when the ticker will fire next
type NextRunFunc func(at time.Time)

// TickerConfig holds configuration for an interval ticker
type TickerConfig struct {
	// Name identifies the ticker in logs
	Name string

	// Interval is the pause between the end of one run and the start of the next
	Interval time.Duration

	// RunImmediately runs the job once at start instead of waiting an interval
	RunImmediately bool
}

// Validate checks the configuration
func (c TickerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: %s interval must be positive", ErrInvalidConfig, c.Name)
	}
	return nil
}

// IntervalTicker runs a job on a fixed interval. Runs never overlap: the
// next wait starts only after the current run returns.
type IntervalTicker struct {
	config TickerConfig
	job    Job
	onNext NextRunFunc
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	runs      int
	lastErr   error
}

// TickerOption configures an IntervalTicker
type TickerOption func(*IntervalTicker)

// WithNextRun registers a callback for the next scheduled run time
func WithNextRun(fn NextRunFunc) TickerOption {
	return func(t *IntervalTicker) {
		t.onNext = fn
	}
}

// NewIntervalTicker creates a new interval ticker
func NewIntervalTicker(config TickerConfig, job Job, logger *zap.Logger, opts ...TickerOption) (*IntervalTicker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("%w: %s has no job", ErrInvalidConfig, config.Name)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &IntervalTicker{
		config: config,
		job:    job,
		logger: logger.With(zap.String("ticker", config.Name)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Start starts the ticker loop
func (t *IntervalTicker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Ticker started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_immediately", t.config.RunImmediately),
	)
	return nil
}

// Stop stops the ticker and waits for an in-flight run to return
func (t *IntervalTicker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Ticker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s", ErrStopTimeout, t.config.Name)
	}
}

// IsRunning reports whether the loop is active
func (t *IntervalTicker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isRunning
}

// Runs returns how many times the job has run and the last job error
func (t *IntervalTicker) Runs() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runs, t.lastErr
}

func (t *IntervalTicker) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunImmediately {
		t.runOnce(ctx)
	}

	timer := time.NewTimer(t.config.Interval)
	defer timer.Stop()

	for {
		t.announceNext(time.Now().Add(t.config.Interval))
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.runOnce(ctx)
			timer.Reset(t.config.Interval)
		}
	}
}

func (t *IntervalTicker) announceNext(at time.Time) {
	if t.onNext != nil {
		t.onNext(at)
	}
	t.logger.Debug("Next run scheduled", zap.Time("at", at))
}

// runOnce executes the job. A panicking job is logged and the loop keeps going.
func (t *IntervalTicker) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
				t.logger.Error("Job panicked", zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		err = t.job(ctx)
	}()

	t.mu.Lock()
	t.runs++
	t.lastErr = err
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("Job finished with error", zap.Error(err))
	}
}
