// Package integration holds the sync services: the catalog reconciler, the
// enrichment lookup, the order tracker and the status snapshot they publish.
package integration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/telemetry"
)

// RunRecorder receives every finished run, e.g. telemetry.SyncMetrics
type RunRecorder interface {
	RecordRun(ctx context.Context, run *integration.SyncRun)
}

// tickEnv is what both tickers share: where finished runs go and how time is read.
type tickEnv struct {
	runs    integration.SyncRunRepository
	metrics RunRecorder
	status  *StatusStore
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a sync service
type Option func(*tickEnv)

// WithRunRepository persists every run
func WithRunRepository(r integration.SyncRunRepository) Option {
	return func(e *tickEnv) { e.runs = r }
}

// WithRunRecorder reports every run to r
func WithRunRecorder(r RunRecorder) Option {
	return func(e *tickEnv) { e.metrics = r }
}

// WithStatusStore publishes every run to s
func WithStatusStore(s *StatusStore) Option {
	return func(e *tickEnv) { e.status = s }
}

// WithLogger sets the service logger
func WithLogger(l *zap.Logger) Option {
	return func(e *tickEnv) { e.logger = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *tickEnv) { e.now = now }
}

func newTickEnv(opts []Option) tickEnv {
	e := tickEnv{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// runTick opens a run, executes body inside a span with a tick-scoped
// logger, then publishes the finished run. A body error aborts the tick;
// it is recorded on the run and returned.
func (e *tickEnv) runTick(ctx context.Context, kind integration.SyncKind, body func(context.Context, *integration.SyncRun) error) (*integration.SyncRun, error) {
	run := integration.NewSyncRun(kind, e.now())
	tickID := run.ID.String()

	ctx, log := logger.WithTickID(ctx, e.logger, string(kind), tickID)
	ctx, span := telemetry.StartTickSpan(ctx, string(kind), tickID)
	defer span.End()
	log = logger.WithTraceContext(ctx, log)

	log.Info("Sync tick started")

	err := body(ctx, run)
	run.Finish(e.now(), err)

	c := run.Counters
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Sync tick aborted",
			zap.Error(err),
			zap.Duration("duration", run.Duration()),
		)
	} else {
		telemetry.SetAttributes(span,
			"sync.created", c.Created,
			"sync.updated", c.Updated,
			"sync.deactivated", c.Deactivated,
			"sync.failed", c.Failed,
			"sync.transitions", c.Transitions,
			"sync.submitted", c.Submitted,
		)
		log.Info("Sync tick complete",
			zap.String("status", string(run.Status)),
			zap.Duration("duration", run.Duration()),
			zap.Any("results", c),
		)
	}

	if e.runs != nil {
		if saveErr := e.runs.Save(ctx, run); saveErr != nil {
			log.Warn("Failed to persist sync run", zap.Error(saveErr))
		}
	}
	if e.metrics != nil {
		e.metrics.RecordRun(ctx, run)
	}
	if e.status != nil {
		e.status.UpdateStatus(run)
	}
	return run, err
}
