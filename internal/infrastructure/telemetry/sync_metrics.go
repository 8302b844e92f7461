package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Triple-C-BE/wimood/internal/domain/integration"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is nil")

// MeterName is the instrumentation scope of the sync metrics.
const MeterName = "github.com/Triple-C-BE/wimood/sync"

// SyncMetrics holds the counters reported after every tick.
type SyncMetrics struct {
	productsCreated     *Counter
	productsUpdated     *Counter
	productsDeactivated *Counter
	productsFailed      *Counter
	orderTransitions    *Counter
	ordersSubmitted     *Counter
	anomalies           *Counter
	httpRetries         *Counter
	tickDuration        *Histogram
}

// NewSyncMetrics registers the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	counters := []struct {
		target      **Counter
		name        string
		description string
	}{
		{&m.productsCreated, "wimood.products.created", "Storefront products created from the feed"},
		{&m.productsUpdated, "wimood.products.updated", "Storefront products updated from the feed"},
		{&m.productsDeactivated, "wimood.products.deactivated", "Storefront products moved to draft"},
		{&m.productsFailed, "wimood.products.failed", "Items that failed during a sync tick"},
		{&m.orderTransitions, "wimood.orders.transitions", "Tracked order status transitions"},
		{&m.ordersSubmitted, "wimood.orders.submitted", "Dropship orders submitted to the supplier"},
		{&m.anomalies, "wimood.anomalies", "Reconciliation anomalies"},
		{&m.httpRetries, "wimood.http.retries", "Outbound request retries"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, "{item}")
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	h, err := NewHistogram(meter, HistogramOpts{
		Name:        "wimood.sync.tick.duration",
		Description: "Duration of a sync tick",
		Unit:        "s",
		Boundaries:  TickDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	m.tickDuration = h

	return m, nil
}

// RecordRun adds the counters of a finished run.
func (m *SyncMetrics) RecordRun(ctx context.Context, run *integration.SyncRun) {
	if m == nil || run == nil {
		return
	}
	kind := AttrKind.String(string(run.Kind))
	c := run.Counters

	addIfPositive(ctx, m.productsCreated, c.Created, kind)
	addIfPositive(ctx, m.productsUpdated, c.Updated, kind)
	addIfPositive(ctx, m.productsDeactivated, c.Deactivated, kind)
	addIfPositive(ctx, m.productsFailed, c.Failed, kind)
	addIfPositive(ctx, m.orderTransitions, c.Transitions, kind)
	addIfPositive(ctx, m.ordersSubmitted, c.Submitted, kind)
	addIfPositive(ctx, m.anomalies, c.Anomalies, kind)

	if run.IsFinished() {
		m.tickDuration.RecordDuration(ctx, run.Duration(), kind, AttrRunStatus.String(string(run.Status)))
	}
}

// RetryHook returns a callback for the resilient request client that counts
// every retry by host and reason.
func (m *SyncMetrics) RetryHook() func(ctx context.Context, method, host string, retry int, reason string) {
	return func(ctx context.Context, method, host string, _ int, reason string) {
		if m == nil {
			return
		}
		m.httpRetries.Inc(ctx,
			AttrMethod.String(method),
			AttrHost.String(host),
			AttrReason.String(reason),
		)
	}
}

func addIfPositive(ctx context.Context, c *Counter, n int, attrs ...attribute.KeyValue) {
	if n > 0 {
		c.Add(ctx, int64(n), attrs...)
	}
}
