package integration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
)

// Order operations recorded on item failures
const (
	OpIngest = "ingest"
	OpPoll   = "poll"
)

// DefaultTrackingGrace is how long a fulfilled order without a tracking
// number keeps being polled
const DefaultTrackingGrace = 7 * 24 * time.Hour

// OrderTrackingService follows storefront orders until they are fulfilled
// or cancelled. Statuses only move forward. With dropship enabled it also
// hands new orders to the supplier and mirrors the supplier's progress.
type OrderTrackingService struct {
	tickEnv
	source        fulfillment.OrderSource
	orders        fulfillment.Repository
	trackingGrace time.Duration
	dropship      *dropshipDeps
}

// NewOrderTrackingService creates the tracker
func NewOrderTrackingService(source fulfillment.OrderSource, orders fulfillment.Repository, opts ...Option) *OrderTrackingService {
	return &OrderTrackingService{
		tickEnv:       newTickEnv(opts),
		source:        source,
		orders:        orders,
		trackingGrace: DefaultTrackingGrace,
	}
}

// SetTrackingGrace changes how long fulfilled orders without tracking are
// polled. Zero stops polling them at fulfillment.
func (s *OrderTrackingService) SetTrackingGrace(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.trackingGrace = d
}

// Tick ingests unfulfilled orders and polls every tracked open order
func (s *OrderTrackingService) Tick(ctx context.Context) error {
	_, err := s.runTick(ctx, integration.SyncKindOrders, s.Sync)
	s.publishCounts(ctx)
	return err
}

// Sync is one order tick: list, ingest, poll, then the dropship step
func (s *OrderTrackingService) Sync(ctx context.Context, run *integration.SyncRun) error {
	summaries, err := s.source.ListUnfulfilledOrders(ctx)
	if err != nil {
		return fmt.Errorf("list unfulfilled orders: %w", err)
	}
	s.Ingest(ctx, run, summaries)
	if err := s.PollUpdates(ctx, run); err != nil {
		return err
	}
	if s.dropship == nil {
		return nil
	}
	return s.ProcessDropship(ctx, run)
}

// Ingest stores every order not seen before as unfulfilled. Known orders
// are left untouched.
func (s *OrderTrackingService) Ingest(ctx context.Context, run *integration.SyncRun, summaries []fulfillment.OrderSummary) {
	log := logger.L(ctx)
	now := s.now()

	for _, summary := range summaries {
		if summary.ID == "" {
			run.Counters.Skipped++
			continue
		}
		order := fulfillment.NewTrackedOrder(summary.ID, summary.OrderNumber, now)
		if !summary.CreatedAt.IsZero() {
			order.CreatedAt = summary.CreatedAt
		}
		inserted, err := s.orders.InsertIfAbsent(ctx, order)
		if err != nil {
			s.fail(ctx, run, summary.ID, OpIngest, err)
			continue
		}
		if inserted {
			run.Counters.Ingested++
			log.Info("Tracking new order",
				zap.String("order_id", summary.ID),
				zap.String("order_number", summary.OrderNumber),
			)
		}
	}
}

// PollUpdates re-fetches every non-terminal order, and fulfilled orders
// still waiting for tracking, and applies forward transitions. A backward
// report is counted as an anomaly and ignored.
func (s *OrderTrackingService) PollUpdates(ctx context.Context, run *integration.SyncRun) error {
	open, err := s.orders.FindPollable(ctx, s.now().Add(-s.trackingGrace))
	if err != nil {
		return fmt.Errorf("load tracked orders: %w", err)
	}

	log := logger.L(ctx)
	for _, order := range open {
		obs, err := s.source.FetchOrderStatus(ctx, order.ID)
		if err != nil {
			s.fail(ctx, run, order.ID, OpPoll, err)
			continue
		}
		run.Counters.Polled++

		outcome := order.ApplyObservation(obs, s.now())
		if outcome.Anomaly != nil {
			run.Counters.Anomalies++
			log.Warn("Reconciliation anomaly, order status not applied",
				zap.String("order_id", order.ID),
				zap.String("current", string(outcome.Anomaly.From)),
				zap.String("reported", string(outcome.Anomaly.To)),
				zap.Error(outcome.Anomaly),
			)
		}
		if err := s.orders.Save(ctx, order); err != nil {
			s.fail(ctx, run, order.ID, OpPoll, err)
			continue
		}
		if outcome.Transitioned {
			run.Counters.Transitions++
			log.Info("Order status changed",
				zap.String("order_id", order.ID),
				zap.String("from", string(outcome.Previous)),
				zap.String("to", string(order.Status)),
			)
		}
		if outcome.TrackingCaptured {
			log.Info("Captured tracking number",
				zap.String("order_id", order.ID),
				zap.String("tracking_number", order.TrackingNumber),
			)
		}
	}
	return nil
}

func (s *OrderTrackingService) publishCounts(ctx context.Context) {
	if s.status == nil {
		return
	}
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		s.logger.Warn("Failed to count tracked orders", zap.Error(err))
		return
	}
	s.status.SetOrderCounts(counts)
}

func (s *OrderTrackingService) fail(ctx context.Context, run *integration.SyncRun, orderID, op string, err error) {
	run.RecordFailure(orderID, op, err)
	logger.L(ctx).Error("Order sync failed",
		zap.String("order_id", orderID),
		zap.String("operation", op),
		zap.Error(err),
	)
}
