package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/domain/integration"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/logger"
)

// Dropship operations recorded on item failures
const (
	OpSubmit         = "submit"
	OpSupplierPoll   = "supplier_poll"
	OpSupplierAction = "supplier_action"
)

type dropshipDeps struct {
	storefront fulfillment.DropshipStorefront
	supplier   fulfillment.SupplierOrders
	feed       catalog.SupplierFeed
}

// EnableDropship turns on the dropship step of every order tick. The feed
// resolves storefront SKUs to supplier product ids.
func (s *OrderTrackingService) EnableDropship(storefront fulfillment.DropshipStorefront, supplier fulfillment.SupplierOrders, feed catalog.SupplierFeed) {
	s.dropship = &dropshipDeps{
		storefront: storefront,
		supplier:   supplier,
		feed:       feed,
	}
}

// ProcessDropship submits orders not yet handed to the supplier, then
// polls submitted orders and mirrors the supplier status on the
// storefront. Each order fails on its own.
func (s *OrderTrackingService) ProcessDropship(ctx context.Context, run *integration.SyncRun) error {
	if s.dropship == nil {
		return nil
	}
	open, err := s.orders.FindDropshipOpen(ctx)
	if err != nil {
		return fmt.Errorf("load dropship orders: %w", err)
	}

	var toSubmit, toPoll []*fulfillment.TrackedOrder
	for _, order := range open {
		switch {
		case order.AwaitingSubmission():
			toSubmit = append(toSubmit, order)
		case order.AwaitingSupplier():
			toPoll = append(toPoll, order)
		}
	}

	if len(toSubmit) > 0 {
		productIDs, err := s.supplierProductIDs(ctx)
		if err != nil {
			for _, order := range toSubmit {
				s.fail(ctx, run, order.ID, OpSubmit, err)
			}
		} else {
			for _, order := range toSubmit {
				s.submit(ctx, run, order, productIDs)
			}
		}
	}

	for _, order := range toPoll {
		s.pollSupplier(ctx, run, order)
	}
	return nil
}

// supplierProductIDs maps normalized SKUs to supplier product ids
func (s *OrderTrackingService) supplierProductIDs(ctx context.Context) (map[string]string, error) {
	products, err := s.dropship.feed.FetchProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load supplier products: %w", err)
	}
	ids := make(map[string]string, len(products))
	for _, p := range products {
		ids[catalog.NormalizeSKU(p.SKU)] = p.ProductID
	}
	return ids, nil
}

func (s *OrderTrackingService) submit(ctx context.Context, run *integration.SyncRun, order *fulfillment.TrackedOrder, productIDs map[string]string) {
	log := logger.L(ctx).With(zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))

	details, err := s.dropship.storefront.FetchOrderDetails(ctx, order.ID)
	if err != nil {
		s.fail(ctx, run, order.ID, OpSubmit, err)
		return
	}

	var items []fulfillment.DropshipItem
	for _, line := range details.LineItems {
		sku := catalog.NormalizeSKU(line.SKU)
		if sku == "" {
			continue
		}
		productID, ok := productIDs[sku]
		if !ok {
			log.Debug("Line item is not a supplier product", zap.String("sku", sku))
			continue
		}
		qty := line.Quantity
		if qty <= 0 {
			qty = 1
		}
		items = append(items, fulfillment.DropshipItem{ProductID: productID, Quantity: qty})
	}

	if len(items) == 0 {
		order.MarkSubmitted(0, s.now())
		if err := s.orders.Save(ctx, order); err != nil {
			s.fail(ctx, run, order.ID, OpSubmit, err)
			return
		}
		run.Counters.Skipped++
		log.Info("Order holds no supplier products, nothing to submit")
		return
	}
	if details.ShippingAddress == nil {
		s.fail(ctx, run, order.ID, OpSubmit, fulfillment.ErrMissingShippingAddress)
		return
	}

	supplierID, err := s.dropship.supplier.CreateOrder(ctx, fulfillment.DropshipOrder{
		Reference: fulfillment.OrderReference(order.OrderNumber),
		Address:   fulfillment.NewDropshipAddress(*details.ShippingAddress),
		Items:     items,
	})
	if err != nil {
		s.fail(ctx, run, order.ID, OpSubmit, err)
		return
	}

	order.MarkSubmitted(supplierID, s.now())
	if err := s.orders.Save(ctx, order); err != nil {
		log.Error("Supplier order created but not recorded",
			zap.Int64("supplier_order_id", supplierID),
			zap.Error(err),
		)
		s.fail(ctx, run, order.ID, OpSubmit, err)
		return
	}
	run.Counters.Submitted++
	log.Info("Submitted dropship order",
		zap.Int64("supplier_order_id", supplierID),
		zap.Int("items", len(items)),
	)
}

func (s *OrderTrackingService) pollSupplier(ctx context.Context, run *integration.SyncRun, order *fulfillment.TrackedOrder) {
	log := logger.L(ctx).With(
		zap.String("order_id", order.ID),
		zap.Int64("supplier_order_id", order.SupplierOrderID),
	)

	state, err := s.dropship.supplier.FetchOrder(ctx, order.SupplierOrderID)
	if err != nil {
		s.fail(ctx, run, order.ID, OpSupplierPoll, err)
		return
	}

	action := order.NextDropshipAction(state.Status)
	if err := s.applyDropshipAction(ctx, order, action, state); err != nil {
		// The status stays unacknowledged so the action is retried.
		s.fail(ctx, run, order.ID, OpSupplierAction, fmt.Errorf("%s: %w", action, err))
		return
	}

	now := s.now()
	var outcome fulfillment.Outcome
	switch action {
	case fulfillment.ActionFulfill, fulfillment.ActionDeliver:
		outcome = order.ApplyObservation(fulfillment.Observation{
			Status:         fulfillment.StatusFulfilled,
			TrackingNumber: state.TrackingNumber,
			TrackingURL:    state.TrackingURL,
		}, now)
	case fulfillment.ActionCancel:
		outcome = order.ApplyObservation(fulfillment.Observation{Status: fulfillment.StatusCancelled}, now)
	}
	if state.Status == fulfillment.SupplierCancelled && order.Status == fulfillment.StatusFulfilled {
		run.Counters.Anomalies++
		log.Warn("Supplier cancelled an order that is already fulfilled, storefront left unchanged")
	}

	previous := order.SupplierStatus
	order.AcknowledgeSupplierStatus(state.Status, now)
	if err := s.orders.Save(ctx, order); err != nil {
		s.fail(ctx, run, order.ID, OpSupplierPoll, err)
		return
	}

	if action != fulfillment.ActionNone {
		run.Counters.SupplierActions++
	}
	if outcome.Transitioned {
		run.Counters.Transitions++
	}
	if action != fulfillment.ActionNone || previous != state.Status {
		log.Info("Supplier status applied",
			zap.String("from", previous.String()),
			zap.String("to", state.Status.String()),
			zap.String("action", action.String()),
			zap.String("fulfillment_status", order.Status.String()),
		)
	}
}

func (s *OrderTrackingService) applyDropshipAction(ctx context.Context, order *fulfillment.TrackedOrder, action fulfillment.DropshipAction, state fulfillment.SupplierOrderState) error {
	store := s.dropship.storefront
	switch action {
	case fulfillment.ActionMarkInProgress:
		return store.MarkInProgress(ctx, order.ID)
	case fulfillment.ActionFulfill:
		return store.CreateFulfillment(ctx, order.ID, state.TrackingNumber, state.TrackingURL)
	case fulfillment.ActionDeliver:
		if order.Status != fulfillment.StatusFulfilled {
			if err := store.CreateFulfillment(ctx, order.ID, state.TrackingNumber, state.TrackingURL); err != nil {
				return err
			}
		}
		return store.MarkDelivered(ctx, order.ID)
	case fulfillment.ActionCancel:
		return store.CancelOrder(ctx, order.ID)
	}
	return nil
}
