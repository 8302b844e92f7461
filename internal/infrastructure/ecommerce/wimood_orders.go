package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// WimoodOrders implements fulfillment.SupplierOrders over the Wimood REST
// order API
type WimoodOrders struct {
	config *WimoodOrderConfig
	client *httpclient.Client
	logger *zap.Logger
}

// NewWimoodOrders creates a new order API adapter
func NewWimoodOrders(config *WimoodOrderConfig, client *httpclient.Client, logger *zap.Logger) (*WimoodOrders, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("wimood orders: http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WimoodOrders{
		config: config,
		client: client,
		logger: logger.Named("wimood_orders"),
	}, nil
}

// CreateOrder submits a dropship order and returns the Wimood order number.
// The request is sent once: a failed POST is never resent.
func (w *WimoodOrders) CreateOrder(ctx context.Context, order fulfillment.DropshipOrder) (int64, error) {
	req := wimoodOrderRequest{
		Shipment:        true,
		Payment:         true,
		Dropshipment:    true,
		Split:           true,
		Reference:       order.Reference,
		Remark:          w.config.Remark,
		CustomerAddress: order.Address,
		Order:           make([]wimoodOrderLine, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		productID, err := strconv.ParseInt(item.ProductID, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: product id %q is not numeric", fulfillment.ErrInvalidOrder, item.ProductID)
		}
		req.Order = append(req.Order, wimoodOrderLine{ProductID: productID, Quantity: item.Quantity})
	}
	if len(req.Order) == 0 {
		return 0, fmt.Errorf("%w: no items", fulfillment.ErrInvalidOrder)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("wimood orders: encode order %s: %w", order.Reference, err)
	}

	w.logger.Info("Creating dropship order",
		zap.String("reference", order.Reference),
		zap.Int("items", len(req.Order)),
	)
	resp, err := w.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    w.config.OrdersURL(),
		Header: w.header(),
		Body:   payload,
	})
	if err != nil {
		return 0, fmt.Errorf("wimood orders: create %s: %w", order.Reference, err)
	}

	var created wimoodOrderCreated
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return 0, fmt.Errorf("wimood orders: decode created order %s: %w", order.Reference, err)
	}
	id := int64(created.OrderNumber)
	if id == 0 {
		id = int64(created.OrderID)
	}
	if id == 0 {
		id = int64(created.ID)
	}
	if id == 0 {
		return 0, fmt.Errorf("wimood orders: response for %s holds no order id", order.Reference)
	}

	w.logger.Info("Dropship order created", zap.String("reference", order.Reference), zap.Int64("wimood_order_id", id))
	return id, nil
}

// FetchOrder returns the status and track and trace of a Wimood order
func (w *WimoodOrders) FetchOrder(ctx context.Context, id int64) (fulfillment.SupplierOrderState, error) {
	resp, err := w.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/%d", w.config.OrdersURL(), id),
		Header: w.header(),
	})
	if err != nil {
		return fulfillment.SupplierOrderState{}, fmt.Errorf("wimood orders: fetch %d: %w", id, err)
	}

	var body wimoodOrderStatus
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return fulfillment.SupplierOrderState{}, fmt.Errorf("wimood orders: decode %d: %w", id, err)
	}
	state := fulfillment.SupplierOrderState{Status: fulfillment.ParseSupplierStatus(body.Status)}
	if body.TrackAndTrace != nil {
		state.TrackingNumber = body.TrackAndTrace.Code
		state.TrackingURL = body.TrackAndTrace.URL
	}
	return state, nil
}

// CheckConnection verifies the order API accepts the key. Any answer other
// than 401 or 403 means the API is reachable.
func (w *WimoodOrders) CheckConnection(ctx context.Context) error {
	_, err := w.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    w.config.OrdersURL(),
		Header: w.header(),
	})
	if err == nil {
		return nil
	}
	switch code := httpclient.StatusCodeOf(err); code {
	case 0, http.StatusUnauthorized, http.StatusForbidden:
		return connectionError("wimood orders", err)
	default:
		w.logger.Debug("Order API reachable", zap.Int("status", code))
		return nil
	}
}

func (w *WimoodOrders) header() http.Header {
	h := http.Header{}
	h.Set("X-AUTH-TOKEN", w.config.APIKey)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	return h
}

var _ fulfillment.SupplierOrders = (*WimoodOrders)(nil)
