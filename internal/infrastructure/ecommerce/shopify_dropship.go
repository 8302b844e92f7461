package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
)

// dropshipStatusKey is the order metafield that mirrors supplier progress
const dropshipStatusKey = "dropship_status"

// openFulfillmentOrder lists the fulfillment order states that still hold
// unfulfilled lines
var openFulfillmentOrder = map[string]bool{
	"open":        true,
	"in_progress": true,
	"scheduled":   true,
}

// FetchOrderDetails returns the line items and shipping address of an order
func (a *ShopifyAdapter) FetchOrderDetails(ctx context.Context, id string) (fulfillment.OrderDetails, error) {
	orderID, err := parseID(id)
	if err != nil {
		return fulfillment.OrderDetails{}, fmt.Errorf("shopify: fetch order: %w", err)
	}
	resp, err := a.call(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%d.json", a.config.BaseURL(), orderID), nil, nil)
	if err != nil {
		return fulfillment.OrderDetails{}, fmt.Errorf("shopify: fetch order %s: %w", id, err)
	}
	var body shopifyOrderResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return fulfillment.OrderDetails{}, fmt.Errorf("shopify: decode order %s: %w", id, err)
	}

	o := body.Order
	details := fulfillment.OrderDetails{
		ID:          formatID(o.ID),
		OrderNumber: toOrderSummary(o).OrderNumber,
		LineItems:   make([]fulfillment.LineItem, 0, len(o.LineItems)),
	}
	for _, li := range o.LineItems {
		details.LineItems = append(details.LineItems, fulfillment.LineItem{SKU: li.SKU, Quantity: li.Quantity})
	}
	if addr := o.ShippingAddress; addr != nil {
		details.ShippingAddress = &fulfillment.ShippingAddress{
			FirstName:   addr.FirstName,
			LastName:    addr.LastName,
			Company:     addr.Company,
			Address1:    addr.Address1,
			Address2:    addr.Address2,
			Zip:         addr.Zip,
			City:        addr.City,
			CountryCode: addr.CountryCode,
		}
	}
	return details, nil
}

// MarkInProgress records on the order that the supplier is handling it
func (a *ShopifyAdapter) MarkInProgress(ctx context.Context, id string) error {
	orderID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("shopify: mark in progress: %w", err)
	}
	body := map[string]any{"metafield": shopifyMetafield{
		Namespace: shopifyMetafieldNamespace,
		Key:       dropshipStatusKey,
		Value:     "in_progress",
		Type:      "single_line_text_field",
	}}
	if _, err := a.call(ctx, http.MethodPost, fmt.Sprintf("%s/orders/%d/metafields.json", a.config.BaseURL(), orderID), nil, body); err != nil {
		return fmt.Errorf("shopify: mark order %s in progress: %w", id, err)
	}
	return nil
}

// CreateFulfillment fulfills every open fulfillment order of the order with
// the given tracking. An order without open lines is already fulfilled and
// left alone.
func (a *ShopifyAdapter) CreateFulfillment(ctx context.Context, id, trackingNumber, trackingURL string) error {
	orderID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("shopify: create fulfillment: %w", err)
	}
	resp, err := a.call(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%d/fulfillment_orders.json", a.config.BaseURL(), orderID), nil, nil)
	if err != nil {
		return fmt.Errorf("shopify: list fulfillment orders of %s: %w", id, err)
	}
	var list shopifyFulfillmentOrdersResponse
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return fmt.Errorf("shopify: decode fulfillment orders of %s: %w", id, err)
	}

	write := shopifyFulfillmentWrite{NotifyCustomer: true}
	for _, fo := range list.FulfillmentOrders {
		if openFulfillmentOrder[strings.ToLower(fo.Status)] {
			write.LineItemsByFulfillmentOrder = append(write.LineItemsByFulfillmentOrder, shopifyFulfillmentOrderRef{FulfillmentOrderID: fo.ID})
		}
	}
	if len(write.LineItemsByFulfillmentOrder) == 0 {
		a.logger.Info("Order has no open fulfillment orders", zap.String("order_id", id))
		return nil
	}
	if trackingNumber != "" || trackingURL != "" {
		write.TrackingInfo = &shopifyTrackingInfo{Number: trackingNumber, URL: trackingURL}
	}

	if _, err := a.call(ctx, http.MethodPost, a.config.BaseURL()+"/fulfillments.json", nil, map[string]any{"fulfillment": write}); err != nil {
		return fmt.Errorf("shopify: create fulfillment for %s: %w", id, err)
	}
	a.logger.Info("Created fulfillment",
		zap.String("order_id", id),
		zap.String("tracking_number", trackingNumber),
	)
	return nil
}

// MarkDelivered posts a delivered event on the order's latest fulfillment
func (a *ShopifyAdapter) MarkDelivered(ctx context.Context, id string) error {
	orderID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("shopify: mark delivered: %w", err)
	}
	resp, err := a.call(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%d/fulfillments.json", a.config.BaseURL(), orderID), nil, nil)
	if err != nil {
		return fmt.Errorf("shopify: list fulfillments of %s: %w", id, err)
	}
	var list shopifyFulfillmentsResponse
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return fmt.Errorf("shopify: decode fulfillments of %s: %w", id, err)
	}
	if len(list.Fulfillments) == 0 {
		return fmt.Errorf("shopify: order %s has no fulfillment to mark delivered", id)
	}

	latest := list.Fulfillments[len(list.Fulfillments)-1]
	eventURL := fmt.Sprintf("%s/orders/%d/fulfillments/%d/events.json", a.config.BaseURL(), orderID, latest.ID)
	if _, err := a.call(ctx, http.MethodPost, eventURL, nil, map[string]any{"event": map[string]string{"status": "delivered"}}); err != nil {
		return fmt.Errorf("shopify: mark order %s delivered: %w", id, err)
	}
	return nil
}

// CancelOrder cancels the order
func (a *ShopifyAdapter) CancelOrder(ctx context.Context, id string) error {
	orderID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("shopify: cancel order: %w", err)
	}
	if _, err := a.call(ctx, http.MethodPost, fmt.Sprintf("%s/orders/%d/cancel.json", a.config.BaseURL(), orderID), nil, map[string]any{}); err != nil {
		return fmt.Errorf("shopify: cancel order %s: %w", id, err)
	}
	a.logger.Info("Cancelled order", zap.String("order_id", id))
	return nil
}

// CheckConnection verifies the store url and access token
func (a *ShopifyAdapter) CheckConnection(ctx context.Context) error {
	resp, err := a.call(ctx, http.MethodGet, a.config.BaseURL()+"/shop.json", nil, nil)
	if err != nil {
		return connectionError("shopify", err)
	}
	var body struct {
		Shop *struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body.Shop == nil {
		return errors.New("shopify: connection check: unexpected shop.json response")
	}
	a.logger.Info("Connected to Shopify", zap.String("shop", body.Shop.Name))
	return nil
}

var _ fulfillment.DropshipStorefront = (*ShopifyAdapter)(nil)
