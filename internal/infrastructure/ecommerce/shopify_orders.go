package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
)

// ListUnfulfilledOrders returns open orders that are not fulfilled yet
func (a *ShopifyAdapter) ListUnfulfilledOrders(ctx context.Context) ([]fulfillment.OrderSummary, error) {
	params := url.Values{
		"fulfillment_status": {"unfulfilled"},
		"status":             {"open"},
		"limit":              {strconv.Itoa(shopifyPageSize)},
	}
	var orders []fulfillment.OrderSummary

	next := a.config.BaseURL() + "/orders.json"
	for next != "" {
		resp, err := a.call(ctx, http.MethodGet, next, params, nil)
		if err != nil {
			return nil, fmt.Errorf("shopify: list orders: %w", err)
		}
		var page shopifyOrdersResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("shopify: decode orders: %w", err)
		}
		for _, o := range page.Orders {
			orders = append(orders, toOrderSummary(o))
		}
		next = nextPageURL(resp.Header.Get("Link"))
		params = nil
	}

	a.logger.Info("Fetched unfulfilled orders", zap.Int("count", len(orders)))
	return orders, nil
}

// FetchOrderStatus returns the fulfillment state and tracking of one order
func (a *ShopifyAdapter) FetchOrderStatus(ctx context.Context, id string) (fulfillment.Observation, error) {
	orderID, err := parseID(id)
	if err != nil {
		return fulfillment.Observation{}, fmt.Errorf("shopify: fetch order: %w", err)
	}
	resp, err := a.call(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%d.json", a.config.BaseURL(), orderID), nil, nil)
	if err != nil {
		return fulfillment.Observation{}, fmt.Errorf("shopify: fetch order %s: %w", id, err)
	}
	var body shopifyOrderResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return fulfillment.Observation{}, fmt.Errorf("shopify: decode order %s: %w", id, err)
	}
	return a.toObservation(body.Order), nil
}

func toOrderSummary(o shopifyOrder) fulfillment.OrderSummary {
	number := o.Name
	if number == "" && o.OrderNumber != 0 {
		number = strconv.FormatInt(o.OrderNumber, 10)
	}
	summary := fulfillment.OrderSummary{
		ID:          formatID(o.ID),
		OrderNumber: number,
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil {
		summary.CreatedAt = t
	}
	return summary
}

// toObservation maps an order to an observation. A fulfillment_status the
// adapter does not know leaves Status empty, which the order treats as no
// change.
func (a *ShopifyAdapter) toObservation(o shopifyOrder) fulfillment.Observation {
	var obs fulfillment.Observation

	if o.CancelledAt != nil && *o.CancelledAt != "" {
		obs.Status = fulfillment.StatusCancelled
	} else {
		raw := ""
		if o.FulfillmentStatus != nil {
			raw = *o.FulfillmentStatus
		}
		if status, ok := fulfillment.ParseStatus(raw); ok {
			obs.Status = status
		} else {
			a.logger.Warn("Unknown fulfillment status, keeping current state",
				zap.Int64("order_id", o.ID),
				zap.String("fulfillment_status", raw),
			)
		}
	}

	for _, f := range o.Fulfillments {
		number := strings.TrimSpace(f.TrackingNumber)
		if number == "" && len(f.TrackingNumbers) > 0 {
			number = strings.TrimSpace(f.TrackingNumbers[0])
		}
		if number != "" {
			obs.TrackingNumber = number
			obs.TrackingURL = f.TrackingURL
			break
		}
	}
	return obs
}
