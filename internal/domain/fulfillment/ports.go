package fulfillment

import (
	"context"
	"time"
)

// Repository is the durable order store
type Repository interface {
	// FindByID returns ErrOrderNotFound when the order is unknown
	FindByID(ctx context.Context, id string) (*TrackedOrder, error)
	// InsertIfAbsent stores the order unless its id already exists.
	// It reports whether a row was inserted.
	InsertIfAbsent(ctx context.Context, order *TrackedOrder) (bool, error)
	// Save writes status, tracking, dropship state and timestamps of an
	// existing order
	Save(ctx context.Context, order *TrackedOrder) error
	// FindPollable returns the orders the storefront is still asked about,
	// oldest first: every non-terminal order plus fulfilled orders without
	// tracking last changed at or after fulfilledSince.
	FindPollable(ctx context.Context, fulfilledSince time.Time) ([]*TrackedOrder, error)
	// FindDropshipOpen returns orders awaiting submission to the supplier
	// or a final supplier status, oldest first.
	FindDropshipOpen(ctx context.Context) ([]*TrackedOrder, error)
	// CountByStatus returns the number of orders per status
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}

// OrderSummary is an order as listed by the storefront
type OrderSummary struct {
	ID          string
	OrderNumber string
	CreatedAt   time.Time
}

// OrderSource is the storefront's order API
type OrderSource interface {
	// ListUnfulfilledOrders returns open orders that are not yet fulfilled
	ListUnfulfilledOrders(ctx context.Context) ([]OrderSummary, error)
	// FetchOrderStatus returns the current fulfillment state of one order
	FetchOrderStatus(ctx context.Context, id string) (Observation, error)
}

// SupplierOrders is the supplier's dropship order API
type SupplierOrders interface {
	// CreateOrder submits order and returns the supplier's order id
	CreateOrder(ctx context.Context, order DropshipOrder) (int64, error)
	// FetchOrder returns the supplier's current state of an order
	FetchOrder(ctx context.Context, id int64) (SupplierOrderState, error)
}

// DropshipStorefront is the storefront side of the dropship flow
type DropshipStorefront interface {
	// FetchOrderDetails returns line items and shipping address of an order
	FetchOrderDetails(ctx context.Context, id string) (OrderDetails, error)
	// MarkInProgress flags the order as being handled by the supplier
	MarkInProgress(ctx context.Context, id string) error
	// CreateFulfillment fulfills every open line with the given tracking
	CreateFulfillment(ctx context.Context, id, trackingNumber, trackingURL string) error
	// MarkDelivered records delivery on the order's latest fulfillment
	MarkDelivered(ctx context.Context, id string) error
	// CancelOrder cancels the order
	CancelOrder(ctx context.Context, id string) error
}
