package fulfillment

import (
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the fulfillment state of a storefront order
type Status string

const (
	StatusUnfulfilled Status = "unfulfilled"
	StatusPartial     Status = "partial"
	StatusFulfilled   Status = "fulfilled"
	StatusCancelled   Status = "cancelled"
)

// rank orders the forward path. Cancelled sits outside it.
var rank = map[Status]int{
	StatusUnfulfilled: 0,
	StatusPartial:     1,
	StatusFulfilled:   2,
}

// ParseStatus maps a storefront fulfillment_status value to a Status.
// The storefront reports unfulfilled orders as an empty value.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "unfulfilled":
		return StatusUnfulfilled, true
	case "partial", "partially_fulfilled":
		return StatusPartial, true
	case "fulfilled":
		return StatusFulfilled, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	default:
		return "", false
	}
}

// IsValid returns true if the status is known
func (s Status) IsValid() bool {
	_, ok := rank[s]
	return ok || s == StatusCancelled
}

// IsTerminal returns true for states no transition leaves
func (s Status) IsTerminal() bool {
	return s == StatusFulfilled || s == StatusCancelled
}

// CanTransitionTo reports whether moving from s to next is a forward move.
// Staying in the same state is not a transition.
func (s Status) CanTransitionTo(next Status) bool {
	if !s.IsValid() || !next.IsValid() || s == next || s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return rank[next] > rank[s]
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// NonTerminalStatuses lists the states that are still polled
func NonTerminalStatuses() []Status {
	return []Status{StatusUnfulfilled, StatusPartial}
}

// ---------------------------------------------------------------------------
// TrackedOrder
// ---------------------------------------------------------------------------

// TrackedOrder is a storefront order followed until it is fulfilled or
// cancelled. Orders are never deleted.
type TrackedOrder struct {
	ID             string
	OrderNumber    string
	Status         Status
	TrackingNumber string
	TrackingURL    string
	// DropshipSubmitted is set once the order was handed to the supplier,
	// or found to hold no supplier products.
	DropshipSubmitted bool
	SupplierOrderID   int64
	// SupplierStatus is the last supplier status acted upon
	SupplierStatus SupplierStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastCheckedAt  time.Time
}

// NewTrackedOrder creates an order first seen as unfulfilled
func NewTrackedOrder(id, orderNumber string, now time.Time) *TrackedOrder {
	return &TrackedOrder{
		ID:            id,
		OrderNumber:   orderNumber,
		Status:        StatusUnfulfilled,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastCheckedAt: now,
	}
}

// Observation is what the storefront currently reports for an order
type Observation struct {
	Status         Status
	TrackingNumber string
	TrackingURL    string
}

// Outcome describes what ApplyObservation did
type Outcome struct {
	Previous         Status
	Transitioned     bool
	TrackingCaptured bool
	// Anomaly is set when the observation would move the order backward.
	Anomaly *AnomalyError
}

// Changed reports whether the order must be persisted beyond its check time
func (o Outcome) Changed() bool {
	return o.Transitioned || o.TrackingCaptured
}

// ApplyObservation folds a storefront observation into the order. Forward
// transitions are applied; backward ones are reported as an anomaly and
// ignored. The tracking number is captured the first time it appears and
// is never overwritten.
func (o *TrackedOrder) ApplyObservation(obs Observation, now time.Time) Outcome {
	out := Outcome{Previous: o.Status}
	o.LastCheckedAt = now

	switch {
	case obs.Status == o.Status || !obs.Status.IsValid():
	case o.Status.CanTransitionTo(obs.Status):
		o.Status = obs.Status
		out.Transitioned = true
	default:
		out.Anomaly = &AnomalyError{
			OrderID: o.ID,
			From:    o.Status,
			To:      obs.Status,
		}
	}

	if o.TrackingNumber == "" && strings.TrimSpace(obs.TrackingNumber) != "" {
		o.TrackingNumber = strings.TrimSpace(obs.TrackingNumber)
		o.TrackingURL = obs.TrackingURL
		out.TrackingCaptured = true
	}

	if out.Changed() {
		o.UpdatedAt = now
	}
	return out
}
