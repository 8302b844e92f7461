package fulfillment

import (
	"regexp"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Supplier status
// ---------------------------------------------------------------------------

// SupplierStatus is what the supplier reports for a dropship order.
// Values outside the constants below are stored verbatim and ask for no
// storefront action.
type SupplierStatus string

const (
	SupplierPending   SupplierStatus = "pending"
	SupplierShipped   SupplierStatus = "shipped"
	SupplierDelivered SupplierStatus = "delivered"
	SupplierCancelled SupplierStatus = "cancelled"
)

// ParseSupplierStatus normalizes a status value from the supplier API
func ParseSupplierStatus(s string) SupplierStatus {
	return SupplierStatus(strings.ToLower(strings.TrimSpace(s)))
}

// String returns the string representation
func (s SupplierStatus) String() string {
	return string(s)
}

// DropshipAction is the storefront call a supplier status asks for
type DropshipAction int

const (
	ActionNone DropshipAction = iota
	ActionMarkInProgress
	ActionFulfill
	ActionDeliver
	ActionCancel
)

func (a DropshipAction) String() string {
	switch a {
	case ActionMarkInProgress:
		return "mark_in_progress"
	case ActionFulfill:
		return "fulfill"
	case ActionDeliver:
		return "deliver"
	case ActionCancel:
		return "cancel"
	default:
		return "none"
	}
}

// SupplierOrderState is one poll result of the supplier order API
type SupplierOrderState struct {
	Status         SupplierStatus
	TrackingNumber string
	TrackingURL    string
}

// ---------------------------------------------------------------------------
// Order lifecycle
// ---------------------------------------------------------------------------

// AwaitingSubmission is true for an open order not yet handed to the supplier
func (o *TrackedOrder) AwaitingSubmission() bool {
	return !o.DropshipSubmitted && !o.Status.IsTerminal()
}

// AwaitingSupplier is true while a submitted order has not been delivered
// or cancelled by the supplier. Orders submitted without supplier items
// carry no supplier id and are never polled.
func (o *TrackedOrder) AwaitingSupplier() bool {
	return o.DropshipSubmitted &&
		o.SupplierOrderID > 0 &&
		o.SupplierStatus != SupplierDelivered &&
		o.SupplierStatus != SupplierCancelled &&
		o.Status != StatusCancelled
}

// MarkSubmitted records the supplier order. An id of 0 marks an order
// that holds no supplier products.
func (o *TrackedOrder) MarkSubmitted(supplierOrderID int64, now time.Time) {
	o.DropshipSubmitted = true
	o.SupplierOrderID = supplierOrderID
	o.UpdatedAt = now
}

// NextDropshipAction returns the storefront call that brings the order in
// line with the supplier. Each action is asked for once: after it is
// acknowledged the same status maps to ActionNone.
func (o *TrackedOrder) NextDropshipAction(s SupplierStatus) DropshipAction {
	switch s {
	case SupplierCancelled:
		if !o.Status.IsTerminal() {
			return ActionCancel
		}
	case SupplierShipped:
		if o.Status != StatusFulfilled && o.Status != StatusCancelled {
			return ActionFulfill
		}
	case SupplierDelivered:
		if o.SupplierStatus != SupplierDelivered && o.Status != StatusCancelled {
			return ActionDeliver
		}
	case SupplierPending:
		if o.SupplierStatus != SupplierPending && o.Status == StatusUnfulfilled {
			return ActionMarkInProgress
		}
	}
	return ActionNone
}

// AcknowledgeSupplierStatus stores the last supplier status the storefront
// has been brought in line with. It reports whether the value changed.
func (o *TrackedOrder) AcknowledgeSupplierStatus(s SupplierStatus, now time.Time) bool {
	if o.SupplierStatus == s {
		return false
	}
	o.SupplierStatus = s
	o.UpdatedAt = now
	return true
}

// NeedsPolling reports whether the storefront is still asked about the
// order. Fulfilled orders without a tracking number stay polled for grace
// after their last change, since carriers often attach tracking later.
func (o *TrackedOrder) NeedsPolling(now time.Time, grace time.Duration) bool {
	switch o.Status {
	case StatusUnfulfilled, StatusPartial:
		return true
	case StatusFulfilled:
		return o.TrackingNumber == "" && grace > 0 && now.Sub(o.UpdatedAt) <= grace
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Dropship order
// ---------------------------------------------------------------------------

// ShippingAddress is the storefront's delivery address of an order
type ShippingAddress struct {
	FirstName   string
	LastName    string
	Company     string
	Address1    string
	Address2    string
	Zip         string
	City        string
	CountryCode string
}

// LineItem is one storefront order line
type LineItem struct {
	SKU      string
	Quantity int
}

// OrderDetails is the part of a storefront order needed to submit it
type OrderDetails struct {
	ID              string
	OrderNumber     string
	LineItems       []LineItem
	ShippingAddress *ShippingAddress
}

// DropshipAddress is the supplier's customer address format
type DropshipAddress struct {
	Company       string `json:"company"`
	ContactPerson string `json:"contact_person"`
	Street        string `json:"street"`
	HouseNumber   string `json:"housenumber"`
	Postcode      string `json:"postcode"`
	City          string `json:"city"`
	Country       string `json:"country"`
}

// DropshipItem is one supplier product in a dropship order
type DropshipItem struct {
	ProductID string
	Quantity  int
}

// DropshipOrder is submitted to the supplier, who ships it to the customer
type DropshipOrder struct {
	Reference string
	Address   DropshipAddress
	Items     []DropshipItem
}

// houseNumberSuffix matches "Streetname 123" and "Streetname 123a"
var houseNumberSuffix = regexp.MustCompile(`^(.+?)\s+(\d+\S*)$`)

// NewDropshipAddress splits address1 into street and house number. The
// optional address2 is appended to the house number. When address1 holds
// no number it is used as the street and address2 as the house number.
func NewDropshipAddress(a ShippingAddress) DropshipAddress {
	address1 := strings.TrimSpace(a.Address1)
	address2 := strings.TrimSpace(a.Address2)

	street, number := address1, address2
	if m := houseNumberSuffix.FindStringSubmatch(address1); m != nil {
		street, number = m[1], m[2]
		if address2 != "" {
			number += " " + address2
		}
	}

	return DropshipAddress{
		Company:       strings.TrimSpace(a.Company),
		ContactPerson: strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName)),
		Street:        street,
		HouseNumber:   number,
		Postcode:      strings.TrimSpace(a.Zip),
		City:          strings.TrimSpace(a.City),
		Country:       strings.TrimSpace(a.CountryCode),
	}
}

// OrderReference is the order number without the storefront's "#" prefix
func OrderReference(orderNumber string) string {
	return strings.TrimPrefix(strings.TrimSpace(orderNumber), "#")
}
