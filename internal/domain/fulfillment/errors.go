package fulfillment

import (
	"errors"
	"fmt"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

var (
	ErrOrderNotFound          = errors.New("fulfillment: order not found")
	ErrInvalidOrder           = errors.New("fulfillment: invalid order")
	ErrMissingShippingAddress = errors.New("fulfillment: order has no shipping address")
)

// AnomalyError is an observed status that would move an order backward
type AnomalyError struct {
	OrderID string
	From    Status
	To      Status
}

func (e *AnomalyError) Error() string {
	return fmt.Sprintf("fulfillment: order %s reported %s after %s, transition ignored", e.OrderID, e.To, e.From)
}

func (e *AnomalyError) Unwrap() error {
	return shared.ErrReconciliationAnomaly
}
