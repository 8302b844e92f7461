package ecommerce

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
)

// wimoodProduct is one <product> element of the XML feed
type wimoodProduct struct {
	ProductID   string `xml:"product_id"`
	ProductCode string `xml:"product_code"`
	ProductName string `xml:"product_name"`
	Brand       string `xml:"brand"`
	EAN         string `xml:"ean"`
	MSRP        string `xml:"msrp"`
	Price       string `xml:"prijs"`
	Stock       string `xml:"stock"`
}

// wimoodOrderRequest is the body of POST /orders
type wimoodOrderRequest struct {
	Shipment        bool                        `json:"shipment"`
	Payment         bool                        `json:"payment"`
	Dropshipment    bool                        `json:"dropshipment"`
	Split           bool                        `json:"split"`
	Reference       string                      `json:"reference"`
	Remark          string                      `json:"remark,omitempty"`
	CustomerAddress fulfillment.DropshipAddress `json:"customer_address"`
	Order           []wimoodOrderLine           `json:"order"`
}

type wimoodOrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// wimoodOrderCreated carries the new order number under one of three keys
type wimoodOrderCreated struct {
	OrderNumber wimoodID `json:"order_number"`
	OrderID     wimoodID `json:"order_id"`
	ID          wimoodID `json:"id"`
}

type wimoodOrderStatus struct {
	Status        string `json:"status"`
	TrackAndTrace *struct {
		Code string `json:"code"`
		URL  string `json:"url"`
	} `json:"track_and_trace"`
}

// wimoodID accepts an id sent as a JSON number or string
type wimoodID int64

func (id *wimoodID) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*id = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %s: %w", data, err)
	}
	*id = wimoodID(n)
	return nil
}
