package ecommerce

import (
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Shopify Admin REST payloads
// ---------------------------------------------------------------------------

type shopifyProductsResponse struct {
	Products []shopifyProduct `json:"products"`
}

type shopifyProductResponse struct {
	Product shopifyProduct `json:"product"`
}

type shopifyProduct struct {
	ID       int64            `json:"id"`
	Title    string           `json:"title"`
	BodyHTML string           `json:"body_html"`
	Vendor   string           `json:"vendor"`
	Status   string           `json:"status"`
	Tags     string           `json:"tags"`
	Variants []shopifyVariant `json:"variants"`
	Images   []shopifyImage   `json:"images"`
}

type shopifyVariant struct {
	ID                int64           `json:"id"`
	SKU               string          `json:"sku"`
	Price             decimal.Decimal `json:"price"`
	Barcode           string          `json:"barcode"`
	InventoryItemID   int64           `json:"inventory_item_id"`
	InventoryQuantity int             `json:"inventory_quantity"`
}

type shopifyImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src"`
}

type shopifyMetafield struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      string `json:"type"`
}

// shopifyProductWrite is the body of product create and update calls.
// Pointer fields are omitted when nil so updates stay partial.
type shopifyProductWrite struct {
	ID         int64                 `json:"id,omitempty"`
	Title      *string               `json:"title,omitempty"`
	BodyHTML   *string               `json:"body_html,omitempty"`
	Vendor     string                `json:"vendor,omitempty"`
	Tags       string                `json:"tags,omitempty"`
	Status     *string               `json:"status,omitempty"`
	Variants   []shopifyVariantWrite `json:"variants,omitempty"`
	Images     []shopifyImage        `json:"images,omitempty"`
	Metafields []shopifyMetafield    `json:"metafields,omitempty"`
}

type shopifyVariantWrite struct {
	ID                  int64            `json:"id,omitempty"`
	SKU                 string           `json:"sku,omitempty"`
	Price               *decimal.Decimal `json:"price,omitempty"`
	Barcode             string           `json:"barcode,omitempty"`
	InventoryManagement string           `json:"inventory_management,omitempty"`
}

type shopifyInventoryItemsResponse struct {
	InventoryItems []shopifyInventoryItem `json:"inventory_items"`
}

type shopifyInventoryItem struct {
	ID   int64               `json:"id"`
	Cost decimal.NullDecimal `json:"cost"`
}

type shopifyInventoryItemWrite struct {
	ID   int64           `json:"id"`
	Cost decimal.Decimal `json:"cost"`
}

type shopifyLocationsResponse struct {
	Locations []shopifyLocation `json:"locations"`
}

type shopifyLocation struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type shopifyInventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

type shopifyOrdersResponse struct {
	Orders []shopifyOrder `json:"orders"`
}

type shopifyOrderResponse struct {
	Order shopifyOrder `json:"order"`
}

type shopifyOrder struct {
	ID                int64                `json:"id"`
	Name              string               `json:"name"`
	OrderNumber       int64                `json:"order_number"`
	FulfillmentStatus *string              `json:"fulfillment_status"`
	CancelledAt       *string              `json:"cancelled_at"`
	CreatedAt         string               `json:"created_at"`
	Fulfillments      []shopifyFulfillment `json:"fulfillments"`
	LineItems         []shopifyLineItem    `json:"line_items"`
	ShippingAddress   *shopifyAddress      `json:"shipping_address"`
}

type shopifyLineItem struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type shopifyAddress struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Company     string `json:"company"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	Zip         string `json:"zip"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
}

type shopifyFulfillmentOrdersResponse struct {
	FulfillmentOrders []shopifyFulfillmentOrder `json:"fulfillment_orders"`
}

type shopifyFulfillmentOrder struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type shopifyFulfillmentsResponse struct {
	Fulfillments []shopifyFulfillment `json:"fulfillments"`
}

type shopifyFulfillmentWrite struct {
	LineItemsByFulfillmentOrder []shopifyFulfillmentOrderRef `json:"line_items_by_fulfillment_order"`
	TrackingInfo                *shopifyTrackingInfo         `json:"tracking_info,omitempty"`
	NotifyCustomer              bool                         `json:"notify_customer"`
}

type shopifyFulfillmentOrderRef struct {
	FulfillmentOrderID int64 `json:"fulfillment_order_id"`
}

type shopifyTrackingInfo struct {
	Number string `json:"number,omitempty"`
	URL    string `json:"url,omitempty"`
}

type shopifyFulfillment struct {
	ID              int64    `json:"id"`
	Status          string   `json:"status"`
	TrackingNumber  string   `json:"tracking_number"`
	TrackingNumbers []string `json:"tracking_numbers"`
	TrackingURL     string   `json:"tracking_url"`
}
