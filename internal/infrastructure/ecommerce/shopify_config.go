package ecommerce

import (
	"errors"
	"strings"
	"time"
)

const (
	// ShopifyAPIVersion is the Admin REST API version the adapter speaks
	ShopifyAPIVersion = "2023-04"
	// ShopifyDefaultVendorTag marks products owned by this sync
	ShopifyDefaultVendorTag = "Wimood_Sync"
	// ShopifyDefaultCallInterval keeps the adapter under 2 requests per second
	ShopifyDefaultCallInterval = 500 * time.Millisecond
	// shopifyPageSize is the largest page the REST API returns
	shopifyPageSize = 250
	// shopifyMetafieldNamespace holds supplier attributes on created products
	shopifyMetafieldNamespace = "wimood"
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingStoreURL    = errors.New("shopify: store url is required")
	ErrShopifyConfigMissingAccessToken = errors.New("shopify: access token is required")
)

// ShopifyConfig holds configuration for the Shopify Admin API
type ShopifyConfig struct {
	// StoreURL is the shop base url, e.g. https://example.myshopify.com
	StoreURL string
	// AccessToken is the Admin API access token
	AccessToken string
	// VendorTag is written as vendor and tag on created products and
	// filters the product listing
	VendorTag string
	// APIVersion defaults to ShopifyAPIVersion
	APIVersion string
	// CallInterval is the minimum gap between two API calls
	CallInterval time.Duration
}

// Validate validates the configuration and fills defaults
func (c *ShopifyConfig) Validate() error {
	if strings.TrimSpace(c.StoreURL) == "" {
		return ErrShopifyConfigMissingStoreURL
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrShopifyConfigMissingAccessToken
	}
	if c.VendorTag == "" {
		c.VendorTag = ShopifyDefaultVendorTag
	}
	if c.APIVersion == "" {
		c.APIVersion = ShopifyAPIVersion
	}
	if c.CallInterval < 0 {
		c.CallInterval = 0
	}
	return nil
}

// BaseURL returns the versioned Admin API root
func (c *ShopifyConfig) BaseURL() string {
	return strings.TrimRight(c.StoreURL, "/") + "/admin/api/" + c.APIVersion
}
