package ecommerce

import (
	"errors"
	"strings"
)

const (
	// WimoodDefaultBaseURL is the public shop used to build product page urls
	WimoodDefaultBaseURL = "https://www.wimood.nl"
	// WimoodDefaultOrderAPIURL is the REST root of the dropship order API
	WimoodDefaultOrderAPIURL = "https://api.wimood.nl/v1"
)

// Errors for Wimood configuration
var (
	ErrWimoodConfigMissingAPIURL     = errors.New("wimood: api url is required")
	ErrWimoodConfigMissingAPIKey     = errors.New("wimood: api key is required")
	ErrWimoodConfigMissingCustomerID = errors.New("wimood: customer id is required")
)

// WimoodConfig holds configuration for the Wimood XML product feed
type WimoodConfig struct {
	// APIURL is the feed root; the adapter appends /index.php
	APIURL string
	// APIKey authenticates the feed request
	APIKey string
	// CustomerID is sent as klantnummer
	CustomerID string
}

// Validate validates the configuration
func (c *WimoodConfig) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrWimoodConfigMissingAPIURL
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrWimoodConfigMissingAPIKey
	}
	if strings.TrimSpace(c.CustomerID) == "" {
		return ErrWimoodConfigMissingCustomerID
	}
	return nil
}

// FeedURL returns the product feed endpoint without credentials
func (c *WimoodConfig) FeedURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/index.php"
}

// WimoodOrderConfig holds configuration for the Wimood order API
type WimoodOrderConfig struct {
	// APIURL defaults to WimoodDefaultOrderAPIURL
	APIURL string
	// APIKey is sent as X-AUTH-TOKEN
	APIKey string
	// Remark is attached to every submitted order
	Remark string
}

// Validate validates the configuration and fills defaults
func (c *WimoodOrderConfig) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrWimoodConfigMissingAPIKey
	}
	if strings.TrimSpace(c.APIURL) == "" {
		c.APIURL = WimoodDefaultOrderAPIURL
	}
	return nil
}

// OrdersURL returns the order collection endpoint
func (c *WimoodOrderConfig) OrdersURL() string {
	return strings.TrimRight(c.APIURL, "/") + "/orders"
}
