package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
	"github.com/Triple-C-BE/wimood/internal/domain/fulfillment"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// inventoryItemBatch is the most ids inventory_items.json accepts per call
const inventoryItemBatch = 100

// ShopifyAdapter implements catalog.Storefront and fulfillment.OrderSource
// over the Shopify Admin REST API.
type ShopifyAdapter struct {
	config  *ShopifyConfig
	client  *httpclient.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewShopifyAdapter creates a new Shopify adapter
func NewShopifyAdapter(config *ShopifyConfig, client *httpclient.Client, logger *zap.Logger) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("shopify: http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.CallInterval > 0 {
		limit = rate.Every(config.CallInterval)
	}

	return &ShopifyAdapter{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("shopify"),
	}, nil
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ListProducts returns every product carrying the vendor tag, following
// Link header pagination, with the cost of each inventory item filled in.
func (a *ShopifyAdapter) ListProducts(ctx context.Context) ([]catalog.StorefrontProduct, error) {
	params := url.Values{
		"vendor": {a.config.VendorTag},
		"limit":  {strconv.Itoa(shopifyPageSize)},
	}
	var raw []shopifyProduct

	next := a.config.BaseURL() + "/products.json"
	for next != "" {
		resp, err := a.call(ctx, http.MethodGet, next, params, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: list products: %w", catalog.ErrStorefrontUnavailable, err)
		}
		var page shopifyProductsResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("%w: decode products: %v", catalog.ErrStorefrontUnavailable, err)
		}
		raw = append(raw, page.Products...)

		// The next link already carries the page_info cursor and limit.
		next = nextPageURL(resp.Header.Get("Link"))
		params = nil
	}

	products := make([]catalog.StorefrontProduct, 0, len(raw))
	itemIDs := make([]int64, 0, len(raw))
	for _, p := range raw {
		sp := toStorefrontProduct(p)
		products = append(products, sp)
		if len(p.Variants) > 0 && p.Variants[0].InventoryItemID != 0 {
			itemIDs = append(itemIDs, p.Variants[0].InventoryItemID)
		}
	}

	costs, err := a.inventoryCosts(ctx, itemIDs)
	if err != nil {
		// Without costs every product diffs on cost; refuse the listing instead.
		return nil, fmt.Errorf("%w: inventory costs: %w", catalog.ErrStorefrontUnavailable, err)
	}
	for i := range products {
		if cost, ok := costs[products[i].InventoryItemID]; ok {
			products[i].Cost = cost
		}
	}

	a.logger.Info("Fetched storefront products",
		zap.String("vendor", a.config.VendorTag),
		zap.Int("count", len(products)),
	)
	return products, nil
}

func (a *ShopifyAdapter) inventoryCosts(ctx context.Context, ids []int64) (map[string]decimal.NullDecimal, error) {
	costs := make(map[string]decimal.NullDecimal, len(ids))
	for start := 0; start < len(ids); start += inventoryItemBatch {
		end := start + inventoryItemBatch
		if end > len(ids) {
			end = len(ids)
		}
		parts := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			parts = append(parts, strconv.FormatInt(id, 10))
		}

		resp, err := a.call(ctx, http.MethodGet, a.config.BaseURL()+"/inventory_items.json", url.Values{
			"ids":   {strings.Join(parts, ",")},
			"limit": {strconv.Itoa(inventoryItemBatch)},
		}, nil)
		if err != nil {
			return nil, err
		}
		var page shopifyInventoryItemsResponse
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			return nil, fmt.Errorf("decode inventory items: %w", err)
		}
		for _, item := range page.InventoryItems {
			costs[strconv.FormatInt(item.ID, 10)] = item.Cost
		}
	}
	return costs, nil
}

// CreateProduct creates an active product with one variant, its images and
// supplier metafields, then records the cost on its inventory item.
func (a *ShopifyAdapter) CreateProduct(ctx context.Context, draft catalog.ProductDraft) (catalog.StorefrontProduct, error) {
	status := string(draft.Status)
	if status == "" {
		status = string(catalog.ProductStatusActive)
	}
	title := draft.Title
	price := draft.Price
	vendor := draft.Vendor
	if vendor == "" {
		vendor = a.config.VendorTag
	}

	write := shopifyProductWrite{
		Title:  &title,
		Vendor: vendor,
		Tags:   a.config.VendorTag,
		Status: &status,
		Variants: []shopifyVariantWrite{{
			SKU:                 draft.SKU,
			Price:               &price,
			Barcode:             strings.TrimSpace(draft.Metafields.EAN),
			InventoryManagement: "shopify",
		}},
		Images:     toShopifyImages(draft.Images),
		Metafields: buildMetafields(draft.Metafields),
	}
	if draft.BodyHTML != "" {
		body := draft.BodyHTML
		write.BodyHTML = &body
	}

	resp, err := a.call(ctx, http.MethodPost, a.config.BaseURL()+"/products.json", nil, map[string]any{"product": write})
	if err != nil {
		return catalog.StorefrontProduct{}, fmt.Errorf("shopify: create %s: %w", draft.SKU, err)
	}
	var created shopifyProductResponse
	if err := json.Unmarshal(resp.Body, &created); err != nil {
		return catalog.StorefrontProduct{}, fmt.Errorf("shopify: decode created product %s: %w", draft.SKU, err)
	}
	product := toStorefrontProduct(created.Product)
	if product.ID == "" || product.ID == "0" {
		return catalog.StorefrontProduct{}, fmt.Errorf("shopify: create %s: response carries no product", draft.SKU)
	}

	if draft.Cost.Valid {
		if err := a.setCost(ctx, product.InventoryItemID, draft.Cost.Decimal); err != nil {
			a.logger.Warn("Failed to set cost on created product",
				zap.String("sku", draft.SKU),
				zap.String("product_id", product.ID),
				zap.Error(err),
			)
		} else {
			product.Cost = draft.Cost
		}
	}

	a.logger.Info("Created storefront product",
		zap.String("sku", draft.SKU),
		zap.String("product_id", product.ID),
	)
	return product, nil
}

// UpdateProduct writes only the changed fields: product fields with one
// PUT, price on the variant, cost on the inventory item.
func (a *ShopifyAdapter) UpdateProduct(ctx context.Context, product catalog.StorefrontProduct, changes catalog.ProductChanges) error {
	if changes.IsEmpty() {
		return nil
	}
	productID, err := parseID(product.ID)
	if err != nil {
		return fmt.Errorf("shopify: update %s: %w", product.SKU, err)
	}

	if changes.TouchesProduct() {
		write := shopifyProductWrite{
			ID:       productID,
			Title:    changes.Title,
			BodyHTML: changes.BodyHTML,
		}
		if changes.Status != nil {
			s := string(*changes.Status)
			write.Status = &s
		}
		if changes.Images != nil {
			write.Images = toShopifyImages(changes.Images)
		}
		if _, err := a.call(ctx, http.MethodPut, fmt.Sprintf("%s/products/%d.json", a.config.BaseURL(), productID), nil, map[string]any{"product": write}); err != nil {
			return fmt.Errorf("shopify: update %s: %w", product.SKU, err)
		}
	}

	if changes.Price != nil {
		variantID, err := parseID(product.VariantID)
		if err != nil {
			return fmt.Errorf("shopify: update price of %s: %w", product.SKU, err)
		}
		write := shopifyVariantWrite{ID: variantID, Price: changes.Price}
		if _, err := a.call(ctx, http.MethodPut, fmt.Sprintf("%s/variants/%d.json", a.config.BaseURL(), variantID), nil, map[string]any{"variant": write}); err != nil {
			return fmt.Errorf("shopify: update price of %s: %w", product.SKU, err)
		}
	}

	if changes.Cost != nil {
		if err := a.setCost(ctx, product.InventoryItemID, *changes.Cost); err != nil {
			return fmt.Errorf("shopify: update cost of %s: %w", product.SKU, err)
		}
	}

	a.logger.Info("Updated storefront product",
		zap.String("sku", product.SKU),
		zap.String("product_id", product.ID),
		zap.Strings("fields", changes.Fields()),
	)
	return nil
}

// DeactivateProduct moves the product to draft. Products are never deleted.
func (a *ShopifyAdapter) DeactivateProduct(ctx context.Context, product catalog.StorefrontProduct) error {
	productID, err := parseID(product.ID)
	if err != nil {
		return fmt.Errorf("shopify: deactivate %s: %w", product.SKU, err)
	}
	status := string(catalog.ProductStatusDraft)
	write := shopifyProductWrite{ID: productID, Status: &status}
	if _, err := a.call(ctx, http.MethodPut, fmt.Sprintf("%s/products/%d.json", a.config.BaseURL(), productID), nil, map[string]any{"product": write}); err != nil {
		return fmt.Errorf("shopify: deactivate %s: %w", product.SKU, err)
	}
	a.logger.Info("Deactivated storefront product",
		zap.String("sku", product.SKU),
		zap.String("product_id", product.ID),
	)
	return nil
}

func (a *ShopifyAdapter) setCost(ctx context.Context, inventoryItemID string, cost decimal.Decimal) error {
	itemID, err := parseID(inventoryItemID)
	if err != nil {
		return catalog.ErrMissingInventoryItem
	}
	write := shopifyInventoryItemWrite{ID: itemID, Cost: cost}
	_, err = a.call(ctx, http.MethodPut, fmt.Sprintf("%s/inventory_items/%d.json", a.config.BaseURL(), itemID), nil, map[string]any{"inventory_item": write})
	return err
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// PrimaryLocationID returns the first location of the shop
func (a *ShopifyAdapter) PrimaryLocationID(ctx context.Context) (string, error) {
	resp, err := a.call(ctx, http.MethodGet, a.config.BaseURL()+"/locations.json", nil, nil)
	if err != nil {
		return "", fmt.Errorf("shopify: list locations: %w", err)
	}
	var page shopifyLocationsResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return "", fmt.Errorf("shopify: decode locations: %w", err)
	}
	if len(page.Locations) == 0 {
		return "", catalog.ErrLocationNotFound
	}
	return strconv.FormatInt(page.Locations[0].ID, 10), nil
}

// SetInventoryLevel sets the absolute available quantity at a location
func (a *ShopifyAdapter) SetInventoryLevel(ctx context.Context, locationID string, product catalog.StorefrontProduct, available int) error {
	itemID, err := parseID(product.InventoryItemID)
	if err != nil {
		return fmt.Errorf("%w: sku %s", catalog.ErrMissingInventoryItem, product.SKU)
	}
	locID, err := parseID(locationID)
	if err != nil {
		return fmt.Errorf("shopify: set inventory of %s: invalid location: %w", product.SKU, err)
	}

	body := shopifyInventoryLevelSet{
		LocationID:      locID,
		InventoryItemID: itemID,
		Available:       available,
	}
	if _, err := a.call(ctx, http.MethodPost, a.config.BaseURL()+"/inventory_levels/set.json", nil, body); err != nil {
		return fmt.Errorf("shopify: set inventory of %s: %w", product.SKU, err)
	}
	a.logger.Debug("Set inventory level",
		zap.String("sku", product.SKU),
		zap.String("location_id", locationID),
		zap.Int("available", available),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (a *ShopifyAdapter) call(ctx context.Context, method, rawURL string, params url.Values, body any) (*httpclient.Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("X-Shopify-Access-Token", a.config.AccessToken)
	header.Set("Accept", "application/json")

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(ctx, httpclient.Request{
		Method: method,
		URL:    rawURL,
		Params: params,
		Header: header,
		Body:   payload,
	})
	if err != nil {
		return nil, err
	}
	if limit := resp.Header.Get("X-Shopify-Shop-Api-Call-Limit"); limit != "" {
		a.logger.Debug("Shopify call limit", zap.String("method", method), zap.String("limit", limit))
	}
	return resp, nil
}

// nextPageURL extracts the rel="next" target of a Link header
func nextPageURL(link string) string {
	for _, part := range strings.Split(link, ",") {
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid id %q", id)
	}
	return n, nil
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func toStorefrontProduct(p shopifyProduct) catalog.StorefrontProduct {
	sp := catalog.StorefrontProduct{
		ID:         formatID(p.ID),
		Title:      p.Title,
		Status:     catalog.ProductStatus(p.Status),
		BodyHTML:   p.BodyHTML,
		ImageCount: len(p.Images),
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		sp.SKU = catalog.NormalizeSKU(v.SKU)
		sp.VariantID = formatID(v.ID)
		sp.InventoryItemID = formatID(v.InventoryItemID)
		sp.Price = v.Price
		sp.Stock = v.InventoryQuantity
		sp.Metafields.EAN = v.Barcode
	}
	return sp
}

func toShopifyImages(urls []string) []shopifyImage {
	if len(urls) > enrichment.MaxImages {
		urls = urls[:enrichment.MaxImages]
	}
	images := make([]shopifyImage, 0, len(urls))
	for _, u := range urls {
		images = append(images, shopifyImage{Src: u})
	}
	return images
}

func buildMetafields(m catalog.Metafields) []shopifyMetafield {
	var fields []shopifyMetafield
	if brand := strings.TrimSpace(m.Brand); brand != "" {
		fields = append(fields, shopifyMetafield{Namespace: shopifyMetafieldNamespace, Key: "brand", Value: brand, Type: "single_line_text_field"})
	}
	if ean := strings.TrimSpace(m.EAN); ean != "" {
		fields = append(fields, shopifyMetafield{Namespace: shopifyMetafieldNamespace, Key: "ean", Value: ean, Type: "single_line_text_field"})
	}
	if !m.MSRP.IsZero() {
		fields = append(fields, shopifyMetafield{Namespace: shopifyMetafieldNamespace, Key: "msrp", Value: m.MSRP.StringFixed(2), Type: "single_line_text_field"})
	}
	if len(m.Specs) > 0 {
		if specs, err := json.Marshal(m.Specs); err == nil {
			fields = append(fields, shopifyMetafield{Namespace: shopifyMetafieldNamespace, Key: "specs", Value: string(specs), Type: "json"})
		}
	}
	return fields
}

// Ensure ShopifyAdapter implements the storefront ports
var (
	_ catalog.Storefront      = (*ShopifyAdapter)(nil)
	_ fulfillment.OrderSource = (*ShopifyAdapter)(nil)
)
