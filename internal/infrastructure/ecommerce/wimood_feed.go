package ecommerce

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/domain/catalog"
	"github.com/Triple-C-BE/wimood/internal/domain/shared"
	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// invalidKeyMarker is what the feed returns instead of XML for a bad key
const invalidKeyMarker = "Invalid API Key"

// ParseErrorHook is called for every feed record that was skipped
type ParseErrorHook func(err *catalog.ParseError)

// WimoodFeed implements catalog.SupplierFeed over the Wimood XML feed
type WimoodFeed struct {
	config  *WimoodConfig
	client  *httpclient.Client
	logger  *zap.Logger
	onParse ParseErrorHook
}

// NewWimoodFeed creates a new feed adapter
func NewWimoodFeed(config *WimoodConfig, client *httpclient.Client, logger *zap.Logger) (*WimoodFeed, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("wimood: http client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WimoodFeed{
		config: config,
		client: client,
		logger: logger.Named("wimood_feed"),
	}, nil
}

// OnParseError registers a hook called for every skipped record
func (f *WimoodFeed) OnParseError(h ParseErrorHook) {
	f.onParse = h
}

// FetchProducts downloads and parses the feed. A rejected key, an
// unreachable feed or a body that is not XML fails the whole fetch;
// individual malformed records are skipped.
func (f *WimoodFeed) FetchProducts(ctx context.Context) ([]catalog.SupplierProduct, error) {
	resp, err := f.client.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    f.config.FeedURL(),
		Params: url.Values{
			"api_key":     {f.config.APIKey},
			"klantnummer": {f.config.CustomerID},
		},
	})
	if err != nil {
		if httpclient.StatusCodeOf(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", catalog.ErrFeedRejected, err)
		}
		return nil, fmt.Errorf("%w: %w", catalog.ErrFeedUnavailable, err)
	}
	if bytes.Contains(resp.Body, []byte(invalidKeyMarker)) {
		return nil, catalog.ErrFeedRejected
	}

	products, err := f.parse(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrFeedUnavailable, err)
	}
	f.logger.Info("Fetched supplier feed", zap.Int("products", len(products)))
	return products, nil
}

// CheckConnection fetches the feed once and requires at least one product.
// A rejected key is a configuration error.
func (f *WimoodFeed) CheckConnection(ctx context.Context) error {
	products, err := f.FetchProducts(ctx)
	if errors.Is(err, catalog.ErrFeedRejected) {
		return fmt.Errorf("%w: %w", shared.ErrConfiguration, err)
	}
	if err != nil {
		return err
	}
	if len(products) == 0 {
		return fmt.Errorf("%w: feed holds no products", catalog.ErrFeedUnavailable)
	}
	return nil
}

// parse streams <product> elements at any depth
func (f *WimoodFeed) parse(r io.Reader) ([]catalog.SupplierProduct, error) {
	dec := xml.NewDecoder(r)
	var (
		products []catalog.SupplierProduct
		index    int
		sawRoot  bool
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed xml: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		sawRoot = true
		if start.Name.Local != "product" {
			continue
		}

		var raw wimoodProduct
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("malformed xml in record %d: %w", index, err)
		}
		p, perr := toSupplierProduct(index, raw)
		index++
		if perr != nil {
			f.logger.Warn("Skipping malformed feed record",
				zap.Int("index", perr.Index),
				zap.String("product_id", perr.ProductID),
				zap.String("field", perr.Field),
				zap.Error(perr),
			)
			if f.onParse != nil {
				f.onParse(perr)
			}
			continue
		}
		products = append(products, p)
	}

	if !sawRoot {
		return nil, errors.New("empty feed document")
	}
	if index == 0 {
		f.logger.Warn("Feed contains no <product> elements")
	}
	return products, nil
}

func toSupplierProduct(index int, raw wimoodProduct) (catalog.SupplierProduct, *catalog.ParseError) {
	id := strings.TrimSpace(raw.ProductID)
	fail := func(field string, err error) *catalog.ParseError {
		return &catalog.ParseError{Index: index, ProductID: id, Field: field, Err: err}
	}

	msrp, err := parseAmount(raw.MSRP)
	if err != nil {
		return catalog.SupplierProduct{}, fail("msrp", err)
	}
	price, err := parseAmount(raw.Price)
	if err != nil {
		return catalog.SupplierProduct{}, fail("prijs", err)
	}
	stock, err := parseStock(raw.Stock)
	if err != nil {
		return catalog.SupplierProduct{}, fail("stock", err)
	}
	if stock < 0 {
		return catalog.SupplierProduct{}, fail("stock", fmt.Errorf("negative stock %d", stock))
	}

	p := catalog.SupplierProduct{
		ProductID: id,
		SKU:       catalog.NormalizeSKU(raw.ProductCode),
		Title:     strings.TrimSpace(raw.ProductName),
		Brand:     strings.TrimSpace(raw.Brand),
		EAN:       strings.TrimSpace(raw.EAN),
		Price:     price,
		MSRP:      msrp,
		Stock:     stock,
	}
	if id == "" {
		return catalog.SupplierProduct{}, fail("product_id", errors.New("missing"))
	}
	if err := p.Validate(); err != nil {
		return catalog.SupplierProduct{}, fail("product_code", err)
	}
	return p, nil
}

// parseAmount accepts "12.50", "12,50" and empty (zero)
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	return decimal.NewFromString(s)
}

// parseStock accepts integers and an empty value (zero)
func parseStock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

var _ catalog.SupplierFeed = (*WimoodFeed)(nil)
