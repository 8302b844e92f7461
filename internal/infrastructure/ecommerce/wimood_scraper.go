package ecommerce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/time/rate"

	"github.com/Triple-C-BE/wimood/internal/domain/enrichment"
)

var (
	galleryClass   = regexp.MustCompile(`(?i)product.*image|gallery|slider`)
	specNameClass  = regexp.MustCompile(`(?i)field-name|spec-name|label`)
	specValueClass = regexp.MustCompile(`(?i)field-value|spec-value|value`)
	descriptionKey = regexp.MustCompile(`(?i)Omschrijving`)
	specsKey       = regexp.MustCompile(`(?i)Specificaties`)
)

// ScraperConfig configures the product page scraper
type ScraperConfig struct {
	// BaseURL is the public shop, e.g. https://www.wimood.nl
	BaseURL string
	// Delay is the minimum gap between two page fetches
	Delay time.Duration
}

// WimoodScraper extracts images, description and specifications from
// Wimood product pages. It implements enrichment.Scraper.
type WimoodScraper struct {
	base    *url.URL
	fetcher PageFetcher
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time
}

// NewWimoodScraper creates a scraper that paces fetches by cfg.Delay
func NewWimoodScraper(cfg ScraperConfig, fetcher PageFetcher, logger *zap.Logger) (*WimoodScraper, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = WimoodDefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("wimood scraper: invalid base url %q", cfg.BaseURL)
	}
	if fetcher == nil {
		return nil, errors.New("wimood scraper: page fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}

	return &WimoodScraper{
		base:    base,
		fetcher: fetcher,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("wimood_scraper"),
		now:     time.Now,
	}, nil
}

// ProductURL builds {base}/nl/products/{product_id}/{slug(title)}
func (s *WimoodScraper) ProductURL(ref enrichment.PageRef) (string, error) {
	if strings.TrimSpace(ref.ProductID) == "" {
		return "", fmt.Errorf("%w: product %s has no product id", enrichment.ErrScrapeFailed, ref.SKU)
	}
	return fmt.Sprintf("%s/nl/products/%s/%s", s.base.String(), url.PathEscape(ref.ProductID), slug.Make(ref.Title)), nil
}

// Scrape fetches and parses the product page of ref
func (s *WimoodScraper) Scrape(ctx context.Context, ref enrichment.PageRef) (enrichment.Record, error) {
	pageURL, err := s.ProductURL(ref)
	if err != nil {
		return enrichment.Record{}, err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return enrichment.Record{}, err
	}

	s.logger.Debug("Scraping product page", zap.String("sku", ref.SKU), zap.String("url", pageURL))
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return enrichment.Record{}, fmt.Errorf("%w: %s: %w", enrichment.ErrScrapeFailed, pageURL, err)
	}

	record, err := s.Parse(page)
	if err != nil {
		return enrichment.Record{}, fmt.Errorf("%w: %s: %w", enrichment.ErrScrapeFailed, pageURL, err)
	}
	record.ProductID = ref.ProductID
	record.FetchedAt = s.now()

	s.logger.Info("Scraped product page",
		zap.String("sku", ref.SKU),
		zap.Int("images", len(record.Images)),
		zap.Bool("description", record.Description != ""),
		zap.Int("specs", len(record.Specs)),
	)
	return record, nil
}

// CheckConnection loads the shop's product overview page
func (s *WimoodScraper) CheckConnection(ctx context.Context) error {
	pageURL := s.base.String() + "/nl/products"
	if _, err := s.fetcher.Fetch(ctx, pageURL); err != nil {
		return fmt.Errorf("wimood scraper: connection check %s: %w", pageURL, err)
	}
	return nil
}

// Parse extracts enrichment fields from a product page
func (s *WimoodScraper) Parse(page []byte) (enrichment.Record, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return enrichment.Record{}, err
	}
	return enrichment.Record{
		Images:      s.extractImages(doc),
		Description: extractDescription(doc),
		Specs:       extractSpecs(doc),
	}, nil
}

func (s *WimoodScraper) extractImages(doc *html.Node) []string {
	var images []string
	seen := map[string]bool{}
	add := func(src string) {
		src = strings.TrimSpace(src)
		if src == "" {
			return
		}
		abs := s.resolve(src)
		if abs == "" || seen[abs] {
			return
		}
		seen[abs] = true
		images = append(images, abs)
	}

	walk(doc, func(n *html.Node) bool {
		if n.DataAtom == atom.Div {
			if src, ok := attr(n, "data-flickity-bg-lazyload"); ok {
				add(src)
			}
		}
		return true
	})

	if len(images) == 0 {
		var scope *html.Node
		walk(doc, func(n *html.Node) bool {
			if scope != nil {
				return false
			}
			if n.DataAtom == atom.Div {
				if class, _ := attr(n, "class"); galleryClass.MatchString(class) {
					scope = n
					return false
				}
			}
			return true
		})

		walk(doc, func(n *html.Node) bool {
			if n.DataAtom != atom.Img {
				return true
			}
			src, _ := attr(n, "src")
			if scope != nil {
				if isDescendant(n, scope) {
					add(src)
				}
			} else if strings.Contains(src, "/images/shop/") {
				add(src)
			}
			return true
		})
	}

	if len(images) > enrichment.MaxImages {
		images = images[:enrichment.MaxImages]
	}
	return images
}

func (s *WimoodScraper) resolve(src string) string {
	ref, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return s.base.ResolveReference(ref).String()
}

func extractDescription(doc *html.Node) string {
	content := sectionAfter(doc, descriptionKey)
	if content == nil {
		return ""
	}
	var b bytes.Buffer
	for c := content.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return strings.TrimSpace(b.String())
}

func extractSpecs(doc *html.Node) map[string]string {
	specs := map[string]string{}
	content := sectionAfter(doc, specsKey)
	if content == nil {
		return specs
	}

	var names []*html.Node
	walk(content, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			if class, _ := attr(n, "class"); specNameClass.MatchString(class) && !specValueClass.MatchString(class) {
				names = append(names, n)
			}
		}
		return true
	})

	if len(names) > 0 {
		for _, n := range names {
			for sib := nextElement(n); sib != nil; sib = nextElement(sib) {
				if class, _ := attr(sib, "class"); specValueClass.MatchString(class) {
					if name := textOf(n); name != "" {
						specs[name] = textOf(sib)
					}
					break
				}
			}
		}
		return specs
	}

	walk(content, func(n *html.Node) bool {
		if n.DataAtom != atom.Tr {
			return true
		}
		var cells []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Td || c.DataAtom == atom.Th {
				cells = append(cells, c)
			}
		}
		if len(cells) >= 2 {
			if name := textOf(cells[0]); name != "" {
				specs[name] = textOf(cells[1])
			}
		}
		return false
	})
	return specs
}

// sectionAfter finds the first text matching key and returns the element
// that follows its label element, or the element following the label's parent.
func sectionAfter(doc *html.Node, key *regexp.Regexp) *html.Node {
	var label *html.Node
	walk(doc, func(n *html.Node) bool {
		if label != nil {
			return false
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Head) {
			return false
		}
		if n.Type == html.TextNode && key.MatchString(n.Data) {
			label = n.Parent
			return false
		}
		return true
	})
	if label == nil {
		return nil
	}
	if next := nextElement(label); next != nil {
		return next
	}
	if label.Parent != nil {
		return nextElement(label.Parent)
	}
	return nil
}

// walk visits nodes depth first. fn returns false to skip the children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func isDescendant(n, ancestor *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

// textOf returns the whitespace-collapsed text content of n
func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// ---------------------------------------------------------------------------
// DisabledScraper
// ---------------------------------------------------------------------------

// DisabledScraper is used when scraping is switched off
type DisabledScraper struct{}

// Scrape always returns enrichment.ErrScrapingDisabled
func (DisabledScraper) Scrape(context.Context, enrichment.PageRef) (enrichment.Record, error) {
	return enrichment.Record{}, enrichment.ErrScrapingDisabled
}

// CheckConnection has nothing to check
func (DisabledScraper) CheckConnection(context.Context) error { return nil }

var (
	_ enrichment.Scraper = (*WimoodScraper)(nil)
	_ enrichment.Scraper = DisabledScraper{}
	_ PageFetcher        = (*HTTPPageFetcher)(nil)
	_ PageFetcher        = (*ChromedpPageFetcher)(nil)
)
