package ecommerce

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Triple-C-BE/wimood/internal/infrastructure/httpclient"
)

// PageFetcher returns the HTML of a product page
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) ([]byte, error)
}

// ---------------------------------------------------------------------------
// HTTPPageFetcher
// ---------------------------------------------------------------------------

// HTTPPageFetcher downloads pages through the resilient request client
type HTTPPageFetcher struct {
	client *httpclient.Client
}

// NewHTTPPageFetcher creates a page fetcher over client
func NewHTTPPageFetcher(client *httpclient.Client) *HTTPPageFetcher {
	return &HTTPPageFetcher{client: client}
}

// Fetch downloads pageURL
func (f *HTTPPageFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml")
	header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")

	resp, err := f.client.Get(ctx, pageURL, nil, header)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ---------------------------------------------------------------------------
// ChromedpPageFetcher
// ---------------------------------------------------------------------------

const defaultChromeTimeout = 45 * time.Second

// ErrFetcherClosed is returned by Fetch after Close
var ErrFetcherClosed = errors.New("chromedp: fetcher closed")

// ChromedpConfig contains configuration for the headless page fetcher
type ChromedpConfig struct {
	// Timeout for one page load
	Timeout time.Duration
	// RemoteURL is the devtools url of a running Chrome. Empty launches a browser.
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// WaitSelector is awaited before the DOM is captured
	WaitSelector string
	// UserAgent overrides the browser user agent
	UserAgent string
}

// ChromedpPageFetcher renders pages in headless Chrome so galleries that are
// filled in by JavaScript are present in the captured HTML. One browser is
// shared and every Fetch runs in its own tab.
type ChromedpPageFetcher struct {
	config *ChromedpConfig
	logger *zap.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewChromedpPageFetcher creates the browser allocator. The browser itself
// starts on the first Fetch.
func NewChromedpPageFetcher(config *ChromedpConfig, logger *zap.Logger) *ChromedpPageFetcher {
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultChromeTimeout
	}
	if config.WaitSelector == "" {
		config.WaitSelector = "body"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &ChromedpPageFetcher{
		config: config,
		logger: logger.Named("chromedp"),
	}
	f.allocCtx, f.allocCancel = f.newAllocator()
	return f
}

func (f *ChromedpPageFetcher) newAllocator() (context.Context, context.CancelFunc) {
	if f.config.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), f.config.RemoteURL)
	}
	return chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
}

func (f *ChromedpPageFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if f.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if f.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.config.UserAgent))
	}
	return opts
}

// browser returns the shared browser context, starting Chrome on first use.
// A browser that failed to start is discarded so the next call tries again.
func (f *ChromedpPageFetcher) browser() (context.Context, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.allocCtx == nil {
		return nil, ErrFetcherClosed
	}
	if f.browserCtx != nil && f.browserCtx.Err() == nil {
		return f.browserCtx, nil
	}

	browserCtx, browserCancel := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			f.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	// Run without actions launches the browser and its first tab.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		return nil, fmt.Errorf("chromedp: start browser: %w", err)
	}
	f.logger.Info("Started headless browser")
	f.browserCtx, f.browserCancel = browserCtx, browserCancel
	return browserCtx, nil
}

// Fetch opens pageURL in a new tab of the shared browser and returns the
// rendered document. The tab is closed afterwards.
func (f *ChromedpPageFetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	browserCtx, err := f.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	timeoutCtx, cancel := context.WithTimeout(tabCtx, f.config.Timeout)
	defer cancel()

	// Stop the page load when the caller's context ends.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(timeoutCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(f.config.WaitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp: render %s: %w", pageURL, err)
	}
	return []byte(html), nil
}

// Close shuts the browser down. Fetch fails with ErrFetcherClosed afterwards.
func (f *ChromedpPageFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browserCancel != nil {
		f.browserCancel()
		f.browserCancel = nil
		f.browserCtx = nil
	}
	if f.allocCancel != nil {
		f.allocCancel()
		f.allocCancel = nil
		f.allocCtx = nil
	}
	return nil
}
