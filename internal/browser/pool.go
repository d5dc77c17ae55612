// Package browser hosts the playwright-tier RenderingBackend's browser
// context pool: a fixed number of pre-warmed contexts, checked out per
// request and returned (cookies cleared) rather than torn down, so the
// playwright tier doesn't pay browser-launch cost on every fetch.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"go.uber.org/zap"
)

type BrowserPool struct {
	config     *config.BrowserConfig
	playwright *playwright.Playwright
	browser    playwright.Browser
	contexts   chan playwright.BrowserContext
	mu         sync.RWMutex
	closed     bool
}

type BrowserContext struct {
	Context playwright.BrowserContext
	Page    playwright.Page
	pool    *BrowserPool
}

func NewBrowserPool(cfg *config.BrowserConfig) (*BrowserPool, error) {
	err := playwright.Install(&playwright.RunOptions{Verbose: false})
	if err != nil {
		logger.Warn("Failed to install playwright browsers", zap.Error(err))
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Timeout:  playwright.Float(float64(cfg.Timeout)),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	pool := &BrowserPool{
		config:     cfg,
		playwright: pw,
		browser:    browser,
		contexts:   make(chan playwright.BrowserContext, cfg.PoolSize),
	}

	for i := 0; i < cfg.PoolSize; i++ {
		ctx, err := pool.createContext(nil)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create browser context: %w", err)
		}
		pool.contexts <- ctx
	}

	logger.Info("Browser pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Bool("headless", cfg.Headless),
	)

	return pool, nil
}

// createContext builds one context. When proxyURL is non-nil the context
// routes through it; proxy assignment is per-acquisition (see Acquire)
// rather than baked into the pool's pre-warmed contexts, since a proxy is a
// per-request decision made by the Proxy Manager.
func (p *BrowserPool) createContext(proxyURL *string) (playwright.BrowserContext, error) {
	options := playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String("crawlify-fetch/1.0"),
		AcceptDownloads:   playwright.Bool(false),
		IgnoreHttpsErrors: playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  1920,
			Height: 1080,
		},
	}

	if proxyURL != nil && *proxyURL != "" {
		options.Proxy = &playwright.Proxy{Server: *proxyURL}
	}

	return p.browser.NewContext(options)
}

// Acquire gets a browser context from the pool, optionally routed through a
// proxy. A proxied acquisition always creates a fresh context (the proxy is
// baked in at context-creation time) and the caller must Release it as
// non-pooled, which closes rather than recycles it.
func (p *BrowserPool) Acquire(ctx context.Context, proxyURL ...string) (*BrowserContext, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, fmt.Errorf("browser pool is closed")
	}
	p.mu.RUnlock()

	if len(proxyURL) > 0 && proxyURL[0] != "" {
		browserCtx, err := p.createContext(&proxyURL[0])
		if err != nil {
			return nil, fmt.Errorf("failed to create proxied context: %w", err)
		}
		page, err := browserCtx.NewPage()
		if err != nil {
			browserCtx.Close()
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		return &BrowserContext{Context: browserCtx, Page: page, pool: p}, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case browserCtx := <-p.contexts:
		page, err := browserCtx.NewPage()
		if err != nil {
			browserCtx.Close()
			newCtx, err := p.createContext(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create new context: %w", err)
			}
			page, err = newCtx.NewPage()
			if err != nil {
				return nil, fmt.Errorf("failed to create new page: %w", err)
			}
			browserCtx = newCtx
		}

		return &BrowserContext{Context: browserCtx, Page: page, pool: p}, nil
	}
}

// Release returns a browser context to the pool, or closes it if it was a
// proxied, non-pooled context.
func (p *BrowserPool) Release(bc *BrowserContext, pooled bool) {
	if bc == nil || bc.Context == nil {
		return
	}

	if bc.Page != nil {
		bc.Page.Close()
	}

	if !pooled {
		bc.Context.Close()
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		bc.Context.Close()
		return
	}

	bc.Context.ClearCookies()

	select {
	case p.contexts <- bc.Context:
	default:
		bc.Context.Close()
	}
}

func (p *BrowserPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.contexts)

	for ctx := range p.contexts {
		ctx.Close()
	}

	if p.browser != nil {
		p.browser.Close()
	}
	if p.playwright != nil {
		p.playwright.Stop()
	}

	logger.Info("Browser pool closed")
}

func (bc *BrowserContext) Navigate(url string, timeout time.Duration) (playwright.Response, error) {
	return bc.Page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (bc *BrowserContext) SetContent(html string, timeout time.Duration) error {
	return bc.Page.SetContent(html, playwright.PageSetContentOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (bc *BrowserContext) SetHeaders(headers map[string]string) error {
	return bc.Context.SetExtraHTTPHeaders(headers)
}

// stealthInitScript patches the automation fingerprints anti-bot vendors
// check for (navigator.webdriver, a missing chrome object, an empty
// plugins/languages list) before any page script runs.
const stealthInitScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
`

// ApplyStealth installs the stealth init script on this context, run for
// every document loaded afterward. Must be called before Navigate/SetContent
// for the patch to apply to that page.
func (bc *BrowserContext) ApplyStealth() error {
	return bc.Context.AddInitScript(playwright.Script{Content: playwright.String(stealthInitScript)})
}

func (bc *BrowserContext) Content() (string, error) {
	return bc.Page.Content()
}
