package rendering

import (
	"context"
	"fmt"
	"time"

	"github.com/uzzalhcse/crawlify/internal/browser"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// LightweightBackend is the middle tier: it fetches the document statically
// (reusing IntelligenceBackend's HTTP path) then loads the markup into a
// pooled, headless page and evaluates JS against it, without ever
// navigating the page to the network. This buys JS-rendered DOM state
// (hydration, lazy content) without the cost of a real page load and its
// waterfall of subresource requests.
type LightweightBackend struct {
	fetch *IntelligenceBackend
	pool  *browser.BrowserPool
}

func NewLightweightBackend(fetch *IntelligenceBackend, pool *browser.BrowserPool) *LightweightBackend {
	return &LightweightBackend{fetch: fetch, pool: pool}
}

func (b *LightweightBackend) Tier() models.Tier { return models.TierLightweight }

func (b *LightweightBackend) Render(ctx context.Context, url string, opts RenderOptions) (*RenderResult, error) {
	fetched, err := b.fetch.Render(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("lightweight tier static fetch: %w", err)
	}

	bc, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("lightweight tier acquire context: %w", err)
	}
	defer b.pool.Release(bc, true)

	if opts.Stealth {
		if err := bc.ApplyStealth(); err != nil {
			return nil, fmt.Errorf("lightweight tier apply stealth: %w", err)
		}
	}

	if len(opts.Headers) > 0 {
		if err := bc.SetHeaders(opts.Headers); err != nil {
			return nil, fmt.Errorf("lightweight tier set headers: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	if err := bc.SetContent(fetched.Body, timeout); err != nil {
		return nil, fmt.Errorf("lightweight tier set content: %w", err)
	}

	if opts.WaitForSelector != "" {
		selectorTimeout := opts.SelectorTimeout
		if selectorTimeout <= 0 {
			selectorTimeout = 5 * time.Second
		}
		ie := browser.NewInteractionEngine(bc)
		if err := ie.WaitForSelector(opts.WaitForSelector, selectorTimeout, "visible"); err != nil {
			return nil, fmt.Errorf("lightweight tier wait for selector %q: %w", opts.WaitForSelector, err)
		}
	} else {
		// A fixed settle delay lets document-ready JS (hydration frameworks,
		// lazy image swaps) run before we read the DOM back out. Full
		// navigation-triggered waits (network idle) belong to the
		// playwright tier, not this one.
		time.Sleep(200 * time.Millisecond)
	}

	rendered, err := bc.Content()
	if err != nil {
		return nil, fmt.Errorf("lightweight tier read content: %w", err)
	}

	return &RenderResult{
		FinalURL:   fetched.FinalURL,
		Status:     fetched.Status,
		Headers:    fetched.Headers,
		Body:       rendered,
		NetworkLog: fetched.NetworkLog,
	}, nil
}
