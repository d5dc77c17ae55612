package rendering

import (
	"context"
	"fmt"
	"time"

	"github.com/uzzalhcse/crawlify/internal/browser"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// PlaywrightBackend is the most expensive tier: a full browser navigation,
// with real subresource loading, JS execution, and anti-bot challenge
// rendering. Proxy routing is baked into the browser context at
// acquisition time (see browser.BrowserPool.Acquire), since playwright
// pins proxy config per-context rather than per-request.
type PlaywrightBackend struct {
	pool *browser.BrowserPool
}

func NewPlaywrightBackend(pool *browser.BrowserPool) *PlaywrightBackend {
	return &PlaywrightBackend{pool: pool}
}

func (b *PlaywrightBackend) Tier() models.Tier { return models.TierPlaywright }

func (b *PlaywrightBackend) Render(ctx context.Context, url string, opts RenderOptions) (*RenderResult, error) {
	var proxyURL string
	if opts.Proxy != nil {
		proxyURL = opts.Proxy.URL
	}

	bc, err := b.pool.Acquire(ctx, proxyURL)
	if err != nil {
		return nil, fmt.Errorf("playwright tier acquire context: %w", err)
	}
	defer b.pool.Release(bc, proxyURL == "")

	if opts.Stealth {
		if err := bc.ApplyStealth(); err != nil {
			return nil, fmt.Errorf("playwright tier apply stealth: %w", err)
		}
	}

	if len(opts.Headers) > 0 {
		if err := bc.SetHeaders(opts.Headers); err != nil {
			return nil, fmt.Errorf("playwright tier set headers: %w", err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	resp, err := bc.Navigate(url, timeout)
	if err != nil {
		return nil, fmt.Errorf("playwright tier navigate: %w", err)
	}

	if opts.WaitForSelector != "" {
		selectorTimeout := opts.SelectorTimeout
		if selectorTimeout <= 0 {
			selectorTimeout = 5 * time.Second
		}
		ie := browser.NewInteractionEngine(bc)
		if err := ie.WaitForSelector(opts.WaitForSelector, selectorTimeout, "visible"); err != nil {
			return nil, fmt.Errorf("playwright tier wait for selector %q: %w", opts.WaitForSelector, err)
		}
	}

	body, err := bc.Content()
	if err != nil {
		return nil, fmt.Errorf("playwright tier read content: %w", err)
	}

	result := &RenderResult{
		FinalURL: url,
		Body:     body,
	}

	if resp != nil {
		result.FinalURL = resp.URL()
		result.Status = resp.Status()
		headers, herr := resp.AllHeaders()
		if herr == nil {
			hdrs := make(map[string][]string, len(headers))
			for k, v := range headers {
				hdrs[k] = []string{v}
			}
			result.Headers = hdrs
		}
		result.NetworkLog = &models.NetworkStats{StatusCode: resp.Status()}
	}

	return result, nil
}
