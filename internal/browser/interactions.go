package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// InteractionEngine waits out a page's post-load settling — it does not
// drive forms or clicks; this spec's fetch core is a passive reader, not a
// browser-automation scripting surface.
type InteractionEngine struct {
	browserCtx *BrowserContext
}

func NewInteractionEngine(browserCtx *BrowserContext) *InteractionEngine {
	return &InteractionEngine{
		browserCtx: browserCtx,
	}
}

// WaitForSelector waits for a selector to reach the given state, honoring
// a Request's Options.WaitForSelector (§6).
func (ie *InteractionEngine) WaitForSelector(selector string, timeout time.Duration, state string) error {
	var waitState *playwright.WaitForSelectorState
	switch state {
	case "visible":
		waitState = playwright.WaitForSelectorStateVisible
	case "hidden":
		waitState = playwright.WaitForSelectorStateHidden
	case "attached":
		waitState = playwright.WaitForSelectorStateAttached
	default:
		waitState = playwright.WaitForSelectorStateVisible
	}

	_, err := ie.browserCtx.Page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
		State:   waitState,
	})
	if err != nil {
		return fmt.Errorf("failed to wait for selector '%s': %w", selector, err)
	}
	return nil
}
