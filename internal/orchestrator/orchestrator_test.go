package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/internal/extraction"
	"github.com/uzzalhcse/crawlify/internal/pattern"
	"github.com/uzzalhcse/crawlify/internal/proxy"
	"github.com/uzzalhcse/crawlify/internal/quirks"
	"github.com/uzzalhcse/crawlify/internal/rendering"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// fakeBackend renders every request the same canned way regardless of URL;
// tests configure its tier, body and status to drive orchestrator behavior.
type fakeBackend struct {
	tier   models.Tier
	status int
	body   string
	err    error
	calls  int
}

func (f *fakeBackend) Tier() models.Tier { return f.tier }

func (f *fakeBackend) Render(ctx context.Context, url string, opts rendering.RenderOptions) (*rendering.RenderResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rendering.RenderResult{FinalURL: url, Status: f.status, Body: f.body}, nil
}

var goodBody = `<html><head><title>A Page</title></head><body><main>` +
	strings.Repeat("this is plenty of real content to pass the minimum length check. ", 6) +
	`</main></body></html>`

func newFullOrchestrator(t *testing.T, backends ...rendering.Backend) (*Orchestrator, *proxy.Manager) {
	t.Helper()
	risk := proxy.NewRiskClassifier(nil)
	geo := proxy.NewGeoRouter()
	mgr := proxy.NewManager(config.PlanTiersConfig{}, nil, geo, risk)
	mgr.Initialize(config.ProxyPoolsConfig{})

	return New(
		rendering.NewRegistry(backends...),
		extraction.New(),
		mgr,
		pattern.NewRegistry(nil),
		pattern.NewHealthMonitor(pattern.NewRegistry(nil)),
		quirks.NewRegistry(nil),
		risk,
		nil, // recorder: nil is a valid no-op per maybeRecord
		nil, // cache: nil disables the result-cache short circuit
		0,
		5*time.Second,
		2*time.Second,
	), mgr
}

// ============================================================================
// Happy path
// ============================================================================

func TestFetch_SucceedsAtCheapestTierWithoutFallback(t *testing.T) {
	intel := &fakeBackend{tier: models.TierIntelligence, status: 200, body: goodBody}
	o, _ := newFullOrchestrator(t, intel)

	result, ferr := o.Fetch(context.Background(), models.Request{URL: "https://example.com/page"})

	require.Nil(t, ferr)
	require.NotNil(t, result)
	assert.Equal(t, models.TierIntelligence, result.TierUsed)
	assert.False(t, result.FellBack)
	assert.Equal(t, "A Page", result.Title)
	assert.Equal(t, 1, intel.calls)
}

// ============================================================================
// Fallback across tiers on validation failure
// ============================================================================

func TestFetch_FallsBackToNextTierOnRetryableValidationFailure(t *testing.T) {
	intel := &fakeBackend{tier: models.TierIntelligence, status: 200, body: "too short"}
	light := &fakeBackend{tier: models.TierLightweight, status: 200, body: goodBody}
	o, _ := newFullOrchestrator(t, intel, light)

	result, ferr := o.Fetch(context.Background(), models.Request{URL: "https://example.com/page"})

	require.Nil(t, ferr)
	require.NotNil(t, result)
	assert.Equal(t, models.TierLightweight, result.TierUsed)
	assert.True(t, result.FellBack)
	assert.Equal(t, 1, intel.calls)
	assert.Equal(t, 1, light.calls)
}

// ============================================================================
// Non-retryable HTTP status stops the tier walk immediately
// ============================================================================

func TestFetch_404StopsWithoutTryingFurtherTiers(t *testing.T) {
	intel := &fakeBackend{tier: models.TierIntelligence, status: 404, body: goodBody}
	light := &fakeBackend{tier: models.TierLightweight, status: 200, body: goodBody}
	o, _ := newFullOrchestrator(t, intel, light)

	result, ferr := o.Fetch(context.Background(), models.Request{URL: "https://example.com/gone"})

	require.Nil(t, result)
	require.NotNil(t, ferr)
	assert.False(t, ferr.Retryable)
	assert.Equal(t, 0, light.calls, "a non-retryable outcome must not fall through to the next tier")
}

// ============================================================================
// No registered backend for a tier in the sequence
// ============================================================================

func TestFetch_MissingBackendForAllTiersReturnsError(t *testing.T) {
	o, _ := newFullOrchestrator(t) // no backends registered at all

	result, ferr := o.Fetch(context.Background(), models.Request{URL: "https://example.com/page"})

	require.Nil(t, result)
	require.NotNil(t, ferr)
}

// ============================================================================
// Latency budget skips tiers whose floor can't fit in the remainder
// ============================================================================

func TestFetch_TightLatencyBudgetSkipsExpensiveTiers(t *testing.T) {
	intel := &fakeBackend{tier: models.TierIntelligence, status: 200, body: "too short"}
	playwright := &fakeBackend{tier: models.TierPlaywright, status: 200, body: goodBody}
	o, _ := newFullOrchestrator(t, intel, playwright)

	budgetMs := int64(300) // covers intelligence's 200ms floor, not playwright's 2s floor
	result, ferr := o.Fetch(context.Background(), models.Request{
		URL:    "https://example.com/page",
		Budget: models.Budget{MaxLatencyMs: &budgetMs},
	})

	require.Nil(t, result)
	require.NotNil(t, ferr)
	assert.Equal(t, 1, intel.calls)
	assert.Equal(t, 0, playwright.calls, "playwright's 2s floor can't fit the remaining budget")
}

// ============================================================================
// Transport error is retryable and falls back to the next tier
// ============================================================================

func TestFetch_TransportErrorIsRetryableAndFallsBack(t *testing.T) {
	intel := &fakeBackend{tier: models.TierIntelligence, err: assertErr("boom")}
	light := &fakeBackend{tier: models.TierLightweight, status: 200, body: goodBody}
	o, _ := newFullOrchestrator(t, intel, light)

	result, ferr := o.Fetch(context.Background(), models.Request{URL: "https://example.com/page"})

	require.Nil(t, ferr)
	require.NotNil(t, result)
	assert.Equal(t, models.TierLightweight, result.TierUsed)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
