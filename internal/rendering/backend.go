// Package rendering defines the RenderingBackend capability consumed by
// the orchestrator and provides one implementation per tier (§6, §9 —
// tiers are modeled as a closed variant set plus a capability interface,
// not a class hierarchy).
package rendering

import (
	"context"
	"time"

	"github.com/uzzalhcse/crawlify/pkg/models"
)

// RenderOptions carries everything one render call needs beyond the URL.
type RenderOptions struct {
	Proxy           *models.Proxy
	Headers         map[string]string
	Timeout         time.Duration
	Cookies         string
	WaitForSelector string
	SelectorTimeout time.Duration
	// Stealth is set when quirks.Registry has learned this domain requires
	// anti-bot evasion (§4.8). Browser-driven tiers honor it by patching
	// automation fingerprints before navigation; the intelligence tier has
	// no browser context to patch and ignores it.
	Stealth bool
}

// RenderResult is what a RenderingBackend returns on a completed attempt,
// success or HTTP-level failure (transport/timeout errors return err
// instead).
type RenderResult struct {
	FinalURL string
	Status   int
	Headers  map[string][]string
	Body     string
	// NetworkLog is an optional, backend-specific summary of the wire
	// exchange (redirect count, bytes transferred); nil when not tracked.
	NetworkLog *models.NetworkStats
}

// Backend renders one URL at one tier. Implementations must be idempotent
// with respect to side effects on the core: calling render twice for the
// same inputs must not corrupt shared state beyond what the proxy/health
// reporting path already accounts for.
type Backend interface {
	Tier() models.Tier
	Render(ctx context.Context, url string, opts RenderOptions) (*RenderResult, error)
}

// Registry resolves a Tier to its Backend.
type Registry struct {
	backends map[models.Tier]Backend
}

// NewRegistry builds a Registry from a list of backends, keyed by their
// own declared Tier().
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[models.Tier]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Tier()] = b
	}
	return r
}

// Get returns the backend for a tier, or nil if unregistered.
func (r *Registry) Get(tier models.Tier) Backend {
	return r.backends[tier]
}
