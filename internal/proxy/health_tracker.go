package proxy

import (
	"sync"
	"time"

	"github.com/uzzalhcse/crawlify/pkg/models"
)

// HealthTracker keeps per-proxy, per-domain health in memory and, when a
// Persister was given to NewHealthTracker, writes a snapshot through it
// after every reported success or failure. All mutation
// happens under a single mutex; reporting paths never hold it across a
// network call, satisfying the concurrency model's "no exclusive locks
// held across IO" rule (§5).
type HealthTracker struct {
	mu      sync.Mutex
	records map[string]*models.ProxyHealth // proxyID -> health

	persist Persister
}

// Persister is the storage boundary the tracker writes through.
// A nil Persister means in-memory-only operation (tests, or a database-less
// deployment).
type Persister interface {
	SaveProxyHealth(h *models.ProxyHealth)
}

func NewHealthTracker(persist Persister) *HealthTracker {
	return &HealthTracker{
		records: make(map[string]*models.ProxyHealth),
		persist: persist,
	}
}

func (t *HealthTracker) get(proxyID string) *models.ProxyHealth {
	h, ok := t.records[proxyID]
	if !ok {
		h = models.NewProxyHealth(proxyID)
		t.records[proxyID] = h
	}
	return h
}

func (t *HealthTracker) Snapshot(proxyID string) *models.ProxyHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(proxyID)
	cp := *h
	return &cp
}

func (t *HealthTracker) AllSnapshots() map[string]*models.ProxyHealth {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*models.ProxyHealth, len(t.records))
	for id, h := range t.records {
		cp := *h
		out[id] = &cp
	}
	return out
}

func (t *HealthTracker) ReportSuccess(proxyID, domain string, latencyMs float64) {
	t.mu.Lock()
	h := t.get(proxyID)
	h.RecordSuccess(domain, latencyMs, time.Now())
	t.mu.Unlock()

	if t.persist != nil {
		t.persist.SaveProxyHealth(t.Snapshot(proxyID))
	}
}

// FailureReason is the representative failure cause taxonomy from §4.2's
// reportFailure signature.
type FailureReason string

const (
	FailureBlocked   FailureReason = "blocked"
	FailureTimeout   FailureReason = "timeout"
	FailureTransport FailureReason = "transport"
	FailureChallenge FailureReason = "challenge"
)

func (t *HealthTracker) ReportFailure(proxyID, domain string, reason FailureReason) {
	t.mu.Lock()
	h := t.get(proxyID)
	h.RecordFailure(domain, time.Now())
	t.mu.Unlock()

	if t.persist != nil {
		t.persist.SaveProxyHealth(t.Snapshot(proxyID))
	}
}

func (t *HealthTracker) ForceCooldown(proxyID string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(proxyID)
	until := time.Now().Add(d)
	h.IsInCooldown = true
	h.CooldownUntil = &until
}

func (t *HealthTracker) ClearCooldown(proxyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.get(proxyID)
	h.IsInCooldown = false
	h.CooldownUntil = nil
}

func (t *HealthTracker) ClearDomainBlocks(domain string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range t.records {
		if dh, ok := h.PerDomain[domain]; ok {
			dh.BlockedSince = nil
		}
	}
}
