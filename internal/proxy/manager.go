package proxy

import (
	"sync"
	"time"

	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// Manager is the front door for proxy assignment and outcome reporting
// (§4.2). It composes Selector, HealthTracker and RiskClassifier and owns
// the static proxy pool loaded from config.
type Manager struct {
	mu          sync.RWMutex
	initialized bool

	pools     map[string][]models.Proxy // tier -> proxies
	byID      map[string]models.Proxy
	selector  *Selector
	health    *HealthTracker
	risk      *RiskClassifier
	geo       *GeoRouter
	planTiers config.PlanTiersConfig
}

// NewManager wires a Manager around a shared RiskClassifier instance — the
// same instance the Orchestrator consults for tier selection, so a signal
// observed through one path (e.g. a 403 reported via ReportFailure) is
// immediately visible to the other (tier-sequence selection on the next
// request).
func NewManager(plans config.PlanTiersConfig, persist Persister, geo *GeoRouter, risk *RiskClassifier) *Manager {
	return &Manager{
		pools:     make(map[string][]models.Proxy),
		byID:      make(map[string]models.Proxy),
		selector:  NewSelector(plans),
		health:    NewHealthTracker(persist),
		risk:      risk,
		geo:       geo,
		planTiers: plans,
	}
}

// Initialize loads the static pool from config; idempotent, later calls
// are no-ops (§4.2).
func (m *Manager) Initialize(cfg config.ProxyPoolsConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return
	}

	add := func(tier string, urls []string) {
		for i, u := range urls {
			p := models.Proxy{ID: tier + "-" + itoa(i), URL: u, Tier: tier, IsResidential: tier == "residential"}
			m.pools[tier] = append(m.pools[tier], p)
			m.byID[p.ID] = p
		}
	}
	add("datacenter", config.SplitURLs(cfg.DatacenterURLs))
	add("isp", config.SplitURLs(cfg.ISPURLs))
	add("residential", config.SplitURLs(cfg.ResidentialAuth))
	add("premium", config.SplitURLs(cfg.PremiumAuth))

	m.initialized = true
	logger.Info("proxy manager initialized",
		zap.Int("datacenter", len(m.pools["datacenter"])),
		zap.Int("isp", len(m.pools["isp"])),
		zap.Int("residential", len(m.pools["residential"])),
		zap.Int("premium", len(m.pools["premium"])),
	)
}

func itoa(i int) string {
	digits := []byte{}
	if i == 0 {
		return "0"
	}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

// Assignment is the result of getProxy (§4.2).
type Assignment struct {
	Proxy *models.Proxy
	Tier  string
	Risk  models.DomainRisk
}

// GetProxyRequest bundles getProxy's parameters.
type GetProxyRequest struct {
	Domain        string
	TenantPlan    string
	PreferredTier string
	GeoHint       string
}

func (m *Manager) GetProxy(req GetProxyRequest) (*Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	risk := m.risk.Get(req.Domain)

	var candidates []models.Proxy
	for _, list := range m.pools {
		candidates = append(candidates, list...)
	}

	preferredCountry := req.GeoHint
	if preferredCountry == "" && m.geo != nil {
		preferredCountry = m.geo.PreferredCountry(req.Domain)
	}

	chosen, err := m.selector.Select(SelectInput{
		Domain:              req.Domain,
		Plan:                req.TenantPlan,
		PreferredTier:       req.PreferredTier,
		RecommendedTier:     risk.RecommendedProxyTier,
		Candidates:          candidates,
		Health:              m.health.AllSnapshots(),
		GeoPreferredCountry: preferredCountry,
		Now:                 time.Now(),
	})
	if err != nil {
		return nil, err
	}

	return &Assignment{Proxy: chosen, Tier: chosen.Tier, Risk: risk}, nil
}

// GetFallbackProxy returns a different proxy of the same or higher tier
// than current, for retrying within the same tier attempt.
func (m *Manager) GetFallbackProxy(current *models.Proxy, domain, plan string) *models.Proxy {
	m.mu.RLock()
	defer m.mu.RUnlock()

	allowed := make(map[string]bool)
	for _, t := range m.planTiers.AllowedTiers(plan) {
		allowed[t] = true
	}

	var candidates []models.Proxy
	for tier, list := range m.pools {
		if !allowed[tier] || !tierAtLeast(tier, current.Tier) {
			continue
		}
		for _, p := range list {
			if p.ID != current.ID {
				candidates = append(candidates, p)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	chosen, err := m.selector.Select(SelectInput{
		Domain:     domain,
		Plan:       plan,
		Candidates: candidates,
		Health:     m.health.AllSnapshots(),
		Now:        time.Now(),
	})
	if err != nil {
		return nil
	}
	return chosen
}

func (m *Manager) ReportSuccess(proxyID, domain string, latencyMs float64) {
	m.health.ReportSuccess(proxyID, domain, latencyMs)
	m.risk.RecordTierOutcome(domain, m.tierOf(proxyID), true)
}

func (m *Manager) ReportFailure(proxyID, domain string, reason FailureReason) {
	m.health.ReportFailure(proxyID, domain, reason)
	m.risk.RecordTierOutcome(domain, m.tierOf(proxyID), false)
}

func (m *Manager) ReportProtectionDetected(domain string, headers map[string][]string, statusCode int) {
	m.risk.ObserveStatus(domain, statusCode, headers)
}

func (m *Manager) tierOf(proxyID string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byID[proxyID].Tier
}

func (m *Manager) ForceProxyCooldown(proxyID string, reason string) {
	m.health.ForceCooldown(proxyID, 30*time.Minute)
	logger.Info("proxy forced into cooldown", zap.String("proxy_id", proxyID), zap.String("reason", reason))
}

func (m *Manager) ClearProxyCooldown(proxyID string) { m.health.ClearCooldown(proxyID) }
func (m *Manager) ClearDomainBlocks(domain string)   { m.health.ClearDomainBlocks(domain) }

func (m *Manager) GetAvailableTiers(plan string) []string {
	return m.planTiers.AllowedTiers(plan)
}

func (m *Manager) CalculateRequestCost(tier string) int {
	return RequestCost(tier)
}

// PoolStats reports the configured proxy count per tier, for the admin
// pool-overview query (§6).
func (m *Manager) PoolStats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.pools))
	for tier, list := range m.pools {
		out[tier] = len(list)
	}
	return out
}

// AllProxyHealth returns a snapshot of every tracked proxy's health record.
func (m *Manager) AllProxyHealth() map[string]*models.ProxyHealth {
	return m.health.AllSnapshots()
}

// DomainRisk returns the classifier's current risk assessment for a domain.
func (m *Manager) DomainRisk(domain string) models.DomainRisk {
	return m.risk.Get(domain)
}
