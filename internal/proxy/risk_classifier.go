package proxy

import (
	"sync"
	"time"

	"github.com/uzzalhcse/crawlify/pkg/models"
)

// wafHeaders are the response headers whose presence implies a known
// protection vendor is fronting the domain (§4.5).
var wafHeaders = map[string]string{
	"cf-ray":      "cloudflare",
	"x-amz-cf-id": "cloudfront",
	"x-sucuri-id": "sucuri",
}

// extremeDomains is the hardcoded floor list from §4.5: large platforms
// whose anti-automation posture is assumed extreme regardless of observed
// history.
var extremeDomains = map[string]bool{
	"google.com":    true,
	"facebook.com":  true,
	"amazon.com":    true,
	"linkedin.com":  true,
	"instagram.com": true,
}

// domainObservation is one recent status-code data point used for the
// rate-limit signal window.
type domainObservation struct {
	statusCode int
	at         time.Time
}

const observationWindow = 100

// RiskPersister is the storage boundary the classifier writes through after
// every recompute. A nil RiskPersister means in-memory-only operation (tests, or a
// database-less deployment).
type RiskPersister interface {
	SaveDomainRisk(r *models.DomainRisk)
}

// RiskClassifier produces a DomainRisk from accumulated per-domain signals.
type RiskClassifier struct {
	mu sync.Mutex

	risks        map[string]*models.DomainRisk
	observations map[string][]domainObservation
	tierSuccess  map[string]map[string]*tierStat // domain -> tier -> stat

	persist RiskPersister
}

type tierStat struct {
	successes int
	total     int
}

func NewRiskClassifier(persist RiskPersister) *RiskClassifier {
	return &RiskClassifier{
		risks:        make(map[string]*models.DomainRisk),
		observations: make(map[string][]domainObservation),
		tierSuccess:  make(map[string]map[string]*tierStat),
		persist:      persist,
	}
}

// Seed restores previously persisted domain risk records, used to warm the
// classifier on startup from storage.DomainRiskRepository.LoadAll.
func (c *RiskClassifier) Seed(risks []*models.DomainRisk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range risks {
		c.risks[r.Domain] = r
	}
}

func (c *RiskClassifier) get(domain string) *models.DomainRisk {
	r, ok := c.risks[domain]
	if !ok {
		r = &models.DomainRisk{Domain: domain, RiskLevel: models.RiskLow}
		c.risks[domain] = r
	}
	return r
}

// ObserveStatus records one HTTP status for the rate-limit signal window
// and recomputes the domain's risk level.
func (c *RiskClassifier) ObserveStatus(domain string, statusCode int, headers map[string][]string) {
	c.mu.Lock()

	now := time.Now()
	obs := append(c.observations[domain], domainObservation{statusCode: statusCode, at: now})
	if len(obs) > observationWindow {
		obs = obs[len(obs)-observationWindow:]
	}
	c.observations[domain] = obs

	risk := c.get(domain)
	for hk, vendor := range wafHeaders {
		if _, ok := headers[hk]; ok {
			risk.Factors.KnownProtection = appendUnique(risk.Factors.KnownProtection, vendor)
		}
	}

	var blocked int
	for _, o := range obs {
		if o.statusCode == 403 || o.statusCode == 429 {
			blocked++
		}
	}
	risk.Factors.RateLimitSignals = blocked

	c.recompute(domain)
	snapshot := *c.get(domain)
	c.mu.Unlock()

	c.persistSnapshot(&snapshot)
}

// RecordTierOutcome feeds the per-tier success-rate table used to pick
// recommendedProxyTier.
func (c *RiskClassifier) RecordTierOutcome(domain, tier string, success bool) {
	c.mu.Lock()

	tiers, ok := c.tierSuccess[domain]
	if !ok {
		tiers = make(map[string]*tierStat)
		c.tierSuccess[domain] = tiers
	}
	st, ok := tiers[tier]
	if !ok {
		st = &tierStat{}
		tiers[tier] = st
	}
	st.total++
	if success {
		st.successes++
	}

	c.recompute(domain)
	snapshot := *c.get(domain)
	c.mu.Unlock()

	c.persistSnapshot(&snapshot)
}

// ApplyLearnedTransfer folds a SiteQuirks/PatternHealth-derived signal into
// the domain's risk without resetting observed history.
func (c *RiskClassifier) ApplyLearnedTransfer(domain string, botScore float64) {
	c.mu.Lock()
	risk := c.get(domain)
	if botScore > risk.Factors.BotScore {
		risk.Factors.BotScore = botScore
	}
	c.recompute(domain)
	snapshot := *c.get(domain)
	c.mu.Unlock()

	c.persistSnapshot(&snapshot)
}

// persistSnapshot writes a risk record through the persister, if one was
// configured.
func (c *RiskClassifier) persistSnapshot(risk *models.DomainRisk) {
	if c.persist != nil {
		c.persist.SaveDomainRisk(risk)
	}
}

func (c *RiskClassifier) Get(domain string) models.DomainRisk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.get(domain)
}

// recompute derives RiskLevel, RecommendedProxyTier and RecommendedDelayMs
// from accumulated factors. Caller must hold c.mu.
func (c *RiskClassifier) recompute(domain string) {
	risk := c.get(domain)
	risk.LastObservedAt = time.Now()

	level := models.RiskLow
	switch {
	case extremeDomains[domain]:
		level = models.RiskExtreme
	case len(risk.Factors.KnownProtection) > 0 && risk.Factors.RateLimitSignals > 20:
		level = models.RiskHigh
	case len(risk.Factors.KnownProtection) > 0 || risk.Factors.RateLimitSignals > 5:
		level = models.RiskMedium
	case risk.Factors.BotScore > 0.7:
		level = models.RiskHigh
	}
	risk.RiskLevel = level
	risk.RecommendedDelayMs = models.DelayForRisk(level)

	risk.RecommendedProxyTier = c.cheapestViableTier(domain)
}

// cheapestViableTier returns the cheapest tier whose historical success
// rate on this domain is >= 0.7, else the tier one above the last failed
// tier (§4.5).
func (c *RiskClassifier) cheapestViableTier(domain string) string {
	order := []string{"datacenter", "isp", "residential", "premium"}
	tiers := c.tierSuccess[domain]

	lastFailedIdx := -1
	for i, t := range order {
		st, ok := tiers[t]
		if !ok || st.total == 0 {
			continue
		}
		rate := float64(st.successes) / float64(st.total)
		if rate >= 0.7 {
			return t
		}
		lastFailedIdx = i
	}

	if lastFailedIdx >= 0 && lastFailedIdx+1 < len(order) {
		return order[lastFailedIdx+1]
	}
	return order[0]
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
