package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// ============================================================================
// WAF header / known-protection detection
// ============================================================================

func TestRiskClassifier_ObserveStatus_DetectsKnownProtection(t *testing.T) {
	c := NewRiskClassifier(nil)

	c.ObserveStatus("example.com", 200, map[string][]string{"cf-ray": {"abc123"}})

	risk := c.Get("example.com")
	assert.Contains(t, risk.Factors.KnownProtection, "cloudflare")
}

func TestRiskClassifier_ObserveStatus_IgnoresUnknownHeaders(t *testing.T) {
	c := NewRiskClassifier(nil)

	c.ObserveStatus("example.com", 200, map[string][]string{"x-custom": {"whatever"}})

	risk := c.Get("example.com")
	assert.Empty(t, risk.Factors.KnownProtection)
}

// ============================================================================
// Extreme domain floor
// ============================================================================

func TestRiskClassifier_ExtremeDomainFloor(t *testing.T) {
	c := NewRiskClassifier(nil)

	c.ObserveStatus("google.com", 200, nil)

	risk := c.Get("google.com")
	assert.Equal(t, models.RiskExtreme, risk.RiskLevel)
}

// ============================================================================
// Rate-limit signal window
// ============================================================================

func TestRiskClassifier_RateLimitSignalsEscalateRisk(t *testing.T) {
	c := NewRiskClassifier(nil)

	for i := 0; i < 6; i++ {
		c.ObserveStatus("shop.example.com", 429, map[string][]string{"cf-ray": {"x"}})
	}

	risk := c.Get("shop.example.com")
	assert.GreaterOrEqual(t, risk.Factors.RateLimitSignals, 6)
	assert.Equal(t, models.RiskMedium, risk.RiskLevel)
}

func TestRiskClassifier_HeavyRateLimitingWithProtectionIsHigh(t *testing.T) {
	c := NewRiskClassifier(nil)

	for i := 0; i < 25; i++ {
		c.ObserveStatus("hard.example.com", 403, map[string][]string{"cf-ray": {"x"}})
	}

	risk := c.Get("hard.example.com")
	assert.Equal(t, models.RiskHigh, risk.RiskLevel)
}

// ============================================================================
// cheapestViableTier
// ============================================================================

func TestRiskClassifier_CheapestViableTier_PicksLowestSuccessfulTier(t *testing.T) {
	c := NewRiskClassifier(nil)

	for i := 0; i < 10; i++ {
		c.RecordTierOutcome("example.com", "datacenter", true)
	}

	risk := c.Get("example.com")
	assert.Equal(t, "datacenter", risk.RecommendedProxyTier)
}

func TestRiskClassifier_CheapestViableTier_EscalatesPastFailingTier(t *testing.T) {
	c := NewRiskClassifier(nil)

	for i := 0; i < 10; i++ {
		c.RecordTierOutcome("example.com", "datacenter", false)
	}

	risk := c.Get("example.com")
	assert.Equal(t, "isp", risk.RecommendedProxyTier, "should escalate one tier above the failing one")
}

// ============================================================================
// ApplyLearnedTransfer
// ============================================================================

func TestRiskClassifier_ApplyLearnedTransfer_OnlyRaisesBotScore(t *testing.T) {
	c := NewRiskClassifier(nil)

	c.ApplyLearnedTransfer("example.com", 0.9)
	c.ApplyLearnedTransfer("example.com", 0.2)

	risk := c.Get("example.com")
	assert.Equal(t, 0.9, risk.Factors.BotScore, "a lower transferred score must not downgrade bot score")
	assert.Equal(t, models.RiskHigh, risk.RiskLevel)
}

// ============================================================================
// Persistence
// ============================================================================

type recordingRiskPersister struct {
	saves []*models.DomainRisk
}

func (p *recordingRiskPersister) SaveDomainRisk(r *models.DomainRisk) {
	p.saves = append(p.saves, r)
}

func TestRiskClassifier_ObserveStatus_PersistsSnapshot(t *testing.T) {
	persist := &recordingRiskPersister{}
	c := NewRiskClassifier(persist)

	c.ObserveStatus("example.com", 200, nil)

	require.Len(t, persist.saves, 1)
	assert.Equal(t, "example.com", persist.saves[0].Domain)
}

func TestRiskClassifier_Seed_WarmsClassifierWithoutPersisting(t *testing.T) {
	persist := &recordingRiskPersister{}
	c := NewRiskClassifier(persist)

	c.Seed([]*models.DomainRisk{{Domain: "seeded.example.com", RiskLevel: models.RiskHigh}})

	assert.Empty(t, persist.saves, "seeding must not trigger a write-back")
	assert.Equal(t, models.RiskHigh, c.Get("seeded.example.com").RiskLevel)
}
