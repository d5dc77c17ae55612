package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

var testPlans = config.PlanTiersConfig{
	Free:       []string{"datacenter"},
	Starter:    []string{"datacenter", "isp"},
	Team:       []string{"datacenter", "isp", "residential"},
	Enterprise: []string{"datacenter", "isp", "residential", "premium"},
}

// ============================================================================
// RequestCost tests
// ============================================================================

func TestRequestCost(t *testing.T) {
	testCases := []struct {
		tier     string
		expected int
	}{
		{"datacenter", 1},
		{"isp", 5},
		{"residential", 25},
		{"premium", 100},
		{"unknown_tier", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.tier, func(t *testing.T) {
			assert.Equal(t, tc.expected, RequestCost(tc.tier))
		})
	}
}

// ============================================================================
// Selector.Select tests
// ============================================================================

func TestSelector_Select_FiltersByPlanAllowedTier(t *testing.T) {
	sel := NewSelector(testPlans)

	candidates := []models.Proxy{
		{ID: "p1", Tier: "residential"},
		{ID: "p2", Tier: "datacenter"},
	}

	winner, err := sel.Select(SelectInput{
		Domain:     "example.com",
		Plan:       "FREE",
		Candidates: candidates,
		Health:     map[string]*models.ProxyHealth{},
		Now:        time.Now(),
	})

	require.NoError(t, err)
	assert.Equal(t, "p2", winner.ID, "FREE plan should only see datacenter-tier candidates")
}

func TestSelector_Select_NoProxyAvailable(t *testing.T) {
	sel := NewSelector(testPlans)

	candidates := []models.Proxy{
		{ID: "p1", Tier: "premium"},
	}

	_, err := sel.Select(SelectInput{
		Domain:     "example.com",
		Plan:       "FREE",
		Candidates: candidates,
		Health:     map[string]*models.ProxyHealth{},
		Now:        time.Now(),
	})

	require.Error(t, err)
	var noProxyErr *ErrNoProxyAvailable
	assert.ErrorAs(t, err, &noProxyErr)
}

func TestSelector_Select_ExcludesCooldownAndDomainBlocked(t *testing.T) {
	sel := NewSelector(testPlans)
	now := time.Now()
	cooldownUntil := now.Add(10 * time.Minute)

	candidates := []models.Proxy{
		{ID: "cooling", Tier: "datacenter"},
		{ID: "blocked", Tier: "datacenter"},
		{ID: "healthy", Tier: "datacenter"},
	}

	blockedSince := now.Add(-1 * time.Minute)
	health := map[string]*models.ProxyHealth{
		"cooling": {ProxyID: "cooling", IsInCooldown: true, CooldownUntil: &cooldownUntil, SuccessRate: 1.0},
		"blocked": {
			ProxyID:     "blocked",
			SuccessRate: 1.0,
			PerDomain:   map[string]*models.DomainHealth{"example.com": {BlockedSince: &blockedSince}},
		},
		"healthy": {ProxyID: "healthy", SuccessRate: 1.0},
	}

	winner, err := sel.Select(SelectInput{
		Domain:     "example.com",
		Plan:       "FREE",
		Candidates: candidates,
		Health:     health,
		Now:        now,
	})

	require.NoError(t, err)
	assert.Equal(t, "healthy", winner.ID)
}

func TestSelector_Select_PrefersHigherSuccessRate(t *testing.T) {
	sel := NewSelector(testPlans)
	now := time.Now()

	candidates := []models.Proxy{
		{ID: "flaky", Tier: "datacenter"},
		{ID: "reliable", Tier: "datacenter"},
	}

	health := map[string]*models.ProxyHealth{
		"flaky":    {ProxyID: "flaky", SuccessRate: 0.4, LastUsedAt: now.Add(-2 * time.Hour)},
		"reliable": {ProxyID: "reliable", SuccessRate: 0.95, LastUsedAt: now.Add(-2 * time.Hour)},
	}

	winner, err := sel.Select(SelectInput{
		Domain:     "example.com",
		Plan:       "FREE",
		Candidates: candidates,
		Health:     health,
		Now:        now,
	})

	require.NoError(t, err)
	assert.Equal(t, "reliable", winner.ID)
}

func TestSelector_Select_RecommendedTierFloorExcludesLowerTiers(t *testing.T) {
	sel := NewSelector(testPlans)

	candidates := []models.Proxy{
		{ID: "dc", Tier: "datacenter"},
		{ID: "isp", Tier: "isp"},
		{ID: "res", Tier: "residential"},
	}

	winner, err := sel.Select(SelectInput{
		Domain:          "example.com",
		Plan:            "ENTERPRISE",
		RecommendedTier: "isp",
		Candidates:      candidates,
		Health:          map[string]*models.ProxyHealth{},
		Now:             time.Now(),
	})

	require.NoError(t, err)
	assert.Contains(t, []string{"isp", "res"}, winner.ID, "datacenter is below the recommended floor")
}

// ============================================================================
// ProxyHealth EWMA / cooldown / block rule tests (models package behavior,
// exercised through the selector's consumer contract)
// ============================================================================

func TestProxyHealth_RecordFailure_EscalatesCooldownAtThreeConsecutive(t *testing.T) {
	h := models.NewProxyHealth("p1")
	now := time.Now()

	h.RecordFailure("example.com", now)
	h.RecordFailure("example.com", now)
	assert.False(t, h.IsInCooldown, "cooldown should not trigger before 3 consecutive failures")

	h.RecordFailure("example.com", now)
	assert.True(t, h.IsInCooldown)
	require.NotNil(t, h.CooldownUntil)
}

func TestProxyHealth_RecordFailure_BlocksDomainAtFiveConsecutive(t *testing.T) {
	h := models.NewProxyHealth("p1")
	now := time.Now()

	for i := 0; i < 4; i++ {
		h.RecordFailure("example.com", now)
	}
	assert.False(t, h.DomainBlocked("example.com", now, time.Hour))

	h.RecordFailure("example.com", now)
	assert.True(t, h.DomainBlocked("example.com", now, time.Hour))
}

func TestProxyHealth_RecordSuccess_ResetsConsecutiveFailures(t *testing.T) {
	h := models.NewProxyHealth("p1")
	now := time.Now()

	h.RecordFailure("example.com", now)
	h.RecordFailure("example.com", now)
	assert.Equal(t, 2, h.ConsecutiveFailures)

	h.RecordSuccess("example.com", 120, now)
	assert.Equal(t, 0, h.ConsecutiveFailures)
}

func TestProxyHealth_EffectiveCooldown_AutoExpires(t *testing.T) {
	h := models.NewProxyHealth("p1")
	past := time.Now().Add(-time.Minute)
	h.IsInCooldown = true
	h.CooldownUntil = &past

	assert.False(t, h.EffectiveCooldown(time.Now()))
	assert.False(t, h.IsInCooldown, "expired cooldown should clear the flag")
}
