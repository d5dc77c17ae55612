// Package proxy implements the Proxy Manager (§4.2), Proxy Selector (§4.3),
// Proxy Health Tracker (§4.4), and Domain Risk Classifier (§4.5).
package proxy

import (
	"sort"
	"time"

	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// tierRank gives the strict cost ordering used to compare "at least as
// expensive as" between proxy tiers.
var tierRank = map[string]int{
	"datacenter":  0,
	"isp":         1,
	"residential": 2,
	"premium":     3,
}

// tierCostMultiplier implements calculateRequestCost from §4.2.
var tierCostMultiplier = map[string]int{
	"datacenter":  1,
	"isp":         5,
	"residential": 25,
	"premium":     100,
}

func RequestCost(tier string) int {
	if c, ok := tierCostMultiplier[tier]; ok {
		return c
	}
	return 1
}

func tierAtLeast(tier, floor string) bool {
	return tierRank[tier] >= tierRank[floor]
}

// ErrNoProxyAvailable is raised by Select when no candidate survives
// filtering; the caller should fall back to trying a lower recommended
// tier per §4.3 rule 6.
type ErrNoProxyAvailable struct {
	Domain string
}

func (e *ErrNoProxyAvailable) Error() string {
	return "no_proxy_available: " + e.Domain
}

// Selector chooses one proxy per request from a fixed candidate pool plus
// live health/risk state supplied by the Manager.
type Selector struct {
	plans config.PlanTiersConfig
}

func NewSelector(plans config.PlanTiersConfig) *Selector {
	return &Selector{plans: plans}
}

// SelectInput bundles everything Select needs to score one request's
// candidate set.
type SelectInput struct {
	Domain              string
	Plan                string
	PreferredTier       string
	RecommendedTier     string
	Candidates          []models.Proxy
	Health              map[string]*models.ProxyHealth // by proxy ID
	GeoPreferredCountry string
	Now                 time.Time
}

// Select implements the §4.3 algorithm: filter by allowed tier, cooldown,
// and domain block, score survivors, and return the winner.
func (s *Selector) Select(in SelectInput) (*models.Proxy, error) {
	allowed := make(map[string]bool)
	for _, t := range s.plans.AllowedTiers(in.Plan) {
		allowed[t] = true
	}

	restrictTo := in.PreferredTier
	if restrictTo != "" && !allowed[restrictTo] {
		restrictTo = ""
	}

	var candidates []models.Proxy
	for _, p := range in.Candidates {
		if !allowed[p.Tier] {
			continue
		}
		if in.RecommendedTier != "" && !tierAtLeast(p.Tier, in.RecommendedTier) {
			continue
		}
		if restrictTo != "" && p.Tier != restrictTo {
			continue
		}

		health := in.Health[p.ID]
		if health != nil {
			if health.EffectiveCooldown(in.Now) {
				continue
			}
			if health.DomainBlocked(in.Domain, in.Now, time.Hour) {
				continue
			}
		}

		candidates = append(candidates, p)
	}

	if len(candidates) == 0 {
		return nil, &ErrNoProxyAvailable{Domain: in.Domain}
	}

	var maxLatency float64
	for _, p := range candidates {
		if h := in.Health[p.ID]; h != nil && h.AvgLatencyMs > maxLatency {
			maxLatency = h.AvgLatencyMs
		}
	}

	type scored struct {
		proxy      models.Proxy
		score      float64
		lastUsedAt time.Time
	}
	scoredList := make([]scored, 0, len(candidates))

	for _, p := range candidates {
		h := in.Health[p.ID]
		successRate := 1.0
		normalizedLatency := 0.0
		var lastUsed time.Time
		recencyBoost := 0.5
		if in.GeoPreferredCountry != "" && p.Country == in.GeoPreferredCountry {
			recencyBoost += 0.25
		}

		if h != nil {
			successRate = h.SuccessRate
			if maxLatency > 0 {
				normalizedLatency = h.AvgLatencyMs / maxLatency
			}
			lastUsed = h.LastUsedAt
			if !lastUsed.IsZero() && in.Now.Sub(lastUsed) > time.Hour {
				recencyBoost = 1.0
			}
		}

		score := 0.5*successRate + 0.3*(1-normalizedLatency) + 0.2*recencyBoost
		scoredList = append(scoredList, scored{proxy: p, score: score, lastUsedAt: lastUsed})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].score != scoredList[j].score {
			return scoredList[i].score > scoredList[j].score
		}
		return scoredList[i].lastUsedAt.Before(scoredList[j].lastUsedAt)
	})

	winner := scoredList[0].proxy
	return &winner, nil
}
