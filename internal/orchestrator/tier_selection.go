package orchestrator

import (
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// selectTierSequence applies §4.1 steps 1-5 in order. Step 6 (remaining
// latency budget) is enforced per-attempt in Fetch, not here, since it
// depends on elapsed time across prior attempts.
func (o *Orchestrator) selectTierSequence(req models.Request) []models.Tier {
	order := models.DefaultTierOrder()

	if req.TierHint != nil {
		order = promote(order, *req.TierHint)
	}

	risk := o.risk.Get(req.Domain)
	if risk.RecommendedProxyTier == "premium" || risk.RiskLevel == models.RiskExtreme {
		order = dropCheapest(order, 2)
	}

	if pat := o.patterns.Find(req.URL); pat != nil && pat.Health != nil {
		if pat.Stats.Successes >= 3 && pat.Health.CurrentSuccessRate >= 0.8 {
			order = promote(order, pat.Tier)
		}
	}

	if req.Budget.MaxCostTier != nil {
		order = truncateAbove(order, *req.Budget.MaxCostTier)
	}

	return order
}

// promote moves tier to the front of the sequence without violating cost
// monotonicity: every tier cheaper than it is dropped, since the
// orchestrator must never step back down in cost once it has moved
// forward.
func promote(order []models.Tier, tier models.Tier) []models.Tier {
	idx := indexOf(order, tier)
	if idx <= 0 {
		return order
	}
	return order[idx:]
}

func dropCheapest(order []models.Tier, n int) []models.Tier {
	if n >= len(order) {
		return order[len(order)-1:]
	}
	return order[n:]
}

func truncateAbove(order []models.Tier, ceiling models.Tier) []models.Tier {
	ceilingCost := ceiling.Cost()
	out := make([]models.Tier, 0, len(order))
	for _, t := range order {
		if t.Cost() <= ceilingCost {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return order[:1]
	}
	return out
}

func indexOf(order []models.Tier, tier models.Tier) int {
	for i, t := range order {
		if t == tier {
			return i
		}
	}
	return -1
}
