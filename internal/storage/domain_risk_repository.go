package storage

import (
	"context"
	"encoding/json"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// DomainRiskRepository persists the Domain Risk Classifier's per-domain
// classification (§4.5), backing proxy.RiskClassifier's writes.
type DomainRiskRepository struct {
	db *PostgresDB
}

func NewDomainRiskRepository(db *PostgresDB) *DomainRiskRepository {
	return &DomainRiskRepository{db: db}
}

// SaveDomainRisk upserts one domain's risk record. Implements
// proxy.RiskPersister; Save already logs failures, so the error is simply
// swallowed here — the classifier calls this fire-and-forget after
// releasing its lock.
func (r *DomainRiskRepository) SaveDomainRisk(risk *models.DomainRisk) {
	_ = r.Save(context.Background(), risk)
}

func (r *DomainRiskRepository) Save(ctx context.Context, risk *models.DomainRisk) error {
	factorsJSON, err := json.Marshal(risk.Factors)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO domain_risk
			(domain, risk_level, factors, recommended_proxy_tier, recommended_delay_ms,
			 last_observed_at, consecutive_clean)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (domain) DO UPDATE SET
			risk_level = EXCLUDED.risk_level,
			factors = EXCLUDED.factors,
			recommended_proxy_tier = EXCLUDED.recommended_proxy_tier,
			recommended_delay_ms = EXCLUDED.recommended_delay_ms,
			last_observed_at = EXCLUDED.last_observed_at,
			consecutive_clean = EXCLUDED.consecutive_clean
	`
	_, err = r.db.Pool.Exec(ctx, query,
		risk.Domain, risk.RiskLevel, factorsJSON, risk.RecommendedProxyTier, risk.RecommendedDelayMs,
		risk.LastObservedAt, risk.ConsecutiveClean,
	)
	if err != nil {
		logger.Error("failed to save domain risk", zap.String("domain", risk.Domain), zap.Error(err))
		return err
	}
	return nil
}

func (r *DomainRiskRepository) LoadAll(ctx context.Context) ([]*models.DomainRisk, error) {
	query := `
		SELECT domain, risk_level, factors, recommended_proxy_tier, recommended_delay_ms,
		       last_observed_at, consecutive_clean
		FROM domain_risk
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DomainRisk
	for rows.Next() {
		risk := &models.DomainRisk{}
		var factorsJSON []byte
		if err := rows.Scan(
			&risk.Domain, &risk.RiskLevel, &factorsJSON, &risk.RecommendedProxyTier, &risk.RecommendedDelayMs,
			&risk.LastObservedAt, &risk.ConsecutiveClean,
		); err != nil {
			continue
		}
		json.Unmarshal(factorsJSON, &risk.Factors)
		out = append(out, risk)
	}
	return out, nil
}
