package storage

import (
	"context"
	"encoding/json"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// DomainGroupRepository persists discovered and hardcoded domain groups
// (§4.9), seeding grouplearn.Learner's overlap check on startup.
type DomainGroupRepository struct {
	db *PostgresDB
}

func NewDomainGroupRepository(db *PostgresDB) *DomainGroupRepository {
	return &DomainGroupRepository{db: db}
}

// SaveDomainGroup upserts one domain group. Implements grouplearn.Persister;
// Save already logs failures, so the error is swallowed here — the learner
// calls this fire-and-forget after releasing its lock.
func (r *DomainGroupRepository) SaveDomainGroup(g *models.DomainGroup) {
	_ = r.Save(context.Background(), g)
}

func (r *DomainGroupRepository) Save(ctx context.Context, g *models.DomainGroup) error {
	domainsJSON, _ := json.Marshal(g.Domains)
	evidenceJSON, err := json.Marshal(g.Evidence)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO domain_groups (name, domains, source, confidence, evidence, registered)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name) DO UPDATE SET
			domains = EXCLUDED.domains,
			confidence = EXCLUDED.confidence,
			evidence = EXCLUDED.evidence,
			registered = EXCLUDED.registered
	`
	_, err = r.db.Pool.Exec(ctx, query, g.Name, domainsJSON, g.Source, g.Confidence, evidenceJSON, g.Registered)
	if err != nil {
		logger.Error("failed to save domain group", zap.String("name", g.Name), zap.Error(err))
		return err
	}
	return nil
}

func (r *DomainGroupRepository) LoadAll(ctx context.Context) ([]models.DomainGroup, error) {
	query := `SELECT name, domains, source, confidence, evidence, registered FROM domain_groups`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DomainGroup
	for rows.Next() {
		g := models.DomainGroup{}
		var domainsJSON, evidenceJSON []byte
		if err := rows.Scan(&g.Name, &domainsJSON, &g.Source, &g.Confidence, &evidenceJSON, &g.Registered); err != nil {
			continue
		}
		json.Unmarshal(domainsJSON, &g.Domains)
		json.Unmarshal(evidenceJSON, &g.Evidence)
		out = append(out, g)
	}
	return out, nil
}
