package storage

import (
	"context"
	"encoding/json"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// QuirksRepository persists learned per-domain site quirks (§4.8).
type QuirksRepository struct {
	db *PostgresDB
}

func NewQuirksRepository(db *PostgresDB) *QuirksRepository {
	return &QuirksRepository{db: db}
}

// SaveQuirks upserts one domain's quirks record. Implements quirks.Persister;
// Save already logs failures, so the error is swallowed here — the registry
// calls this fire-and-forget after releasing its lock.
func (r *QuirksRepository) SaveQuirks(q *models.SiteQuirks) {
	_ = r.Save(context.Background(), q)
}

func (r *QuirksRepository) Save(ctx context.Context, q *models.SiteQuirks) error {
	headersJSON, _ := json.Marshal(q.RequiredHeaders)
	rateLimitJSON, _ := json.Marshal(q.RateLimit)
	stealthJSON, _ := json.Marshal(q.Stealth)
	antiBotJSON, _ := json.Marshal(q.AntiBot)
	transformsJSON, err := json.Marshal(q.ResponseTransforms)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO site_quirks
			(domain, required_headers, rate_limit, stealth, anti_bot, response_transforms,
			 confidence, learned_at, last_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (domain) DO UPDATE SET
			required_headers = EXCLUDED.required_headers,
			rate_limit = EXCLUDED.rate_limit,
			stealth = EXCLUDED.stealth,
			anti_bot = EXCLUDED.anti_bot,
			response_transforms = EXCLUDED.response_transforms,
			confidence = EXCLUDED.confidence,
			last_verified = EXCLUDED.last_verified
	`
	_, err = r.db.Pool.Exec(ctx, query,
		q.Domain, headersJSON, rateLimitJSON, stealthJSON, antiBotJSON, transformsJSON,
		q.Confidence, q.LearnedAt, q.LastVerified,
	)
	if err != nil {
		logger.Error("failed to save site quirks", zap.String("domain", q.Domain), zap.Error(err))
		return err
	}
	return nil
}

func (r *QuirksRepository) LoadAll(ctx context.Context) ([]*models.SiteQuirks, error) {
	query := `
		SELECT domain, required_headers, rate_limit, stealth, anti_bot, response_transforms,
		       confidence, learned_at, last_verified
		FROM site_quirks
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SiteQuirks
	for rows.Next() {
		q := &models.SiteQuirks{}
		var headersJSON, rateLimitJSON, stealthJSON, antiBotJSON, transformsJSON []byte
		if err := rows.Scan(
			&q.Domain, &headersJSON, &rateLimitJSON, &stealthJSON, &antiBotJSON, &transformsJSON,
			&q.Confidence, &q.LearnedAt, &q.LastVerified,
		); err != nil {
			continue
		}
		json.Unmarshal(headersJSON, &q.RequiredHeaders)
		json.Unmarshal(rateLimitJSON, &q.RateLimit)
		json.Unmarshal(stealthJSON, &q.Stealth)
		json.Unmarshal(antiBotJSON, &q.AntiBot)
		json.Unmarshal(transformsJSON, &q.ResponseTransforms)
		out = append(out, q)
	}
	return out, nil
}
