package storage

import (
	"context"
	"encoding/json"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// PatternRepository persists learned extraction patterns and their health
// records (§4.6, §4.7), backing pattern.Registry's writes.
type PatternRepository struct {
	db *PostgresDB
}

func NewPatternRepository(db *PostgresDB) *PatternRepository {
	return &PatternRepository{db: db}
}

// SavePattern upserts one pattern. Implements pattern.Persister; Save
// already logs failures, so the error is swallowed here — the registry
// calls this fire-and-forget after releasing its lock.
func (r *PatternRepository) SavePattern(p *models.Pattern) {
	_ = r.Save(context.Background(), p)
}

func (r *PatternRepository) Save(ctx context.Context, p *models.Pattern) error {
	paramsJSON, _ := json.Marshal(p.Parameters)
	shapeJSON, _ := json.Marshal(p.ResponseShape)
	selectorsJSON, _ := json.Marshal(p.Selectors)
	examplesJSON, _ := json.Marshal(p.Examples)
	statsJSON, _ := json.Marshal(p.Stats)
	healthJSON, err := json.Marshal(p.Health)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO patterns
			(id, domain, endpoint, method, url_pattern, parameters, response_shape, selectors,
			 tier, examples, stats, health, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			parameters = EXCLUDED.parameters,
			response_shape = EXCLUDED.response_shape,
			selectors = EXCLUDED.selectors,
			tier = EXCLUDED.tier,
			examples = EXCLUDED.examples,
			stats = EXCLUDED.stats,
			health = EXCLUDED.health,
			archived = EXCLUDED.archived,
			updated_at = EXCLUDED.updated_at
	`
	_, err = r.db.Pool.Exec(ctx, query,
		p.ID, p.Domain, p.Endpoint, p.Method, p.URLPattern, paramsJSON, shapeJSON, selectorsJSON,
		p.Tier, examplesJSON, statsJSON, healthJSON, p.Archived, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		logger.Error("failed to save pattern", zap.String("pattern_id", p.ID), zap.Error(err))
		return err
	}
	return nil
}

func (r *PatternRepository) LoadAll(ctx context.Context) ([]*models.Pattern, error) {
	query := `
		SELECT id, domain, endpoint, method, url_pattern, parameters, response_shape, selectors,
		       tier, examples, stats, health, archived, created_at, updated_at
		FROM patterns
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Pattern
	for rows.Next() {
		p := &models.Pattern{}
		var paramsJSON, shapeJSON, selectorsJSON, examplesJSON, statsJSON, healthJSON []byte
		if err := rows.Scan(
			&p.ID, &p.Domain, &p.Endpoint, &p.Method, &p.URLPattern, &paramsJSON, &shapeJSON, &selectorsJSON,
			&p.Tier, &examplesJSON, &statsJSON, &healthJSON, &p.Archived, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			continue
		}
		json.Unmarshal(paramsJSON, &p.Parameters)
		json.Unmarshal(shapeJSON, &p.ResponseShape)
		json.Unmarshal(selectorsJSON, &p.Selectors)
		json.Unmarshal(examplesJSON, &p.Examples)
		json.Unmarshal(statsJSON, &p.Stats)
		json.Unmarshal(healthJSON, &p.Health)
		out = append(out, p)
	}
	return out, nil
}

func (r *PatternRepository) GetByID(ctx context.Context, id string) (*models.Pattern, error) {
	query := `
		SELECT id, domain, endpoint, method, url_pattern, parameters, response_shape, selectors,
		       tier, examples, stats, health, archived, created_at, updated_at
		FROM patterns WHERE id = $1
	`
	p := &models.Pattern{}
	var paramsJSON, shapeJSON, selectorsJSON, examplesJSON, statsJSON, healthJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Domain, &p.Endpoint, &p.Method, &p.URLPattern, &paramsJSON, &shapeJSON, &selectorsJSON,
		&p.Tier, &examplesJSON, &statsJSON, &healthJSON, &p.Archived, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(paramsJSON, &p.Parameters)
	json.Unmarshal(shapeJSON, &p.ResponseShape)
	json.Unmarshal(selectorsJSON, &p.Selectors)
	json.Unmarshal(examplesJSON, &p.Examples)
	json.Unmarshal(statsJSON, &p.Stats)
	json.Unmarshal(healthJSON, &p.Health)
	return p, nil
}
