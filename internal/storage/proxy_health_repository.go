package storage

import (
	"context"
	"encoding/json"

	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// ProxyHealthRepository persists per-proxy health records, backing
// proxy.HealthTracker's writes (§4.4).
type ProxyHealthRepository struct {
	db *PostgresDB
}

func NewProxyHealthRepository(db *PostgresDB) *ProxyHealthRepository {
	return &ProxyHealthRepository{db: db}
}

// SaveProxyHealth upserts one proxy's health record. Implements
// proxy.Persister; errors are logged rather than returned since the tracker
// calls this fire-and-forget after releasing its lock.
func (r *ProxyHealthRepository) SaveProxyHealth(h *models.ProxyHealth) {
	ctx := context.Background()
	perDomainJSON, err := json.Marshal(h.PerDomain)
	if err != nil {
		logger.Error("failed to marshal proxy health per_domain", zap.Error(err))
		return
	}

	query := `
		INSERT INTO proxy_health
			(proxy_id, total_requests, total_success, total_failures, consecutive_failures,
			 success_rate, avg_latency_ms, is_in_cooldown, cooldown_until, last_used_at, per_domain)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (proxy_id) DO UPDATE SET
			total_requests = EXCLUDED.total_requests,
			total_success = EXCLUDED.total_success,
			total_failures = EXCLUDED.total_failures,
			consecutive_failures = EXCLUDED.consecutive_failures,
			success_rate = EXCLUDED.success_rate,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			is_in_cooldown = EXCLUDED.is_in_cooldown,
			cooldown_until = EXCLUDED.cooldown_until,
			last_used_at = EXCLUDED.last_used_at,
			per_domain = EXCLUDED.per_domain
	`

	if _, err := r.db.Pool.Exec(ctx, query,
		h.ProxyID, h.TotalRequests, h.TotalSuccess, h.TotalFailures, h.ConsecutiveFailures,
		h.SuccessRate, h.AvgLatencyMs, h.IsInCooldown, h.CooldownUntil, h.LastUsedAt, perDomainJSON,
	); err != nil {
		logger.Error("failed to save proxy health", zap.String("proxy_id", h.ProxyID), zap.Error(err))
	}
}

// LoadAll returns every persisted proxy health record. Startup does not
// call it and HealthTracker has no method that accepts these records, so
// the tracker starts empty.
func (r *ProxyHealthRepository) LoadAll(ctx context.Context) ([]*models.ProxyHealth, error) {
	query := `
		SELECT proxy_id, total_requests, total_success, total_failures, consecutive_failures,
		       success_rate, avg_latency_ms, is_in_cooldown, cooldown_until, last_used_at, per_domain
		FROM proxy_health
	`
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ProxyHealth
	for rows.Next() {
		h := &models.ProxyHealth{}
		var perDomainJSON []byte
		if err := rows.Scan(
			&h.ProxyID, &h.TotalRequests, &h.TotalSuccess, &h.TotalFailures, &h.ConsecutiveFailures,
			&h.SuccessRate, &h.AvgLatencyMs, &h.IsInCooldown, &h.CooldownUntil, &h.LastUsedAt, &perDomainJSON,
		); err != nil {
			continue
		}
		if err := json.Unmarshal(perDomainJSON, &h.PerDomain); err != nil {
			h.PerDomain = make(map[string]*models.DomainHealth)
		}
		out = append(out, h)
	}
	return out, nil
}
