package pattern

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// HealthMonitor tracks the live quality of learned patterns (§4.7) and
// runs an hourly snapshot ticker in the teacher's scheduler idiom
// (monitoring.SchedulerService), scaled down to an in-process goroutine
// rather than a cron-backed external schedule.
type HealthMonitor struct {
	mu            sync.Mutex
	registry      *Registry
	notifications []models.HealthNotification

	stopChan chan struct{}
	running  bool
}

func NewHealthMonitor(registry *Registry) *HealthMonitor {
	return &HealthMonitor{registry: registry, stopChan: make(chan struct{})}
}

// RecordOutcome folds a pattern usage outcome into its health, applying the
// §4.7 status function and emitting a HealthNotification on any downgrade.
func (m *HealthMonitor) RecordOutcome(p *models.Pattern, success bool) {
	if p.Health == nil {
		p.Health = models.NewPatternHealth()
	}

	prevStatus := p.Health.Status
	p.Health.RecordOutcome(success)
	newStatus := p.Health.ClassifyStatus()

	if newStatus.IsDowngradeFrom(prevStatus) {
		now := time.Now()
		p.Health.DegradationDetectedAt = &now
		actions := recommendedActions(newStatus)
		p.Health.RecommendedActions = actions

		notif := models.HealthNotification{
			ID:               uuid.NewString(),
			Domain:           p.Domain,
			Endpoint:         p.Endpoint,
			PreviousStatus:   prevStatus,
			NewStatus:        newStatus,
			SuccessRate:      p.Health.CurrentSuccessRate,
			SuggestedActions: actions,
			CreatedAt:        now,
		}

		m.mu.Lock()
		m.notifications = append(m.notifications, notif)
		m.mu.Unlock()

		logger.Warn("pattern health downgraded",
			zap.String("domain", p.Domain),
			zap.String("endpoint", p.Endpoint),
			zap.String("previous_status", string(prevStatus)),
			zap.String("new_status", string(newStatus)),
		)
	}
	p.Health.Status = newStatus
}

// recommendedActions is the §4.7 rule table from status to suggested fix.
func recommendedActions(status models.PatternStatus) []string {
	switch status {
	case models.PatternDegraded:
		return []string{"relearn_pattern"}
	case models.PatternFailing:
		return []string{"relearn_pattern", "switch_tier(playwright)"}
	case models.PatternBroken:
		return []string{"switch_tier(playwright)", "enable_stealth", "pause_pattern"}
	default:
		return nil
	}
}

// PendingNotifications returns queued, unacknowledged notifications.
func (m *HealthMonitor) PendingNotifications() []models.HealthNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.HealthNotification, 0, len(m.notifications))
	for _, n := range m.notifications {
		if !n.Acknowledged {
			out = append(out, n)
		}
	}
	return out
}

func (m *HealthMonitor) Acknowledge(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.notifications {
		if m.notifications[i].ID == id {
			m.notifications[i].Acknowledged = true
			return
		}
	}
}

// Start runs the hourly snapshot sweep over every pattern in the registry,
// mirroring the teacher's SchedulerService ticker loop.
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	logger.Info("pattern health monitor started")
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.snapshotAll()
		case <-m.stopChan:
			logger.Info("pattern health monitor stopped")
			return
		}
	}
}

func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	close(m.stopChan)
	m.running = false
}

func (m *HealthMonitor) snapshotAll() {
	now := time.Now()
	m.registry.mu.RLock()
	defer m.registry.mu.RUnlock()
	for _, p := range m.registry.byID {
		if p.Health != nil {
			p.Health.MaybeSnapshot(now)
		}
	}
}
