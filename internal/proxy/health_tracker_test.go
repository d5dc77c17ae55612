package proxy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

type recordingPersister struct {
	saves []*models.ProxyHealth
}

func (p *recordingPersister) SaveProxyHealth(h *models.ProxyHealth) {
	p.saves = append(p.saves, h)
}

// ============================================================================
// Persistence on success/failure
// ============================================================================

func TestHealthTracker_ReportSuccess_PersistsSnapshot(t *testing.T) {
	persist := &recordingPersister{}
	tr := NewHealthTracker(persist)

	tr.ReportSuccess("p1", "example.com", 120)

	require.Len(t, persist.saves, 1)
	assert.Equal(t, "p1", persist.saves[0].ProxyID)
}

func TestHealthTracker_ReportFailure_PersistsSnapshot(t *testing.T) {
	persist := &recordingPersister{}
	tr := NewHealthTracker(persist)

	tr.ReportFailure("p1", "example.com", FailureBlocked)

	require.Len(t, persist.saves, 1)
}

func TestHealthTracker_NilPersisterIsInMemoryOnly(t *testing.T) {
	tr := NewHealthTracker(nil)

	assert.NotPanics(t, func() {
		tr.ReportSuccess("p1", "example.com", 50)
	})
}

// ============================================================================
// Snapshot isolation: callers can't mutate tracked state
// ============================================================================

func TestHealthTracker_Snapshot_ReturnsACopyNotALiveReference(t *testing.T) {
	tr := NewHealthTracker(nil)
	tr.ReportSuccess("p1", "example.com", 50)

	snap := tr.Snapshot("p1")
	snap.IsInCooldown = true

	fresh := tr.Snapshot("p1")
	assert.False(t, fresh.IsInCooldown, "mutating a snapshot must not affect tracked state")
}

func TestHealthTracker_AllSnapshots_ReturnsOneEntryPerProxy(t *testing.T) {
	tr := NewHealthTracker(nil)
	tr.ReportSuccess("p1", "example.com", 50)
	tr.ReportSuccess("p2", "example.com", 80)

	all := tr.AllSnapshots()
	assert.Len(t, all, 2)
}

// ============================================================================
// Admin overrides
// ============================================================================

func TestHealthTracker_ForceCooldown_SetsCooldownUntil(t *testing.T) {
	tr := NewHealthTracker(nil)

	tr.ForceCooldown("p1", 5*time.Minute)

	snap := tr.Snapshot("p1")
	assert.True(t, snap.IsInCooldown)
	require.NotNil(t, snap.CooldownUntil)
}

func TestHealthTracker_ClearCooldown_ResetsForcedCooldown(t *testing.T) {
	tr := NewHealthTracker(nil)
	tr.ForceCooldown("p1", 5*time.Minute)

	tr.ClearCooldown("p1")

	snap := tr.Snapshot("p1")
	assert.False(t, snap.IsInCooldown)
	assert.Nil(t, snap.CooldownUntil)
}

func TestHealthTracker_ClearDomainBlocks_UnblocksTrackedDomain(t *testing.T) {
	tr := NewHealthTracker(nil)
	tr.ReportFailure("p1", "example.com", FailureBlocked)
	for i := 0; i < 10; i++ {
		tr.ReportFailure("p1", "example.com", FailureBlocked)
	}
	require.NotNil(t, tr.Snapshot("p1").PerDomain["example.com"].BlockedSince)

	tr.ClearDomainBlocks("example.com")

	assert.Nil(t, tr.Snapshot("p1").PerDomain["example.com"].BlockedSince)
}
