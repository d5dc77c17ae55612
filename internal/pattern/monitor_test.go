package pattern

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// ============================================================================
// RecordOutcome downgrade notification
// ============================================================================

func TestHealthMonitor_RecordOutcome_EmitsNotificationOnDowngrade(t *testing.T) {
	registry := NewRegistry(nil)
	mon := NewHealthMonitor(registry)

	p := registry.Record(models.Observation{Domain: "example.com", URL: "https://example.com/a", Endpoint: "/a", Method: "GET"})

	for i := 0; i < 20; i++ {
		mon.RecordOutcome(p, true)
	}
	assert.Equal(t, models.PatternHealthy, p.Health.Status)
	assert.Empty(t, mon.PendingNotifications())

	for i := 0; i < 6; i++ {
		mon.RecordOutcome(p, false)
	}

	assert.NotEqual(t, models.PatternHealthy, p.Health.Status)
	notifs := mon.PendingNotifications()
	require.NotEmpty(t, notifs)
	assert.Equal(t, "example.com", notifs[0].Domain)
}

func TestHealthMonitor_RecordOutcome_NoNotificationWithoutDowngrade(t *testing.T) {
	registry := NewRegistry(nil)
	mon := NewHealthMonitor(registry)

	p := registry.Record(models.Observation{Domain: "example.com", URL: "https://example.com/a", Endpoint: "/a", Method: "GET"})

	mon.RecordOutcome(p, true)
	mon.RecordOutcome(p, true)

	assert.Empty(t, mon.PendingNotifications())
}

// ============================================================================
// Acknowledge
// ============================================================================

func TestHealthMonitor_Acknowledge_RemovesFromPending(t *testing.T) {
	registry := NewRegistry(nil)
	mon := NewHealthMonitor(registry)
	p := registry.Record(models.Observation{Domain: "example.com", URL: "https://example.com/a", Endpoint: "/a", Method: "GET"})

	// One success gives the pattern a known (healthy) status; a downgrade
	// from the initial unknown status never notifies.
	mon.RecordOutcome(p, true)
	for i := 0; i < 10; i++ {
		mon.RecordOutcome(p, false)
	}
	notifs := mon.PendingNotifications()
	require.NotEmpty(t, notifs)

	for _, n := range notifs {
		mon.Acknowledge(n.ID)
	}
	assert.Empty(t, mon.PendingNotifications())
}

// ============================================================================
// Start / Stop lifecycle
// ============================================================================

func TestHealthMonitor_StartStop_DoesNotBlockOrPanic(t *testing.T) {
	registry := NewRegistry(nil)
	mon := NewHealthMonitor(registry)

	done := make(chan struct{})
	go func() {
		mon.Start()
		close(done)
	}()

	require.Eventually(t, func() bool {
		mon.mu.Lock()
		defer mon.mu.Unlock()
		return mon.running
	}, time.Second, time.Millisecond, "monitor should report running shortly after Start")

	mon.Stop()
	<-done
}
