package grouplearn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// ============================================================================
// Observe / pair accumulation
// ============================================================================

func TestLearner_Observe_AccumulatesSuccessRate(t *testing.T) {
	l := NewLearner(nil, nil)

	l.Observe("a.com", "b.com", true, nil)
	l.Observe("b.com", "a.com", true, nil)
	l.Observe("a.com", "b.com", false, nil)

	// Mixed-order pair keys feed the same relationship.
	rel := l.relationships[[2]string{"a.com", "b.com"}]
	require.NotNil(t, rel)
	assert.Equal(t, 3, rel.Count)
	assert.Equal(t, 2, rel.Successes)
	assert.InDelta(t, 2.0/3.0, rel.SuccessRate, 1e-9)
}

func TestLearner_OnPatternEvent_IgnoresNonTransferEvents(t *testing.T) {
	l := NewLearner(nil, nil)

	l.OnPatternEvent(models.PatternEvent{Type: models.PatternEventCreated, SourceDomain: "a.com", TargetDomain: "b.com", Success: true})

	groups := l.DiscoverGroups()
	assert.Empty(t, groups)
}

func TestLearner_OnPatternEvent_FoldsTransferredEvents(t *testing.T) {
	l := NewLearner(nil, nil)

	for i := 0; i < 3; i++ {
		l.OnPatternEvent(models.PatternEvent{Type: models.PatternEventTransferred, SourceDomain: "a.com", TargetDomain: "b.com", Success: true})
	}

	groups := l.DiscoverGroups()
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a.com", "b.com"}, groups[0].Domains)
}

// ============================================================================
// DiscoverGroups: strength threshold
// ============================================================================

func TestLearner_DiscoverGroups_RequiresStrongRelationship(t *testing.T) {
	l := NewLearner(nil, nil)

	// Only 1 success: below IsStrong's Successes>=2 bar.
	l.Observe("a.com", "b.com", true, nil)

	assert.Empty(t, l.DiscoverGroups())
}

func TestLearner_DiscoverGroups_UnionsTransitiveRelationships(t *testing.T) {
	l := NewLearner(nil, nil)

	for i := 0; i < 3; i++ {
		l.Observe("a.com", "b.com", true, nil)
		l.Observe("b.com", "c.com", true, nil)
	}

	groups := l.DiscoverGroups()
	require.Len(t, groups, 1)
	assert.ElementsMatch(t, []string{"a.com", "b.com", "c.com"}, groups[0].Domains)
}

// ============================================================================
// overlapsExisting
// ============================================================================

func TestLearner_DiscoverGroups_SkipsGroupsOverlappingExisting(t *testing.T) {
	existing := []models.DomainGroup{
		{Name: "seed", Domains: []string{"a.com", "b.com"}, Source: models.GroupSourceHardcoded, Registered: true},
	}
	l := NewLearner(existing, nil)

	for i := 0; i < 3; i++ {
		l.Observe("a.com", "b.com", true, nil)
	}

	assert.Empty(t, l.DiscoverGroups(), "a group fully covered by an existing one should be excluded")
}

// ============================================================================
// RegisterExisting
// ============================================================================

type recordingPersister struct {
	saves []*models.DomainGroup
}

func (p *recordingPersister) SaveDomainGroup(g *models.DomainGroup) {
	p.saves = append(p.saves, g)
}

func TestLearner_RegisterExisting_PersistsOnlyRegisteredGroups(t *testing.T) {
	persist := &recordingPersister{}
	l := NewLearner(nil, persist)

	l.RegisterExisting([]models.DomainGroup{
		{Name: "registered", Domains: []string{"x.com", "y.com"}, Registered: true},
		{Name: "not-registered", Domains: []string{"p.com", "q.com"}, Registered: false},
	})

	require.Len(t, persist.saves, 1)
	assert.Equal(t, "registered", persist.saves[0].Name)
}

func TestLearner_RegisterExisting_NilPersisterIsInMemoryOnly(t *testing.T) {
	l := NewLearner(nil, nil)

	assert.NotPanics(t, func() {
		l.RegisterExisting([]models.DomainGroup{{Name: "g", Domains: []string{"x.com", "y.com"}, Registered: true}})
	})
}

func TestLearner_RegisterExisting_OnlyKeepsRegisteredGroups(t *testing.T) {
	l := NewLearner(nil, nil)

	l.RegisterExisting([]models.DomainGroup{
		{Domains: []string{"x.com", "y.com"}, Registered: true},
		{Domains: []string{"p.com", "q.com"}, Registered: false},
	})

	for i := 0; i < 3; i++ {
		l.Observe("x.com", "y.com", true, nil)
		l.Observe("p.com", "q.com", true, nil)
	}

	groups := l.DiscoverGroups()
	var names [][]string
	for _, g := range groups {
		names = append(names, g.Domains)
	}
	assert.Contains(t, names, []string{"p.com", "q.com"}, "p/q was not marked registered so it's still discoverable")
}
