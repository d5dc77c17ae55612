// Package grouplearn implements the Domain Group Learner (§4.9): it
// consumes the pattern registry's pattern_transferred/pattern_used event
// stream, accumulates per-pair transfer relationships, and runs Union-Find
// over "strong" relationships to discover candidate domain groups.
package grouplearn

import (
	"sort"
	"sync"
	"time"

	"github.com/uzzalhcse/crawlify/internal/domainutil"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/internal/unionfind"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// Persister is the storage boundary the learner writes through:
// RegisterExisting saves each newly registered group right after it
// releases its lock. Writes are not batched or debounced.
// A nil Persister means in-memory-only operation (tests, or a database-less
// deployment).
type Persister interface {
	SaveDomainGroup(g *models.DomainGroup)
}

func pairKey(a, b string) (string, string) {
	a, b = domainutil.Normalize(a), domainutil.Normalize(b)
	if a > b {
		a, b = b, a
	}
	return a, b
}

// Learner accumulates relationship evidence and derives domain groups.
type Learner struct {
	mu            sync.Mutex
	relationships map[[2]string]*models.PairRelationship
	existing      []models.DomainGroup // hardcoded + previously learned, for overlap checks

	persist  Persister
	stopChan chan struct{}
	running  bool
}

func NewLearner(seed []models.DomainGroup, persist Persister) *Learner {
	return &Learner{
		relationships: make(map[[2]string]*models.PairRelationship),
		existing:      seed,
		persist:       persist,
		stopChan:      make(chan struct{}),
	}
}

// Start runs a periodic discovery sweep — DiscoverGroups followed by
// RegisterExisting for whatever it finds — mirroring the teacher's
// pattern.HealthMonitor ticker idiom.
func (l *Learner) Start(interval time.Duration) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	logger.Info("domain group learner started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if groups := l.DiscoverGroups(); len(groups) > 0 {
				l.RegisterExisting(groups)
			}
		case <-l.stopChan:
			logger.Info("domain group learner stopped")
			return
		}
	}
}

func (l *Learner) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	close(l.stopChan)
	l.running = false
}

// OnPatternEvent implements pattern.EventSink.
func (l *Learner) OnPatternEvent(ev models.PatternEvent) {
	if ev.Type != models.PatternEventTransferred && ev.Type != models.PatternEventUsed {
		return
	}
	if ev.SourceDomain == "" || ev.TargetDomain == "" {
		return
	}
	l.Observe(ev.SourceDomain, ev.TargetDomain, ev.Success, ev.Similarity)
}

// Observe folds one (sourceDomain, targetDomain, success, similarity?)
// outcome into the pair's relationship.
func (l *Learner) Observe(domainA, domainB string, success bool, similarity *float64) {
	a, b := pairKey(domainA, domainB)

	l.mu.Lock()
	defer l.mu.Unlock()

	key := [2]string{a, b}
	rel, ok := l.relationships[key]
	if !ok {
		rel = &models.PairRelationship{DomainA: a, DomainB: b}
		l.relationships[key] = rel
	}

	rel.Count++
	if success {
		rel.Successes++
	}
	rel.SuccessRate = float64(rel.Successes) / float64(rel.Count)

	if similarity != nil {
		const decay = 0.7
		if rel.AvgSimilarity == 0 {
			rel.AvgSimilarity = *similarity
		} else {
			rel.AvgSimilarity = decay*rel.AvgSimilarity + (1-decay)**similarity
		}
	}
}

// DiscoverGroups runs Union-Find over every strong relationship and
// returns candidate groups of size >= 2, each with a computed confidence.
// Groups already covered (>=70% overlap) by an existing hardcoded or
// learned group are excluded.
func (l *Learner) DiscoverGroups() []models.DomainGroup {
	l.mu.Lock()
	defer l.mu.Unlock()

	uf := unionfind.New()
	strongRels := make(map[[2]string]*models.PairRelationship)

	for key, rel := range l.relationships {
		if rel.IsStrong() {
			uf.Union(rel.DomainA, rel.DomainB)
			strongRels[key] = rel
		}
	}

	components := uf.Components()
	var groups []models.DomainGroup

	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)

		if l.overlapsExisting(members) {
			continue
		}

		groups = append(groups, l.buildGroup(members, strongRels))
	}

	return groups
}

func (l *Learner) buildGroup(members []string, strongRels map[[2]string]*models.PairRelationship) models.DomainGroup {
	var totalSuccesses, totalTransfers int
	var similaritySum float64
	var similarityCount int

	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	edges := 0
	for key, rel := range strongRels {
		if !memberSet[key[0]] || !memberSet[key[1]] {
			continue
		}
		edges++
		totalSuccesses += rel.Successes
		totalTransfers += rel.Count
		if rel.AvgSimilarity > 0 {
			similaritySum += rel.AvgSimilarity
			similarityCount++
		}
	}

	maxEdges := len(members) * (len(members) - 1) / 2
	density := 0.0
	if maxEdges > 0 {
		density = float64(edges) / float64(maxEdges)
	}

	avgSimilarity := 0.0
	if similarityCount > 0 {
		avgSimilarity = similaritySum / float64(similarityCount)
	}

	successRate := 0.0
	if totalTransfers > 0 {
		successRate = float64(totalSuccesses) / float64(totalTransfers)
	}
	saturatedSuccesses := float64(totalSuccesses)
	if saturatedSuccesses > 10 {
		saturatedSuccesses = 10
	}

	confidence := 0.4*successRate + 0.3*(saturatedSuccesses/10) + 0.2*density + 0.1*avgSimilarity

	return models.DomainGroup{
		Name:       "group_" + members[0],
		Domains:    members,
		Source:     models.GroupSourceTransferLearning,
		Confidence: confidence,
		Evidence: models.GroupEvidence{
			Transfers:     totalTransfers,
			Successes:     totalSuccesses,
			AvgSimilarity: avgSimilarity,
		},
		Registered: confidence >= 0.7,
	}
}

// overlapsExisting reports whether the candidate member set shares >=70%
// of its members with any existing group.
func (l *Learner) overlapsExisting(members []string) bool {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	for _, g := range l.existing {
		shared := 0
		for _, d := range g.Domains {
			if memberSet[domainutil.Normalize(d)] {
				shared++
			}
		}
		smaller := len(members)
		if len(g.Domains) < smaller {
			smaller = len(g.Domains)
		}
		if smaller == 0 {
			continue
		}
		if float64(shared)/float64(smaller) >= 0.7 {
			return true
		}
	}
	return false
}

// RegisterExisting folds newly auto-registered groups into the existing
// set so future overlap checks account for them, and persists each one.
func (l *Learner) RegisterExisting(groups []models.DomainGroup) {
	l.mu.Lock()
	var toPersist []models.DomainGroup
	for _, g := range groups {
		if g.Registered {
			l.existing = append(l.existing, g)
			toPersist = append(toPersist, g)
		}
	}
	l.mu.Unlock()

	if l.persist == nil {
		return
	}
	for i := range toPersist {
		l.persist.SaveDomainGroup(&toPersist[i])
	}
}
