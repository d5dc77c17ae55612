// Package pattern implements the API Pattern Registry (§4.6) and Pattern
// Health Monitor (§4.7): learned extraction recipes per domain, their live
// quality tracking, and the event stream both feed into the Domain Group
// Learner.
package pattern

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uzzalhcse/crawlify/internal/domainutil"
	"github.com/uzzalhcse/crawlify/internal/urlgen"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// EventSink receives every learning event the registry emits. The Domain
// Group Learner is the primary consumer.
type EventSink interface {
	OnPatternEvent(models.PatternEvent)
}

// Persister is the storage boundary the registry writes through: every
// mutation saves a copy of the pattern right after the lock is released.
// Writes are not batched or debounced.
// A nil Persister means in-memory-only operation (tests, or a database-less
// deployment).
type Persister interface {
	SavePattern(p *models.Pattern)
}

// Registry persists and retrieves patterns per domain.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*models.Pattern
	byDomain map[string][]*models.Pattern

	sinks   []EventSink
	persist Persister
}

func NewRegistry(persist Persister) *Registry {
	return &Registry{
		byID:     make(map[string]*models.Pattern),
		byDomain: make(map[string][]*models.Pattern),
		persist:  persist,
	}
}

// Seed restores previously persisted patterns, used to warm the registry on
// startup from storage.PatternRepository.LoadAll.
func (r *Registry) Seed(patterns []*models.Pattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range patterns {
		r.byID[p.ID] = p
		r.byDomain[p.Domain] = append(r.byDomain[p.Domain], p)
	}
}

func (r *Registry) persistSnapshot(p *models.Pattern) {
	if r.persist != nil {
		cp := *p
		r.persist.SavePattern(&cp)
	}
}

func (r *Registry) Subscribe(sink EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

func (r *Registry) emit(ev models.PatternEvent) {
	ev.At = time.Now()
	for _, s := range r.sinks {
		s.OnPatternEvent(ev)
	}
}

// Record folds a successful extraction's observation into a pattern,
// creating one if this (domain, endpoint, method) combination is new.
func (r *Registry) Record(obs models.Observation) *models.Pattern {
	domain := domainutil.Normalize(obs.Domain)
	urlPattern := urlgen.Generalize(obs.URL)

	r.mu.Lock()

	for _, p := range r.byDomain[domain] {
		if p.Endpoint == obs.Endpoint && p.Method == obs.Method {
			p.Stats.Uses++
			p.Stats.Successes++
			p.Selectors = obs.Selectors
			p.ResponseShape = obs.ResponseShape
			p.UpdatedAt = time.Now()
			if len(p.Examples) < 20 {
				p.Examples = append(p.Examples, obs.URL)
			}
			r.emit(models.PatternEvent{Type: models.PatternEventUsed, PatternID: p.ID, SourceDomain: domain, Success: true})
			r.mu.Unlock()
			r.persistSnapshot(p)
			return p
		}
	}

	p := &models.Pattern{
		ID:            uuid.NewString(),
		Domain:        domain,
		Endpoint:      obs.Endpoint,
		Method:        obs.Method,
		URLPattern:    urlPattern,
		ResponseShape: obs.ResponseShape,
		Selectors:     obs.Selectors,
		Tier:          obs.Tier,
		Examples:      []string{obs.URL},
		Stats:         models.PatternStats{Uses: 1, Successes: 1},
		Health:        models.NewPatternHealth(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.byID[p.ID] = p
	r.byDomain[domain] = append(r.byDomain[domain], p)

	r.emit(models.PatternEvent{Type: models.PatternEventCreated, PatternID: p.ID, SourceDomain: domain, Success: true})
	r.mu.Unlock()
	r.persistSnapshot(p)
	return p
}

// Find returns the best matching, non-archived pattern for a URL, or nil.
// Matching first restricts to the URL's domain, then picks the pattern
// whose generalized URL template equals the request's own generalized
// form, breaking ties by most total uses.
func (r *Registry) Find(rawURL string) *models.Pattern {
	domain := domainutil.FromURL(rawURL)
	generalized := urlgen.Generalize(rawURL)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *models.Pattern
	for _, p := range r.byDomain[domain] {
		if p.Archived {
			continue
		}
		if p.URLPattern != generalized {
			continue
		}
		if best == nil || p.Stats.Uses > best.Stats.Uses {
			best = p
		}
	}
	return best
}

// Transfer creates a candidate pattern on targetDomain seeded from a
// pattern already proven on sourceDomain, and emits pattern_transferred.
// The new pattern starts with zero stats — its own usage must earn trust.
func (r *Registry) Transfer(sourcePatternID, targetDomain, reason string) *models.Pattern {
	r.mu.Lock()

	source, ok := r.byID[sourcePatternID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	domain := domainutil.Normalize(targetDomain)

	candidate := &models.Pattern{
		ID:            uuid.NewString(),
		Domain:        domain,
		Endpoint:      source.Endpoint,
		Method:        source.Method,
		URLPattern:    source.URLPattern,
		ResponseShape: source.ResponseShape,
		Selectors:     source.Selectors,
		Tier:          source.Tier,
		Health:        models.NewPatternHealth(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	r.byID[candidate.ID] = candidate
	r.byDomain[domain] = append(r.byDomain[domain], candidate)

	r.emit(models.PatternEvent{
		Type:         models.PatternEventTransferred,
		PatternID:    candidate.ID,
		SourceDomain: source.Domain,
		TargetDomain: domain,
		Success:      true,
		Reason:       reason,
	})
	r.mu.Unlock()
	r.persistSnapshot(candidate)
	return candidate
}

// ReportOutcome feeds one usage outcome into a pattern's health, reporting
// pattern_used so the Domain Group Learner can track transfer success.
func (r *Registry) ReportOutcome(patternID string, success bool) *models.Pattern {
	r.mu.Lock()

	p, ok := r.byID[patternID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	p.Stats.Uses++
	if success {
		p.Stats.Successes++
	}
	p.UpdatedAt = time.Now()

	r.emit(models.PatternEvent{Type: models.PatternEventUsed, PatternID: p.ID, SourceDomain: p.Domain, Success: success})
	r.mu.Unlock()
	r.persistSnapshot(p)
	return p
}

func (r *Registry) Archive(patternID string) {
	r.mu.Lock()
	p, ok := r.byID[patternID]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.Archived = true
	p.UpdatedAt = time.Now()
	r.emit(models.PatternEvent{Type: models.PatternEventArchived, PatternID: p.ID, SourceDomain: p.Domain, Success: false})
	r.mu.Unlock()
	r.persistSnapshot(p)
}

func (r *Registry) Get(patternID string) *models.Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[patternID]
}

// Unhealthy returns every non-archived pattern whose health has dropped
// below PatternHealthy, for the admin-facing health query (§6).
func (r *Registry) Unhealthy() []*models.Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Pattern
	for _, p := range r.byID {
		if p.Archived || p.Health == nil {
			continue
		}
		if p.Health.Status != models.PatternHealthy {
			out = append(out, p)
		}
	}
	return out
}
