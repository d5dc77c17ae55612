// Package tracer implements the Decision Trace & Debug Recorder (§4.11):
// optional file-per-trace JSON persistence with an in-memory index for
// fast filtered queries, and a retention policy enforced on every write.
package tracer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uzzalhcse/crawlify/internal/config"
	"github.com/uzzalhcse/crawlify/internal/logger"
	"github.com/uzzalhcse/crawlify/pkg/models"
	"go.uber.org/zap"
)

// Recorder owns the trace index and enforces the retention policy.
type Recorder struct {
	mu     sync.Mutex
	cfg    config.DebugRecorderConfig
	index  []models.TraceIndexEntry
	always map[string]bool
	never  map[string]bool
}

func NewRecorder(cfg config.DebugRecorderConfig) *Recorder {
	r := &Recorder{
		cfg:    cfg,
		always: toSet(cfg.AlwaysRecordDomains),
		never:  toSet(cfg.NeverRecordDomains),
	}
	if cfg.Enabled {
		if err := os.MkdirAll(cfg.StorageDir, 0o755); err != nil {
			logger.Warn("failed to create trace storage dir", zap.Error(err))
		}
		r.loadIndex()
	}
	return r
}

func toSet(list []string) map[string]bool {
	out := make(map[string]bool, len(list))
	for _, v := range list {
		out[v] = true
	}
	return out
}

// ShouldRecord decides whether a completed trace should be persisted, per
// the global flag, per-domain allow/deny lists, and onlyRecordFailures.
func (r *Recorder) ShouldRecord(domain string, success bool) bool {
	if !r.cfg.Enabled {
		return false
	}
	if r.never[domain] {
		return false
	}
	if r.always[domain] {
		return true
	}
	if r.cfg.OnlyRecordFailures && success {
		return false
	}
	return true
}

// Record writes one sealed trace to disk and updates the in-memory index,
// enforcing retention afterward.
func (r *Recorder) Record(t *models.DecisionTrace) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	path := r.path(t.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	var tier models.Tier
	var errorKind string
	if len(t.Tiers) > 0 {
		last := t.Tiers[len(t.Tiers)-1]
		tier = last.Tier
		if last.Error != nil {
			errorKind = last.Error.Code
		}
	}

	r.mu.Lock()
	r.index = append(r.index, models.TraceIndexEntry{
		ID:        t.ID,
		Timestamp: t.CreatedAt,
		Domain:    t.Domain,
		URL:       t.URL,
		Success:   t.Success,
		Tier:      tier,
		ErrorKind: errorKind,
	})
	r.mu.Unlock()

	r.enforceRetention()
	return nil
}

func (r *Recorder) path(id string) string {
	return filepath.Join(r.cfg.StorageDir, id+".json")
}

// enforceRetention deletes traces older than maxAgeHours or, failing that,
// the oldest ones once maxTraces is exceeded. Run after every write.
func (r *Recorder) enforceRetention() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-time.Duration(r.cfg.MaxAgeHours) * time.Hour)
	kept := r.index[:0]
	for _, e := range r.index {
		if r.cfg.MaxAgeHours > 0 && e.Timestamp.Before(cutoff) {
			r.remove(e.ID)
			continue
		}
		kept = append(kept, e)
	}
	r.index = kept

	if r.cfg.MaxTraces > 0 && len(r.index) > r.cfg.MaxTraces {
		sort.Slice(r.index, func(i, j int) bool { return r.index[i].Timestamp.Before(r.index[j].Timestamp) })
		excess := len(r.index) - r.cfg.MaxTraces
		for _, e := range r.index[:excess] {
			r.remove(e.ID)
		}
		r.index = r.index[excess:]
	}
}

func (r *Recorder) remove(id string) {
	if err := os.Remove(r.path(id)); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove expired trace", zap.String("trace_id", id), zap.Error(err))
	}
}

func (r *Recorder) loadIndex() {
	entries, err := os.ReadDir(r.cfg.StorageDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.cfg.StorageDir, e.Name()))
		if err != nil {
			continue
		}
		var t models.DecisionTrace
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		var tier models.Tier
		if len(t.Tiers) > 0 {
			tier = t.Tiers[len(t.Tiers)-1].Tier
		}
		r.index = append(r.index, models.TraceIndexEntry{
			ID: t.ID, Timestamp: t.CreatedAt, Domain: t.Domain, URL: t.URL, Success: t.Success, Tier: tier,
		})
	}
}

// Query filters the in-memory index, then loads each matching trace fully.
func (r *Recorder) Query(f models.TraceFilter) ([]*models.DecisionTrace, error) {
	var urlRe *regexp.Regexp
	if f.URLRegex != "" {
		var err error
		urlRe, err = regexp.Compile(f.URLRegex)
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	var matches []models.TraceIndexEntry
	for _, e := range r.index {
		if f.Domain != "" && e.Domain != f.Domain {
			continue
		}
		if f.Tier != "" && e.Tier != f.Tier {
			continue
		}
		if f.Success != nil && e.Success != *f.Success {
			continue
		}
		if f.ErrorKind != "" && e.ErrorKind != f.ErrorKind {
			continue
		}
		if f.Since != nil && e.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && e.Timestamp.After(*f.Until) {
			continue
		}
		if urlRe != nil && !urlRe.MatchString(e.URL) {
			continue
		}
		matches = append(matches, e)
	}
	r.mu.Unlock()

	traces := make([]*models.DecisionTrace, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(r.path(m.ID))
		if err != nil {
			continue
		}
		var t models.DecisionTrace
		if err := json.Unmarshal(data, &t); err != nil {
			continue
		}
		traces = append(traces, &t)
	}
	return traces, nil
}
