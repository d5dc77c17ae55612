// Package quirks implements the Dynamic Handler / Quirks Registry (§4.8):
// learned per-domain deviations (pacing, required headers, anti-bot
// posture) and their application to outgoing fetch options. The trigger
// evaluation here mirrors the teacher's error_recovery.ContextAwareRulesEngine
// condition-matching idiom (field/operator pairs over the observed
// response), narrowed to the fixed trigger set §4.8 names.
package quirks

import (
	"strings"
	"sync"
	"time"

	"github.com/uzzalhcse/crawlify/internal/domainutil"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// wafBodyMarkers maps a body substring to the anti-bot vendor it implies.
var wafBodyMarkers = map[string]string{
	"cloudflare":         "cloudflare",
	"checking your browser": "cloudflare",
	"perimeterx":         "perimeterx",
	"datadome":           "datadome",
	"akamai":             "akamai",
}

// Persister is the storage boundary the registry writes through: every
// Learn call saves a snapshot right after the lock is released. Writes are
// not batched or debounced.
// A nil Persister means in-memory-only operation (tests, or a database-less
// deployment).
type Persister interface {
	SaveQuirks(q *models.SiteQuirks)
}

// Registry holds learned SiteQuirks per domain.
type Registry struct {
	mu      sync.Mutex
	sites   map[string]*models.SiteQuirks
	persist Persister
}

func NewRegistry(persist Persister) *Registry {
	return &Registry{sites: make(map[string]*models.SiteQuirks), persist: persist}
}

// Seed restores previously persisted quirks records, used to warm the
// registry on startup from storage.QuirksRepository.LoadAll.
func (r *Registry) Seed(quirks []*models.SiteQuirks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range quirks {
		r.sites[q.Domain] = q
	}
}

func (r *Registry) get(domain string) *models.SiteQuirks {
	domain = domainutil.Normalize(domain)
	q, ok := r.sites[domain]
	if !ok {
		q = &models.SiteQuirks{Domain: domain, LearnedAt: time.Now()}
		r.sites[domain] = q
	}
	return q
}

func (r *Registry) Get(domain string) *models.SiteQuirks {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.get(domainutil.Normalize(domain))
	cp := *q
	return &cp
}

// Observation is one completed attempt's outcome signals, fed into the
// learning triggers.
type Observation struct {
	Domain         string
	StatusCode     int
	BodySample     string
	SuccessHeaders map[string]string
	FailureHeaders map[string]string
}

// Learn applies the §4.8 trigger table to one observation.
func (r *Registry) Learn(obs Observation) *models.SiteQuirks {
	r.mu.Lock()

	q := r.get(obs.Domain)
	q.LastVerified = time.Now()

	switch obs.StatusCode {
	case 429:
		if q.RateLimit == nil {
			q.RateLimit = &models.RateLimitQuirk{RequestsPerSecond: 1.0}
		} else if q.RateLimit.RequestsPerSecond > 0.1 {
			q.RateLimit.StepDowns++
			q.RateLimit.RequestsPerSecond /= 2
		}
		if q.RateLimit.RequestsPerSecond > 1 {
			q.RateLimit.RequestsPerSecond = 1
		}
	case 403:
		if q.Stealth == nil {
			q.Stealth = &models.StealthQuirk{Required: true, Reason: "observed_403"}
		} else {
			q.Stealth.Required = true
		}
	}

	lowerBody := strings.ToLower(obs.BodySample)
	for marker, vendor := range wafBodyMarkers {
		if strings.Contains(lowerBody, marker) {
			severity := "medium"
			if obs.StatusCode == 403 || obs.StatusCode == 503 {
				severity = "high"
			}
			q.AntiBot = &models.AntiBotQuirk{Type: vendor, Severity: severity}
			break
		}
	}

	r.inferRequiredHeaders(q, obs)

	q.Confidence = confidenceFor(q)
	snapshot := *q
	r.mu.Unlock()

	if r.persist != nil {
		r.persist.SaveQuirks(&snapshot)
	}
	return q
}

// inferRequiredHeaders compares the headers present on a successful attempt
// against the ones present on a failing attempt for the same domain,
// promoting any header that's only ever present on the successful side.
func (r *Registry) inferRequiredHeaders(q *models.SiteQuirks, obs Observation) {
	if len(obs.SuccessHeaders) == 0 || len(obs.FailureHeaders) == 0 {
		return
	}
	if q.RequiredHeaders == nil {
		q.RequiredHeaders = make(map[string]string)
	}
	for k, v := range obs.SuccessHeaders {
		if _, failedHadIt := obs.FailureHeaders[k]; !failedHadIt {
			q.RequiredHeaders[k] = v
		}
	}
}

func confidenceFor(q *models.SiteQuirks) float64 {
	signals := 0
	if q.RateLimit != nil {
		signals++
	}
	if q.Stealth != nil {
		signals++
	}
	if q.AntiBot != nil {
		signals++
	}
	if len(q.RequiredHeaders) > 0 {
		signals++
	}
	switch signals {
	case 0:
		return 0
	case 1:
		return 0.5
	case 2:
		return 0.7
	default:
		return 0.9
	}
}

// ApplyToFetchOptions merges quirks into a header map and reports whether
// stealth mode should be enabled. User-provided headers always win on key
// conflict.
func ApplyToFetchOptions(q *models.SiteQuirks, headers map[string]string) (merged map[string]string, stealth bool) {
	merged = make(map[string]string, len(headers)+len(q.RequiredHeaders))
	for k, v := range q.RequiredHeaders {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	stealth = q.Stealth != nil && q.Stealth.Required
	return merged, stealth
}
