package models

import "time"

// PatternStatus is the live-quality classification of a learned pattern.
type PatternStatus string

const (
	PatternHealthy  PatternStatus = "healthy"
	PatternDegraded PatternStatus = "degraded"
	PatternFailing  PatternStatus = "failing"
	PatternBroken   PatternStatus = "broken"
)

// statusRank gives the monotonic ordering used to detect a downgrade.
var statusRank = map[PatternStatus]int{
	PatternHealthy:  0,
	PatternDegraded: 1,
	PatternFailing:  2,
	PatternBroken:   3,
}

// IsDowngradeFrom reports whether moving from prev to the receiver is a
// downgrade (prev is a known, non-empty status and the receiver ranks worse).
func (s PatternStatus) IsDowngradeFrom(prev PatternStatus) bool {
	if prev == "" {
		return false
	}
	pr, ok1 := statusRank[prev]
	cr, ok2 := statusRank[s]
	return ok1 && ok2 && cr > pr
}

// PatternStats is the running use/success counters for a pattern.
type PatternStats struct {
	Uses      int64 `json:"uses"`
	Successes int64 `json:"successes"`
}

// Snapshot is one point-in-time sample of a pattern's health.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	SuccessRate float64   `json:"success_rate"`
	SampleSize  int       `json:"sample_size"`
}

// PatternHealth is the live-quality record attached to a Pattern.
type PatternHealth struct {
	Status                 PatternStatus `json:"status"`
	CurrentSuccessRate      float64       `json:"current_success_rate"`
	ConsecutiveFailures     int           `json:"consecutive_failures"`
	DegradationDetectedAt   *time.Time    `json:"degradation_detected_at,omitempty"`
	History                 []Snapshot    `json:"history"`
	RecommendedActions      []string      `json:"recommended_actions"`
	lastOutcomes            []bool        `json:"-"` // most recent outcomes, capped at 20
	lastSnapshotAt          time.Time     `json:"-"`
}

// NewPatternHealth returns a freshly-initialized health record with unknown
// status, so its first real status assignment never counts as a downgrade.
func NewPatternHealth() *PatternHealth {
	return &PatternHealth{Status: ""}
}

const maxHistorySnapshots = 168 // 1 week at hourly cadence

// RecordOutcome folds in one success/failure and returns the recomputed
// rolling success rate over the last 20 uses.
func (h *PatternHealth) RecordOutcome(success bool) float64 {
	if success {
		h.ConsecutiveFailures = 0
	} else {
		h.ConsecutiveFailures++
	}

	h.lastOutcomes = append(h.lastOutcomes, success)
	if len(h.lastOutcomes) > 20 {
		h.lastOutcomes = h.lastOutcomes[len(h.lastOutcomes)-20:]
	}

	var successes int
	for _, o := range h.lastOutcomes {
		if o {
			successes++
		}
	}
	if len(h.lastOutcomes) == 0 {
		h.CurrentSuccessRate = 1.0
	} else {
		h.CurrentSuccessRate = float64(successes) / float64(len(h.lastOutcomes))
	}
	return h.CurrentSuccessRate
}

// MaybeSnapshot appends a snapshot if at least an hour has passed since the
// last one, trimming to the retained window.
func (h *PatternHealth) MaybeSnapshot(now time.Time) {
	if !h.lastSnapshotAt.IsZero() && now.Sub(h.lastSnapshotAt) < time.Hour {
		return
	}
	h.lastSnapshotAt = now
	h.History = append(h.History, Snapshot{
		Timestamp:   now,
		SuccessRate: h.CurrentSuccessRate,
		SampleSize:  len(h.lastOutcomes),
	})
	if len(h.History) > maxHistorySnapshots {
		h.History = h.History[len(h.History)-maxHistorySnapshots:]
	}
}

// ClassifyStatus derives a status from the current rolling rate and
// consecutive-failure count, per the §4.7 thresholds.
func (h *PatternHealth) ClassifyStatus() PatternStatus {
	rate := h.CurrentSuccessRate
	fails := h.ConsecutiveFailures

	switch {
	case rate < 0.3 || fails >= 10:
		return PatternBroken
	case (rate >= 0.3 && rate < 0.7) || (fails >= 5 && fails <= 9):
		return PatternFailing
	case (rate >= 0.7 && rate < 0.9) || (fails >= 2 && fails <= 4):
		return PatternDegraded
	case rate >= 0.9:
		return PatternHealthy
	default:
		return PatternDegraded
	}
}

// HealthNotification is emitted on any status downgrade from a known status.
type HealthNotification struct {
	ID               string        `json:"id"`
	Domain           string        `json:"domain"`
	Endpoint         string        `json:"endpoint"`
	PreviousStatus   PatternStatus `json:"previous_status"`
	NewStatus        PatternStatus `json:"new_status"`
	SuccessRate      float64       `json:"success_rate"`
	SuggestedActions []string      `json:"suggested_actions"`
	CreatedAt        time.Time     `json:"created_at"`
	Acknowledged     bool          `json:"acknowledged"`
}

// ResponseShapeSummary is a compact description of where extracted content
// lives in a discovered API response.
type ResponseShapeSummary struct {
	MainContentPath string   `json:"main_content_path"`
	SampleFields    []string `json:"sample_fields"`
}

// Pattern is a learned description of how to extract content from one
// endpoint on one domain.
type Pattern struct {
	ID             string               `json:"id"`
	Domain         string               `json:"domain"`
	Endpoint       string               `json:"endpoint"`
	Method         string               `json:"method"`
	URLPattern     string               `json:"url_pattern"`
	Parameters     map[string]string    `json:"parameters,omitempty"`
	ResponseShape  ResponseShapeSummary `json:"response_shape"`
	Selectors      map[string]string    `json:"selectors,omitempty"`
	Tier           Tier                 `json:"tier"`
	Examples       []string             `json:"examples,omitempty"`
	Stats          PatternStats         `json:"stats"`
	Health         *PatternHealth       `json:"health"`
	Archived       bool                 `json:"archived"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// PatternEventType enumerates the learning event stream's event kinds.
type PatternEventType string

const (
	PatternEventCreated    PatternEventType = "pattern_created"
	PatternEventUsed       PatternEventType = "pattern_used"
	PatternEventTransferred PatternEventType = "pattern_transferred"
	PatternEventArchived   PatternEventType = "pattern_archived"
)

// PatternEvent is one item on the learning event stream.
type PatternEvent struct {
	Type           PatternEventType `json:"type"`
	PatternID      string           `json:"pattern_id,omitempty"`
	SourceDomain   string           `json:"source_domain,omitempty"`
	TargetDomain   string           `json:"target_domain,omitempty"`
	Success        bool             `json:"success"`
	Similarity     *float64         `json:"similarity,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	At             time.Time        `json:"at"`
}

// Observation is what a successful extraction reports to the registry.
type Observation struct {
	Domain        string
	URL           string
	Endpoint      string
	Method        string
	Selectors     map[string]string
	ResponseShape ResponseShapeSummary
	Tier          Tier
}
