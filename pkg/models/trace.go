package models

import "time"

// SelectorAttempt records one extractor selector try, success or not.
type SelectorAttempt struct {
	Purpose  string `json:"purpose"` // "content", "table", "link"
	Selector string `json:"selector"`
	Matched  bool   `json:"matched"`
	Selected bool   `json:"selected"`
}

// TitleAttempt records one title-source candidate considered during extraction.
type TitleAttempt struct {
	Source     TitleSource `json:"source"`
	Value      string      `json:"value"`
	Confidence float64     `json:"confidence"`
	Selected   bool        `json:"selected"`
}

// DecisionTrace is the append-only record of one request's attempts.
type DecisionTrace struct {
	ID        string             `json:"id"`
	Domain    string             `json:"domain"`
	URL       string             `json:"url"`
	Tiers     []Attempt          `json:"tiers"`
	Selectors []SelectorAttempt  `json:"selectors"`
	Title     []TitleAttempt     `json:"title"`
	Summary   string             `json:"summary"`
	Success   bool               `json:"success"`
	CreatedAt time.Time          `json:"created_at"`
	sealed    bool
}

// AddAttempt appends an attempt. Panics if called after Seal, since a
// DecisionTrace is immutable once the request completes.
func (t *DecisionTrace) AddAttempt(a Attempt) {
	if t.sealed {
		panic("decision trace: cannot append attempt after Seal")
	}
	t.Tiers = append(t.Tiers, a)
}

// AddSelectorAttempt records a selector try.
func (t *DecisionTrace) AddSelectorAttempt(s SelectorAttempt) {
	if t.sealed {
		panic("decision trace: cannot append selector after Seal")
	}
	t.Selectors = append(t.Selectors, s)
}

// AddTitleAttempt records a title candidate.
func (t *DecisionTrace) AddTitleAttempt(ta TitleAttempt) {
	if t.sealed {
		panic("decision trace: cannot append title attempt after Seal")
	}
	t.Title = append(t.Title, ta)
}

// Seal marks the trace complete and immutable, and fills in the summary.
func (t *DecisionTrace) Seal(success bool, summary string) {
	t.Success = success
	t.Summary = summary
	t.sealed = true
}

// TraceIndexEntry is the compact per-trace row kept in the Debug Recorder's
// in-memory index for filtered queries without reading every trace file.
type TraceIndexEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	URL       string    `json:"url"`
	Success   bool      `json:"success"`
	Tier      Tier      `json:"tier"`
	ErrorKind string    `json:"error_kind,omitempty"`
}

// TraceFilter selects a subset of recorded traces for query.
type TraceFilter struct {
	Domain    string
	URLRegex  string
	Since     *time.Time
	Until     *time.Time
	Success   *bool
	ErrorKind string
	Tier      Tier
}
