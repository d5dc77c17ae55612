package models

import "time"

// Tier is a category of extraction strategy, ordered by cost.
type Tier string

const (
	TierIntelligence Tier = "intelligence" // static HTTP fetch + parsing
	TierLightweight  Tier = "lightweight"  // JS eval on fetched HTML, no full browser
	TierPlaywright   Tier = "playwright"   // full browser render
)

// tierCost gives the strict cost ordering used for monotonicity checks.
var tierCost = map[Tier]int{
	TierIntelligence: 0,
	TierLightweight:  1,
	TierPlaywright:   2,
}

// Cost returns the relative cost rank of the tier; unknown tiers sort last.
func (t Tier) Cost() int {
	if c, ok := tierCost[t]; ok {
		return c
	}
	return len(tierCost)
}

// DefaultTierOrder is the canonical increasing-cost tier sequence.
func DefaultTierOrder() []Tier {
	return []Tier{TierIntelligence, TierLightweight, TierPlaywright}
}

// Budget caps latency and/or the most expensive tier a request may reach.
type Budget struct {
	MaxLatencyMs *int64 `json:"max_latency_ms,omitempty"`
	MaxCostTier  *Tier  `json:"max_cost_tier,omitempty"`
}

// Options carries per-request fetch knobs that are not part of the budget.
type Options struct {
	Headers        map[string]string `json:"headers,omitempty"`
	Cookies        string            `json:"cookies,omitempty"`
	WaitForSelector string           `json:"wait_for_selector,omitempty"`
	RenderJS       bool              `json:"render_js,omitempty"`
}

// GeoPrefs expresses a caller's preferred exit countries, most preferred first.
type GeoPrefs struct {
	PreferredCountries []string `json:"preferred_countries,omitempty"`
}

// Request is one fetch call.
type Request struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Domain    string    `json:"domain"`
	TenantID  string    `json:"tenant_id"`
	Plan      string    `json:"plan"`
	TierHint  *Tier     `json:"tier_hint,omitempty"`
	Budget    Budget    `json:"budget"`
	GeoPrefs  GeoPrefs  `json:"geo_prefs"`
	Options   Options   `json:"options"`
	CreatedAt time.Time `json:"created_at"`
}

// AttemptOutcome is the terminal state of a single tier attempt.
type AttemptOutcome string

const (
	OutcomeSuccess           AttemptOutcome = "success"
	OutcomeValidationFailed  AttemptOutcome = "validation_failed"
	OutcomeTransportError    AttemptOutcome = "transport_error"
	OutcomeTimeout           AttemptOutcome = "timeout"
	OutcomeSkippedByBudget   AttemptOutcome = "skipped_by_budget"
	OutcomeBlocked           AttemptOutcome = "blocked"
)

// NetworkStats summarizes the wire-level behavior of one attempt.
type NetworkStats struct {
	StatusCode   int   `json:"status_code,omitempty"`
	BytesIn      int64 `json:"bytes_in,omitempty"`
	RedirectHops int   `json:"redirect_hops,omitempty"`
}

// Attempt records one tier's execution within a request.
type Attempt struct {
	Tier         Tier           `json:"tier"`
	StartedAt    time.Time      `json:"started_at"`
	DurationMs   int64          `json:"duration_ms"`
	Outcome      AttemptOutcome `json:"outcome"`
	Error        *FetchErrorRef `json:"error,omitempty"`
	ProxyID      string         `json:"proxy_id,omitempty"`
	NetworkStats NetworkStats   `json:"network_stats"`
}

// FetchErrorRef is the trace-embeddable projection of a structured error.
type FetchErrorRef struct {
	Category string `json:"category"`
	Code     string `json:"code"`
}

// TitleSource classifies how confidently a title was derived.
type TitleSource string

const (
	TitleSourceOGTitle  TitleSource = "og_title"
	TitleSourceTitleTag TitleSource = "title_tag"
	TitleSourceH1       TitleSource = "h1"
	TitleSourceUnknown  TitleSource = "unknown"
)

// Confidence returns the fixed confidence tied to a title source.
func (s TitleSource) Confidence() float64 {
	switch s {
	case TitleSourceOGTitle:
		return 0.95
	case TitleSourceTitleTag:
		return 0.85
	case TitleSourceH1:
		return 0.70
	default:
		return 0.00
	}
}

// Table is one extracted HTML table.
type Table struct {
	Headers    []string            `json:"headers"`
	Rows       [][]string          `json:"rows"`
	Caption    string              `json:"caption,omitempty"`
	ID         string              `json:"id,omitempty"`
	Projection []map[string]string `json:"projection"`
}

// Link is one extracted anchor.
type Link struct {
	Href    string `json:"href"`
	Text    string `json:"text"`
	Context string `json:"context"`
}

// Result is a successful fetch outcome.
type Result struct {
	FinalURL     string                 `json:"final_url"`
	Title        string                 `json:"title"`
	TitleSource  TitleSource            `json:"title_source"`
	Text         string                 `json:"text"`
	Markdown     string                 `json:"markdown"`
	Tables       []Table                `json:"tables"`
	Links        []Link                 `json:"links"`
	Structured   map[string]interface{} `json:"structured,omitempty"`
	TierUsed     Tier                   `json:"tier_used"`
	FellBack     bool                   `json:"fell_back"`
	Confidence   float64                `json:"confidence"`
	DecisionTrace *DecisionTrace        `json:"decision_trace"`
}
