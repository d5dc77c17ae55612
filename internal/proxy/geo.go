package proxy

import (
	"strings"
	"sync"

	"github.com/uzzalhcse/crawlify/pkg/models"
)

// tldCountryHints maps a TLD suffix to a country hint (§4.12).
var tldCountryHints = map[string]string{
	".co.uk": "gb",
	".uk":    "gb",
	".com.au": "au",
	".au":    "au",
	".de":    "de",
	".fr":    "fr",
	".jp":    "jp",
	".ca":    "ca",
	".in":    "in",
	".com.br": "br",
	".br":    "br",
}

// regionRestrictionMarkers are content substrings whose presence implies
// the response is a region-gated placeholder rather than real content.
var regionRestrictionMarkers = []string{
	"not available in your region",
	"content is not available in your country",
	"geo-restricted",
}

// GeoRouter is the pure policy module consumed by the Proxy Manager for
// country-hint derivation and region-restriction detection.
type GeoRouter struct {
	mu    sync.Mutex
	prefs map[string]*models.DomainGeoPreference
}

func NewGeoRouter() *GeoRouter {
	return &GeoRouter{prefs: make(map[string]*models.DomainGeoPreference)}
}

// CountryHintForDomain maps a domain's TLD to a country hint, longest
// suffix first so "co.uk" beats a bare "uk" entry.
func CountryHintForDomain(domain string) string {
	best := ""
	bestLen := 0
	for suffix, country := range tldCountryHints {
		if strings.HasSuffix(domain, suffix) && len(suffix) > bestLen {
			best = country
			bestLen = len(suffix)
		}
	}
	return best
}

// RegionRestricted reports whether the given body text carries a
// region-restriction marker, with a fixed confidence.
func RegionRestricted(bodyText string) (bool, float64) {
	lower := strings.ToLower(bodyText)
	for _, marker := range regionRestrictionMarkers {
		if strings.Contains(lower, marker) {
			return true, 0.85
		}
	}
	return false, 0.0
}

// PreferredCountry returns the domain's learned preferred exit country, or
// its TLD-based hint if nothing has been learned yet.
func (g *GeoRouter) PreferredCountry(domain string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if pref, ok := g.prefs[domain]; ok && pref.PreferredCountry != "" {
		return pref.PreferredCountry
	}
	return CountryHintForDomain(domain)
}

// RecordOutcome folds one proxy-country outcome into the domain's learned
// preference, recomputing the best-performing country.
func (g *GeoRouter) RecordOutcome(domain, country string, success bool) {
	if country == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	pref, ok := g.prefs[domain]
	if !ok {
		pref = &models.DomainGeoPreference{Domain: domain, CountrySuccessRates: make(map[string]float64)}
		g.prefs[domain] = pref
	}

	rate := pref.CountrySuccessRates[country]
	const decay = 0.8
	if success {
		rate = decay*rate + (1-decay)*1.0
	} else {
		rate = decay * rate
	}
	pref.CountrySuccessRates[country] = rate

	best, bestRate := "", 0.0
	for c, r := range pref.CountrySuccessRates {
		if r > bestRate {
			best, bestRate = c, r
		}
	}
	pref.PreferredCountry = best
}

func (g *GeoRouter) Preference(domain string) *models.DomainGeoPreference {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.prefs[domain]; ok {
		cp := *p
		return &cp
	}
	return nil
}
