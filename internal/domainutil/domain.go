// Package domainutil normalizes hostnames into registered domains, with
// awareness of common multi-part public-suffix TLDs.
package domainutil

import (
	"net/url"
	"strings"
)

// multiPartTLDs lists second-level-plus-ccTLD suffixes common enough that
// eTLD+1 needs two labels of TLD rather than one. Not exhaustive; the
// core only needs enough to route risk/pattern learning sensibly, not a
// full public-suffix-list implementation.
var multiPartTLDs = map[string]bool{
	"co.uk": true, "org.uk": true, "ac.uk": true, "gov.uk": true,
	"com.au": true, "net.au": true, "org.au": true,
	"co.jp": true, "ne.jp": true, "or.jp": true,
	"co.nz": true, "co.za": true, "co.in": true,
	"com.br": true, "com.mx": true, "com.cn": true,
	"co.kr": true, "com.sg": true, "com.hk": true,
}

// Normalize case-folds a hostname and strips a leading "www.", per the
// Domain Group Learner's normalization rule (§4.9) — applied universally
// since every component that persists a domain key needs the same rule.
func Normalize(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	return host
}

// FromURL extracts the registered domain (eTLD+1 aware) from a URL string.
// Returns "" if the URL cannot be parsed or has no host.
func FromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	return RegisteredDomain(host)
}

// RegisteredDomain reduces a hostname to its eTLD+1 registered domain.
func RegisteredDomain(host string) string {
	host = Normalize(host)
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if multiPartTLDs[lastTwo] && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}
	return lastTwo
}
