// Package urlgen generalizes concrete request URLs into reusable patterns
// by replacing numeric IDs, UUIDs, Mongo ObjectIds, and long base62
// segments with named regex capture groups. Pure and idempotent: running
// the generalizer on an already-generalized URL returns it unchanged.
package urlgen

import (
	"regexp"
	"strings"
)

var (
	uuidRe     = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	objectIDRe = regexp.MustCompile(`\b[0-9a-f]{24}\b`)
	numericRe  = regexp.MustCompile(`\b\d+\b`)
	base62Re   = regexp.MustCompile(`\b[0-9A-Za-z]{20,}\b`)

	// placeholderRe detects segments that are already a named group, so a
	// second pass is a no-op (idempotence).
	placeholderRe = regexp.MustCompile(`\(\?P<(id|uuid|oid|token)>`)
)

// Generalize replaces identifier-shaped path/query segments with named
// regex groups: (?P<uuid>...), (?P<oid>...), (?P<id>\d+), (?P<token>...).
// Order matters: UUID and ObjectId patterns are more specific than the
// generic numeric/base62 ones and must run first.
func Generalize(u string) string {
	if placeholderRe.MatchString(u) {
		return u // already generalized; idempotent no-op
	}

	// Each pass leaves a NUL-delimited marker instead of the final group, so
	// a later pass cannot rewrite the digits inside an earlier group.
	out := uuidRe.ReplaceAllString(u, "\x00uuid\x00")
	out = objectIDRe.ReplaceAllString(out, "\x00oid\x00")
	out = numericRe.ReplaceAllString(out, "\x00id\x00")
	out = base62Re.ReplaceAllString(out, "\x00token\x00")
	return strings.NewReplacer(
		"\x00uuid\x00", `(?P<uuid>[0-9a-fA-F-]{36})`,
		"\x00oid\x00", `(?P<oid>[0-9a-fA-F]{24})`,
		"\x00id\x00", `(?P<id>\d+)`,
		"\x00token\x00", `(?P<token>[0-9A-Za-z]{20,})`,
	).Replace(out)
}

// Matcher wraps a compiled generalized pattern for repeated matching.
type Matcher struct {
	re *regexp.Regexp
}

// Compile turns a generalized URL string (as produced by Generalize) into a
// Matcher. The generalized string already contains valid Go regexp named
// groups, so compiling it directly as a pattern (anchored) is correct.
func Compile(generalized string) (*Matcher, error) {
	re, err := regexp.Compile("^" + generalized + "$")
	if err != nil {
		return nil, err
	}
	return &Matcher{re: re}, nil
}

// Match reports whether url matches the generalized pattern and, if so,
// returns the named captures.
func (m *Matcher) Match(url string) (map[string]string, bool) {
	matches := m.re.FindStringSubmatch(url)
	if matches == nil {
		return nil, false
	}
	captures := make(map[string]string)
	for i, name := range m.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		captures[name] = matches[i]
	}
	return captures, true
}
