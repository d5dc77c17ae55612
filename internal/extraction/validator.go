package extraction

import (
	"regexp"
	"strings"

	"github.com/uzzalhcse/crawlify/pkg/models"
)

// ValidationResult is the Validator's verdict on one extraction attempt.
type ValidationResult struct {
	Valid     bool
	Retryable bool
	Reasons   []string
	Warnings  []string
}

const minValidContentChars = 300

var loadingMarkers = []string{
	"please wait",
	"loading...",
	"loading…",
	"just a moment",
}

var challengeMarkers = []string{
	"captcha",
	"verify you are human",
	"checking your browser",
	"cloudflare",
	"access denied",
}

var tagStrip = regexp.MustCompile(`<[^>]*>`)

// Validate applies the conservative rules of §4.10: a retryable failure
// means a higher tier might do better; a fatal failure means no tier will,
// so the orchestrator must stop rather than escalate.
func Validate(out *Output, statusCode int, requestURL string) ValidationResult {
	var reasons, warnings []string

	if statusCode == 404 || statusCode == 410 {
		return ValidationResult{Valid: false, Retryable: false, Reasons: []string{"http_status_fatal"}}
	}

	lowerText := strings.ToLower(out.Text)

	if len(out.Text) < minValidContentChars {
		reasons = append(reasons, "content_too_short")
	}
	for _, marker := range loadingMarkers {
		if strings.Contains(lowerText, marker) {
			reasons = append(reasons, "loading_marker_present")
			break
		}
	}
	for _, marker := range challengeMarkers {
		if strings.Contains(lowerText, marker) {
			reasons = append(reasons, "challenge_marker_present")
			break
		}
	}
	if out.TitleSource == models.TitleSourceUnknown && out.Confidence <= 0.4 {
		reasons = append(reasons, "title_missing_body_fallback")
	}

	if len(reasons) > 0 {
		return ValidationResult{Valid: false, Retryable: true, Reasons: reasons}
	}

	if out.Confidence < 0.7 {
		warnings = append(warnings, "low_content_confidence")
	}
	if out.TitleSource.Confidence() < 0.85 {
		warnings = append(warnings, "low_title_confidence")
	}

	return ValidationResult{Valid: true, Retryable: false, Warnings: warnings}
}

// StripTags is a small helper shared by transform-style cleanup callers
// that need plain text from an HTML fragment without a full goquery parse.
func StripTags(s string) string {
	return strings.TrimSpace(tagStrip.ReplaceAllString(s, " "))
}
