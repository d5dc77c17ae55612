package extraction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uzzalhcse/crawlify/pkg/models"
)

// ============================================================================
// Fatal vs. retryable classification
// ============================================================================

func TestValidate_404And410AreFatalNotRetryable(t *testing.T) {
	out := &Output{Text: strings.Repeat("x", 1000)}

	for _, status := range []int{404, 410} {
		result := Validate(out, status, "https://example.com/gone")
		assert.False(t, result.Valid)
		assert.False(t, result.Retryable, "status %d should never be retried across tiers", status)
	}
}

func TestValidate_ShortContentIsRetryable(t *testing.T) {
	out := &Output{Text: "too short"}

	result := Validate(out, 200, "https://example.com/")
	assert.False(t, result.Valid)
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Reasons, "content_too_short")
}

func TestValidate_LoadingMarkerIsRetryable(t *testing.T) {
	out := &Output{Text: strings.Repeat("x", 400) + " please wait while we verify"}

	result := Validate(out, 200, "https://example.com/")
	assert.False(t, result.Valid)
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Reasons, "loading_marker_present")
}

func TestValidate_ChallengeMarkerIsRetryable(t *testing.T) {
	out := &Output{Text: strings.Repeat("x", 400) + " please complete the captcha to continue"}

	result := Validate(out, 200, "https://example.com/")
	assert.False(t, result.Valid)
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Reasons, "challenge_marker_present")
}

func TestValidate_MissingTitleWithLowConfidenceIsRetryable(t *testing.T) {
	out := &Output{
		Text:        strings.Repeat("x", 400),
		TitleSource: models.TitleSourceUnknown,
		Confidence:  0.4,
	}

	result := Validate(out, 200, "https://example.com/")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reasons, "title_missing_body_fallback")
}

// ============================================================================
// Valid results and warnings
// ============================================================================

func TestValidate_GoodContentIsValidWithNoWarnings(t *testing.T) {
	out := &Output{
		Text:        strings.Repeat("word ", 100),
		TitleSource: models.TitleSourceOGTitle,
		Confidence:  0.9,
	}

	result := Validate(out, 200, "https://example.com/")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_LowConfidenceAddsWarningButStaysValid(t *testing.T) {
	out := &Output{
		Text:        strings.Repeat("word ", 100),
		TitleSource: models.TitleSourceH1,
		Confidence:  0.5,
	}

	result := Validate(out, 200, "https://example.com/")
	assert.True(t, result.Valid)
	assert.Contains(t, result.Warnings, "low_content_confidence")
}

// ============================================================================
// StripTags helper
// ============================================================================

func TestStripTags(t *testing.T) {
	assert.Equal(t, "hello  world", StripTags("<p>hello <b>world</b></p>"))
}
