package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/truematch/internal/auth"
	"github.com/felixgeelhaar/truematch/internal/health"
	"github.com/felixgeelhaar/truematch/internal/platform"
)

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Core Personality Traits", Humanize("corePersonalityTraits"))
	assert.Equal(t, "Love Language", Humanize("love_language"))
	assert.Equal(t, "Score", Humanize("score"))
}

func TestRenderSession(t *testing.T) {
	st := PlainStyles()

	out := RenderSession(st, auth.Authenticated(platform.User{"name": "Ada", "email": "ada@example.com"}))
	assert.Contains(t, out, "Logged in")
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "ada@example.com")

	out = RenderSession(st, auth.Anonymous())
	assert.Contains(t, out, "Not logged in")
	assert.Contains(t, out, "truematch auth login")

	assert.Contains(t, RenderSession(st, auth.Loading()), "loading")
}

func TestRenderToken(t *testing.T) {
	st := PlainStyles()
	now := time.Now()

	out := RenderToken(st, auth.TokenInfo{Fingerprint: "abc123", Opaque: true}, now)
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "opaque")

	out = RenderToken(st, auth.TokenInfo{Fingerprint: "f", Subject: "u1", ExpiresAt: now.Add(90 * time.Second)}, now)
	assert.Contains(t, out, "u1")
	assert.Contains(t, out, "in 1m30s")

	out = RenderToken(st, auth.TokenInfo{Fingerprint: "f", ExpiresAt: now.Add(-time.Minute)}, now)
	assert.Contains(t, out, "expired")
}

func TestRenderResult(t *testing.T) {
	r := platform.Result{
		"zodiacNotes":        "extra",
		"loveLanguage":       "Quality time",
		"compatibilityScore": 87.0,
		"corePersonalityTraits": []any{
			"Curious",
			"Loyal",
		},
		"attachmentStyle": map[string]any{
			"type":        "Secure",
			"description": "Comfortable with closeness",
		},
	}

	out := RenderResult(PlainStyles(), r)

	assert.Contains(t, out, "Compatibility score 87")
	assert.Contains(t, out, "• Curious")
	assert.Contains(t, out, "Type: Secure")
	assert.Contains(t, out, "Quality time")

	traits := strings.Index(out, "Core Personality Traits")
	attachment := strings.Index(out, "Attachment Style")
	love := strings.Index(out, "Love Language")
	extra := strings.Index(out, "Zodiac Notes")
	assert.True(t, traits < attachment && attachment < love && love < extra, out)
}

func TestRenderHealth(t *testing.T) {
	st := PlainStyles()
	r := health.Report{
		Status: health.StatusUnhealthy,
		Checks: []health.Entry{
			{Name: "api", Result: *health.Unhealthy("cannot reach api").WithDetail("error", "connection refused")},
			{Name: "refresh-cookie", Result: *health.Healthy("saved cookies present")},
		},
	}

	out := RenderHealth(st, r)

	assert.Contains(t, out, "✗ api")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "✓ refresh-cookie")
	assert.True(t, strings.HasSuffix(out, "Some checks failed.\n"))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h30m", formatDuration(90*time.Minute))
}
