package tui

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/truematch/internal/auth"
	"github.com/felixgeelhaar/truematch/internal/health"
	"github.com/felixgeelhaar/truematch/internal/platform"
)

const wrapWidth = 76

// Sections of an analysis in display order. Anything else the server sends
// is shown after these, sorted by key.
var resultSections = []string{
	"compatibilityScore",
	"corePersonalityTraits",
	"attachmentStyle",
	"communicationStyle",
	"loveLanguage",
	"emotionalIntelligence",
	"conflictResolution",
	"longTermOutlook",
	"idealPartnerProfile",
}

// RenderSession renders the session status line and user details
func RenderSession(st Styles, s auth.Session) string {
	var b strings.Builder

	switch s.Status {
	case auth.StatusAuthenticated:
		b.WriteString(st.Success.Render("● Logged in"))
		b.WriteString("\n")
		writeField(&b, st, "Name", s.User.Name())
		writeField(&b, st, "Email", s.User.Email())
		writeField(&b, st, "ID", s.User.ID())
	case auth.StatusAnonymous:
		b.WriteString(st.Warning.Render("○ Not logged in"))
		b.WriteString("\n")
		b.WriteString(st.Muted.Render("Run 'truematch auth login' to sign in."))
		b.WriteString("\n")
	default:
		b.WriteString(st.Muted.Render("… Session loading"))
		b.WriteString("\n")
	}

	return b.String()
}

// RenderToken renders what is known locally about an access token
func RenderToken(st Styles, info auth.TokenInfo, now time.Time) string {
	var b strings.Builder

	writeField(&b, st, "Fingerprint", info.Fingerprint)
	if info.Opaque {
		writeField(&b, st, "Format", "opaque")
		return b.String()
	}

	writeField(&b, st, "Format", "JWT")
	writeField(&b, st, "Subject", info.Subject)
	if !info.IssuedAt.IsZero() {
		writeField(&b, st, "Issued", info.IssuedAt.Local().Format(time.RFC1123))
	}
	switch {
	case info.ExpiresAt.IsZero():
		writeField(&b, st, "Expires", "no expiry claim")
	case info.Expired(now):
		writeField(&b, st, "Expires", st.Warning.Render("expired "+info.ExpiresAt.Local().Format(time.RFC1123)))
	default:
		writeField(&b, st, "Expires", fmt.Sprintf("in %s", formatDuration(info.ExpiresIn(now))))
	}
	return b.String()
}

// RenderResult renders a compatibility analysis
func RenderResult(st Styles, r platform.Result) string {
	var b strings.Builder

	b.WriteString(st.Title.Render("Your Relationship Blueprint"))
	b.WriteString("\n\n")

	if score, ok := r["compatibilityScore"]; ok {
		b.WriteString(st.Border.Render(
			st.Label.Render("Compatibility score ") + st.Score.Render(scalar(score)),
		))
		b.WriteString("\n\n")
	}

	for _, key := range orderedKeys(r) {
		if key == "compatibilityScore" {
			continue
		}
		b.WriteString(st.Subtitle.Render(Humanize(key)))
		b.WriteString("\n")
		writeValue(&b, st, r[key], 1)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderHealth renders a doctor report, one line per check
func RenderHealth(st Styles, r health.Report) string {
	var b strings.Builder

	for _, c := range r.Checks {
		var mark string
		switch c.Status {
		case health.StatusHealthy:
			mark = st.Success.Render("✓")
		case health.StatusDegraded:
			mark = st.Warning.Render("!")
		default:
			mark = st.Error.Render("✗")
		}
		fmt.Fprintf(&b, "%s %s %s\n", mark, st.Label.Render(fmt.Sprintf("%-15s", c.Name)), c.Message)
		if msg, ok := c.Details["error"].(string); ok && c.Status != health.StatusHealthy {
			b.WriteString("    " + st.Muted.Render(msg) + "\n")
		}
	}

	b.WriteString("\n")
	switch r.Status {
	case health.StatusHealthy:
		b.WriteString(st.Success.Render("All checks passed."))
	case health.StatusDegraded:
		b.WriteString(st.Warning.Render("Some checks need attention."))
	default:
		b.WriteString(st.Error.Render("Some checks failed."))
	}
	b.WriteString("\n")
	return b.String()
}

// Humanize turns a camelCase or snake_case key into a title
func Humanize(key string) string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	for i, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ':
			flush()
		case unicode.IsUpper(r) && i > 0:
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()

	for i, w := range words {
		rs := []rune(w)
		rs[0] = unicode.ToUpper(rs[0])
		words[i] = string(rs)
	}
	return strings.Join(words, " ")
}

func orderedKeys(r platform.Result) []string {
	keys := make([]string, 0, len(r))
	for _, k := range resultSections {
		if _, ok := r[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range r {
		if !slices.Contains(resultSections, k) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func writeValue(b *strings.Builder, st Styles, v any, depth int) {
	indent := strings.Repeat("  ", depth)

	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				b.WriteString(indent + "•\n")
				writeValue(b, st, m, depth+1)
				continue
			}
			b.WriteString(indent + "• " + scalar(item) + "\n")
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch inner := val[k].(type) {
			case []any, map[string]any:
				b.WriteString(indent + st.Label.Render(Humanize(k)+":") + "\n")
				writeValue(b, st, inner, depth+1)
			default:
				b.WriteString(indent + st.Label.Render(Humanize(k)+":") + " " + scalar(inner) + "\n")
			}
		}
	default:
		text := lipgloss.NewStyle().Width(wrapWidth - len(indent)).Render(scalar(val))
		for _, line := range strings.Split(text, "\n") {
			b.WriteString(indent + strings.TrimRight(line, " ") + "\n")
		}
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%.1f", val)
	default:
		return fmt.Sprint(val)
	}
}

func writeField(b *strings.Builder, st Styles, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "  %s %s\n", st.Label.Render(fmt.Sprintf("%-12s", label+":")), value)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
