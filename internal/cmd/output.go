package cmd

import (
	"time"

	"github.com/felixgeelhaar/truematch/internal/auth"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tui"
)

// sessionOutput is the result of auth login and auth status
type sessionOutput struct {
	Status string        `json:"status" yaml:"status"`
	User   platform.User `json:"user,omitempty" yaml:"user,omitempty"`

	session auth.Session
	styles  tui.Styles
}

func newSessionOutput(st tui.Styles, s auth.Session) sessionOutput {
	return sessionOutput{
		Status:  s.Status.String(),
		User:    s.User,
		session: s,
		styles:  st,
	}
}

func (o sessionOutput) RenderText() string {
	return tui.RenderSession(o.styles, o.session)
}

// tokenOutput describes the stored access token without revealing it
type tokenOutput struct {
	auth.TokenInfo `yaml:",inline"`
	Expired        bool `json:"expired" yaml:"expired"`
	Refreshed      bool `json:"refreshed" yaml:"refreshed"`

	now    time.Time
	styles tui.Styles
}

func (o tokenOutput) RenderText() string {
	text := tui.RenderToken(o.styles, o.TokenInfo, o.now)
	if o.Refreshed {
		text = o.styles.Success.Render("✓ Token refreshed") + "\n" + text
	}
	return text
}

// resultOutput is a compatibility analysis and where it came from
type resultOutput struct {
	Source  string          `json:"source" yaml:"source"` // "server" or "cache"
	SavedAt time.Time       `json:"saved_at,omitzero" yaml:"saved_at,omitempty"`
	Result  platform.Result `json:"result" yaml:"result"`

	styles tui.Styles
}

func (o resultOutput) RenderText() string {
	text := tui.RenderResult(o.styles, o.Result)
	if o.Source == "cache" && !o.SavedAt.IsZero() {
		text += o.styles.Muted.Render("Saved "+o.SavedAt.Local().Format(time.RFC1123)+". Use --refresh to fetch again.") + "\n"
	}
	return text
}

// messageOutput is a one-line outcome
type messageOutput struct {
	OK      bool   `json:"ok" yaml:"ok"`
	Message string `json:"message" yaml:"message"`

	styles tui.Styles
}

func (o messageOutput) RenderText() string {
	if o.OK {
		return o.styles.Success.Render("✓ ") + o.Message
	}
	return o.styles.Warning.Render("! ") + o.Message
}
