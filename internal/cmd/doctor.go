package cmd

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/health"
	"github.com/felixgeelhaar/truematch/internal/tui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the local setup and connectivity",
	Long: `Check everything a session depends on: that the TrueMatch service
answers, that the token store is usable, and whether a stored token and a
refresh cookie are available.

Exits non-zero when a check fails. A missing session is only a warning.`,
	RunE: withRuntime(runDoctor),
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorOutput wraps a health report for the formatter
type doctorOutput struct {
	health.Report `yaml:",inline"`

	styles tui.Styles
}

func (o doctorOutput) RenderText() string {
	return tui.RenderHealth(o.styles, o.Report)
}

func runDoctor(ctx context.Context, rt *runtime, args []string) error {
	timeout, err := rt.cfg.RequestTimeout()
	if err != nil {
		return err
	}
	backend := rt.cfg.Session.Store
	if backend == "" {
		backend = "file"
	}

	m := health.NewManager().WithTimeout(min(timeout, health.DefaultTimeout))
	m.AddChecker(health.NewAPIChecker(rt.cfg.API.BaseURL, &http.Client{Timeout: timeout}))
	m.AddChecker(health.NewStoreChecker(backend, rt.store))
	m.AddChecker(health.NewTokenChecker(rt.store))
	m.AddChecker(health.NewCookieChecker(rt.jar))

	report := m.Run(ctx)
	for _, c := range report.Checks {
		rt.logger.Debug("health check", "check", c.Name, "status", c.Status.String(), "latency", c.Latency)
	}

	if err := rt.render(doctorOutput{Report: report, styles: rt.styles}); err != nil {
		return err
	}
	if report.Status == health.StatusUnhealthy {
		return tmerrors.New(tmerrors.ErrCodeChecksFailed, "one or more checks failed").
			WithSuggestion("Review the failed checks above")
	}
	return nil
}
