package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/truematch/internal/results"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show your compatibility analysis",
}

var resultsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the latest analysis",
	Long: `Show your latest compatibility analysis. The copy saved after the
last submission is shown when there is one; --refresh fetches it from the
server instead.

Requires a signed-in session.`,
	RunE: withRuntime(runResultsShow),
}

var resultsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the locally saved analysis",
	RunE:  withRuntime(runResultsClear),
}

func init() {
	resultsShowCmd.Flags().Bool("refresh", false, "fetch the analysis from the server")

	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsClearCmd)
	rootCmd.AddCommand(resultsCmd)
}

func runResultsShow(ctx context.Context, rt *runtime, args []string) error {
	session, err := rt.requireSession(ctx)
	if err != nil {
		return err
	}
	userID := session.User.ID()

	if !rt.flagBool("refresh") {
		entry, err := rt.results.Load(userID)
		switch {
		case err == nil:
			return rt.render(resultOutput{Source: "cache", SavedAt: entry.SavedAt, Result: entry.Result, styles: rt.styles})
		case !errors.Is(err, results.ErrNotFound):
			rt.logger.Warn("ignoring unreadable result cache", "error", err)
		}
	}

	result, err := rt.client.LatestResult(ctx)
	if err != nil {
		return err
	}
	if result.Empty() {
		return rt.render(messageOutput{
			Message: "No result found. Run 'truematch questionnaire submit' to get your analysis.",
			styles:  rt.styles,
		})
	}

	if err := rt.results.Save(userID, result); err != nil {
		rt.logger.Warn("failed to cache result", "error", err)
	}
	return rt.render(resultOutput{Source: "server", Result: result, styles: rt.styles})
}

func runResultsClear(ctx context.Context, rt *runtime, args []string) error {
	if err := rt.results.Clear(); err != nil {
		return err
	}
	return rt.render(messageOutput{OK: true, Message: "Saved analysis removed.", styles: rt.styles})
}
