package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "truematch",
	Short: "Command-line client for the TrueMatch compatibility service",
	Long: `truematch signs you in to TrueMatch, submits your compatibility
questionnaire and shows the analysis the service produces.

Your session survives between invocations. The access token is kept in the
configured token store and the refresh cookie in the client home; an access
token that expires mid-command is refreshed without you noticing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("home", "", "client home directory (default $TRUEMATCH_HOME or ~/.truematch)")
	flags.String("api-url", "", "TrueMatch API base URL (overrides api.base_url)")
	flags.String("format", "", "output format: text, json or yaml (default from config)")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.Bool("metrics", false, "print a metrics summary to stderr after the command")
}
