package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/truematch/internal/ux"
	"github.com/felixgeelhaar/truematch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
	RunE: runVersion,
}

func init() {
	versionCmd.Flags().BoolP("verbose", "v", false, "show detailed version information")

	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.GetInfo()
	out := cmd.OutOrStdout()

	format, _ := cmd.Flags().GetString("format")
	if format == ux.FormatJSON || format == ux.FormatYAML {
		formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: out})
		if err != nil {
			return err
		}
		return formatter.Format(info)
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		fmt.Fprintln(out, info.String())
		fmt.Fprintf(out, "User-Agent: %s\n", info.UserAgent())
		return nil
	}

	fmt.Fprintf(out, "truematch %s\n", info.Version)
	return nil
}
