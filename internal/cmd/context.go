package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// CommandContext holds the persistent flags of one invocation
type CommandContext struct {
	Home     string
	APIURL   string
	Format   string
	NoColor  bool
	LogLevel string
	Metrics  bool
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	home, err := cmd.Flags().GetString("home")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	showMetrics, err := cmd.Flags().GetBool("metrics")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Home:     resolveHome(home),
		APIURL:   apiURL,
		Format:   format,
		NoColor:  noColor,
		LogLevel: logLevel,
		Metrics:  showMetrics,
	}, nil
}

// resolveHome picks the client home: flag, then TRUEMATCH_HOME, then
// ~/.truematch.
func resolveHome(flag string) string {
	if flag != "" {
		return expandPath(flag)
	}
	if env := os.Getenv("TRUEMATCH_HOME"); env != "" {
		return expandPath(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".truematch"
	}
	return filepath.Join(home, ".truematch")
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
