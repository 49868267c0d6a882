package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/platform"
	"github.com/felixgeelhaar/truematch/internal/tokenstore"
	"github.com/felixgeelhaar/truematch/internal/ux"
)

// DefaultAPIURL is used until api.base_url is configured
const DefaultAPIURL = "http://localhost:8000"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit truematch configuration",
	Long: `Manage the client configuration stored at <home>/config.yaml

Examples:
  # View current configuration
  truematch config view

  # Point the client at a different server
  truematch config set api.base_url https://api.truematch.example

  # Keep the access token in Redis instead of a file
  truematch config set session.store redis
  truematch config set session.redis.addr localhost:6379

  # Show configuration file path
  truematch config path
`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display current configuration",
	RunE:  runConfigView,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration in $EDITOR",
	RunE:  runConfigEdit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  `Retrieve the value of a configuration key using dot notation (e.g., session.refresh_mode).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a specific configuration value",
	Long:  `Set the value of a configuration key using dot notation (e.g., session.refresh_mode per-request).`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)

	rootCmd.AddCommand(configCmd)
}

// GlobalConfig represents the client configuration
type GlobalConfig struct {
	API       APIConfig       `yaml:"api" json:"api"`
	Session   SessionConfig   `yaml:"session" json:"session"`
	Defaults  CommandDefaults `yaml:"defaults,omitempty" json:"defaults"`
	Logging   LoggingConfig   `yaml:"logging,omitempty" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry"`
}

type APIConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Timeout string `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration, e.g. "30s"
}

type SessionConfig struct {
	Store       string      `yaml:"store" json:"store"`               // "file", "redis", "memory"
	RefreshMode string      `yaml:"refresh_mode" json:"refresh_mode"` // "coalesce", "per-request"
	Redis       RedisConfig `yaml:"redis,omitempty" json:"redis"`
}

type RedisConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
	DB   int    `yaml:"db,omitempty" json:"db,omitempty"`
	Key  string `yaml:"key,omitempty" json:"key,omitempty"`
	TTL  string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

type CommandDefaults struct {
	Format  string `yaml:"format,omitempty" json:"format,omitempty"` // "text", "json", "yaml"
	NoColor bool   `yaml:"no_color,omitempty" json:"no_color,omitempty"`
}

type LoggingConfig struct {
	Level      string `yaml:"level,omitempty" json:"level,omitempty"` // "debug", "info", "warn", "error"
	EnableFile bool   `yaml:"enable_file,omitempty" json:"enable_file,omitempty"`
	LogDir     string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"` // Default <home>/logs
}

type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Endpoint   string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SampleRate float64 `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
}

// RequestTimeout parses api.timeout, falling back to 30s
func (c *GlobalConfig) RequestTimeout() (time.Duration, error) {
	if c.API.Timeout == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, configError("api.timeout", c.API.Timeout, "a Go duration such as 30s")
	}
	return d, nil
}

// getConfigPath returns the path to the configuration file under home
func getConfigPath(home string) (string, error) {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return "", fmt.Errorf("failed to create client home: %w", err)
	}
	return filepath.Join(home, "config.yaml"), nil
}

// loadConfig loads the configuration, creating the default if it doesn't exist
func loadConfig(home string) (*GlobalConfig, error) {
	configPath, err := getConfigPath(home)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultGlobalConfig()
		if err := saveConfig(cfg, configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := defaultGlobalConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, tmerrors.Wrap(tmerrors.ErrCodeConfigInvalid, "failed to parse "+configPath, err).
			WithSuggestion("Fix the file with 'truematch config edit' or delete it to restore defaults")
	}

	return cfg, nil
}

// saveConfig saves the configuration to the file
func saveConfig(cfg *GlobalConfig, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// defaultGlobalConfig returns the default configuration
func defaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		API: APIConfig{
			BaseURL: DefaultAPIURL,
			Timeout: "30s",
		},
		Session: SessionConfig{
			Store:       "file",
			RefreshMode: string(platform.RefreshCoalesce),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				Key:  tokenstore.DefaultRedisKey,
			},
		},
		Defaults: CommandDefaults{
			Format: ux.FormatText,
		},
		Logging: LoggingConfig{
			Level:      "info",
			EnableFile: true,
		},
		Telemetry: TelemetryConfig{
			SampleRate: 1.0,
		},
	}
}

// applyEnvOverrides applies TRUEMATCH_* environment variables and then the
// command-line flags, which win.
func applyEnvOverrides(cfg *GlobalConfig, cmdCtx *CommandContext) {
	if env := os.Getenv("TRUEMATCH_API_URL"); env != "" {
		cfg.API.BaseURL = env
	}
	if env := os.Getenv("TRUEMATCH_LOG_LEVEL"); env != "" {
		cfg.Logging.Level = env
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.Defaults.NoColor = true
	}

	if cmdCtx == nil {
		return
	}
	if cmdCtx.APIURL != "" {
		cfg.API.BaseURL = cmdCtx.APIURL
	}
	if cmdCtx.LogLevel != "" {
		cfg.Logging.Level = cmdCtx.LogLevel
	}
	if cmdCtx.Format != "" {
		cfg.Defaults.Format = cmdCtx.Format
	}
	if cmdCtx.NoColor {
		cfg.Defaults.NoColor = true
	}
}

func runConfigView(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}

	cfg, err := loadConfig(cmdCtx.Home)
	if err != nil {
		return err
	}

	format := cmdCtx.Format
	if format == "" {
		format = cfg.Defaults.Format
	}

	if format == ux.FormatJSON || format == ux.FormatYAML {
		formatter, err := ux.NewFormatter(format, &ux.FormatterOptions{Writer: cmd.OutOrStdout()})
		if err != nil {
			return err
		}
		return formatter.Format(cfg)
	}

	configPath, _ := getConfigPath(cmdCtx.Home)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file: %s\n\n%s", configPath, data)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}

	if _, err := loadConfig(cmdCtx.Home); err != nil {
		return err
	}
	configPath, err := getConfigPath(cmdCtx.Home)
	if err != nil {
		return err
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	editorCmd := exec.CommandContext(cmd.Context(), editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	if _, err := loadConfig(cmdCtx.Home); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the configuration could not be parsed, please fix it.")
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration updated")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}

	cfg, err := loadConfig(cmdCtx.Home)
	if err != nil {
		return err
	}

	value, err := getNestedValue(cfg, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}

	cfg, err := loadConfig(cmdCtx.Home)
	if err != nil {
		return err
	}

	if err := setNestedValue(cfg, key, value); err != nil {
		return err
	}

	configPath, err := getConfigPath(cmdCtx.Home)
	if err != nil {
		return err
	}
	if err := saveConfig(cfg, configPath); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s = %s\n", key, value)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return fmt.Errorf("failed to create command context: %w", err)
	}

	configPath, err := getConfigPath(cmdCtx.Home)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), configPath)
	return nil
}

// getNestedValue retrieves a value from the config using dot notation
func getNestedValue(cfg *GlobalConfig, key string) (string, error) {
	switch key {
	case "api.base_url":
		return cfg.API.BaseURL, nil
	case "api.timeout":
		return cfg.API.Timeout, nil
	case "session.store":
		return cfg.Session.Store, nil
	case "session.refresh_mode":
		return cfg.Session.RefreshMode, nil
	case "session.redis.addr":
		return cfg.Session.Redis.Addr, nil
	case "session.redis.db":
		return strconv.Itoa(cfg.Session.Redis.DB), nil
	case "session.redis.key":
		return cfg.Session.Redis.Key, nil
	case "session.redis.ttl":
		return cfg.Session.Redis.TTL, nil
	case "defaults.format":
		return cfg.Defaults.Format, nil
	case "defaults.no_color":
		return strconv.FormatBool(cfg.Defaults.NoColor), nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.enable_file":
		return strconv.FormatBool(cfg.Logging.EnableFile), nil
	case "logging.log_dir":
		return cfg.Logging.LogDir, nil
	case "telemetry.enabled":
		return strconv.FormatBool(cfg.Telemetry.Enabled), nil
	case "telemetry.endpoint":
		return cfg.Telemetry.Endpoint, nil
	case "telemetry.sample_rate":
		return strconv.FormatFloat(cfg.Telemetry.SampleRate, 'g', -1, 64), nil
	default:
		return "", unknownKeyError(key)
	}
}

// setNestedValue validates value and sets it in the config using dot notation
func setNestedValue(cfg *GlobalConfig, key, value string) error {
	switch key {
	case "api.base_url":
		if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return configError(key, value, "an http:// or https:// URL")
		}
		cfg.API.BaseURL = strings.TrimRight(value, "/")
	case "api.timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return configError(key, value, "a Go duration such as 30s")
		}
		cfg.API.Timeout = value
	case "session.store":
		switch value {
		case "file", "redis", "memory":
			cfg.Session.Store = value
		default:
			return configError(key, value, "file, redis, memory")
		}
	case "session.refresh_mode":
		mode, err := platform.ParseRefreshMode(value)
		if err != nil {
			return configError(key, value, "coalesce, per-request")
		}
		cfg.Session.RefreshMode = string(mode)
	case "session.redis.addr":
		cfg.Session.Redis.Addr = value
	case "session.redis.db":
		db, err := strconv.Atoi(value)
		if err != nil || db < 0 {
			return configError(key, value, "a non-negative integer")
		}
		cfg.Session.Redis.DB = db
	case "session.redis.key":
		if value == "" {
			return configError(key, value, "a non-empty key")
		}
		cfg.Session.Redis.Key = value
	case "session.redis.ttl":
		if _, err := time.ParseDuration(value); err != nil {
			return configError(key, value, "a Go duration such as 24h")
		}
		cfg.Session.Redis.TTL = value
	case "defaults.format":
		if !ux.ValidFormat(value) {
			return configError(key, value, "text, json, yaml")
		}
		cfg.Defaults.Format = value
	case "defaults.no_color":
		cfg.Defaults.NoColor = parseBool(value)
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.enable_file":
		cfg.Logging.EnableFile = parseBool(value)
	case "logging.log_dir":
		cfg.Logging.LogDir = value
	case "telemetry.enabled":
		cfg.Telemetry.Enabled = parseBool(value)
	case "telemetry.endpoint":
		cfg.Telemetry.Endpoint = value
	case "telemetry.sample_rate":
		rate, err := strconv.ParseFloat(value, 64)
		if err != nil || rate < 0 || rate > 1 {
			return configError(key, value, "a number between 0 and 1")
		}
		cfg.Telemetry.SampleRate = rate
	default:
		return unknownKeyError(key)
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "yes" || s == "1"
}
