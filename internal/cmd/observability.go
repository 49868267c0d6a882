package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
	"github.com/felixgeelhaar/truematch/internal/telemetry"
	"github.com/felixgeelhaar/truematch/internal/version"
)

// setupObservability configures logging, metrics, and optional telemetry.
// It returns a cleanup function that should be deferred by the caller.
func setupObservability(ctx context.Context, cfg *GlobalConfig, home string) func() {
	logCleanup := setupLogging(cfg, home)
	metrics.InitDefault()
	telemetryCleanup := setupTelemetry(ctx, cfg)

	return func() {
		telemetryCleanup()
		logCleanup()
	}
}

func setupLogging(cfg *GlobalConfig, home string) func() {
	info := version.GetInfo()

	loggerOutput, _, fileCleanup := configureLogOutput(cfg, home)

	logger := log.New(log.Config{
		Level:          log.ParseLevel(getLogLevel(cfg)),
		Format:         log.ParseFormat(getLogFormat()),
		Output:         loggerOutput,
		AddSource:      false,
		ServiceName:    "truematch",
		ServiceVersion: info.Version,
	})

	log.SetDefaultLogger(logger)
	return fileCleanup
}

func setupTelemetry(ctx context.Context, cfg *GlobalConfig) func() {
	if !telemetryRequested(cfg) {
		return func() {}
	}

	info := version.GetInfo()
	telemCfg := telemetry.Config{
		ServiceName:    "truematch",
		ServiceVersion: info.Version,
		Environment:    telemetryEnvironment(),
		Enabled:        true,
		Endpoint:       telemetryEndpoint(cfg),
		SampleRate:     telemetrySampleRate(cfg),
	}

	shutdown, err := telemetry.InitProvider(ctx, telemCfg)
	if err != nil {
		log.DefaultLogger().Warn("Failed to initialize telemetry", "error", err)
		return func() {}
	}

	log.DefaultLogger().Debug("Telemetry enabled",
		"endpoint", telemCfg.Endpoint,
		"sample_rate", telemCfg.SampleRate,
	)

	return func() {
		if shutdown == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdown(shutdownCtx); err != nil {
			log.DefaultLogger().Warn("Failed to flush telemetry", "error", err)
		}
	}
}

func telemetryRequested(cfg *GlobalConfig) bool {
	if val := strings.ToLower(os.Getenv("TRUEMATCH_TELEMETRY")); val != "" {
		return val == "on" || val == "true" || val == "1" || val == "enabled"
	}
	return cfg != nil && cfg.Telemetry.Enabled
}

func telemetryEndpoint(cfg *GlobalConfig) string {
	if env := os.Getenv("TRUEMATCH_TELEMETRY_ENDPOINT"); env != "" {
		return env
	}
	if cfg != nil {
		return cfg.Telemetry.Endpoint
	}
	return ""
}

func telemetrySampleRate(cfg *GlobalConfig) float64 {
	if env := os.Getenv("TRUEMATCH_TELEMETRY_SAMPLE_RATE"); env != "" {
		if v, err := strconv.ParseFloat(env, 64); err == nil {
			return clampSampleRate(v)
		}
	}
	if cfg != nil && cfg.Telemetry.SampleRate > 0 {
		return clampSampleRate(cfg.Telemetry.SampleRate)
	}
	return 1.0
}

func telemetryEnvironment() string {
	if env := os.Getenv("TRUEMATCH_ENV"); env != "" {
		return env
	}
	return "cli"
}

func clampSampleRate(value float64) float64 {
	switch {
	case value <= 0:
		return 0.0
	case value >= 1:
		return 1.0
	default:
		return value
	}
}

// getLogLevel reads the level after env and flag overrides were applied
func getLogLevel(cfg *GlobalConfig) string {
	if cfg != nil && cfg.Logging.Level != "" {
		return cfg.Logging.Level
	}
	return "info"
}

func getLogFormat() string {
	if env := os.Getenv("TRUEMATCH_LOG_FORMAT"); env != "" {
		return env
	}
	return "json"
}

// configureLogOutput keeps the terminal clean: logs go to <home>/logs unless
// TRUEMATCH_LOG_STDOUT asks for stdout as well.
func configureLogOutput(cfg *GlobalConfig, home string) (log.Output, string, func()) {
	var writers []io.Writer

	if os.Getenv("TRUEMATCH_LOG_STDOUT") == "true" {
		writers = append(writers, os.Stdout)
	}

	var file *os.File
	var filePath string
	if cfg != nil && cfg.Logging.EnableFile {
		dir := cfg.Logging.LogDir
		if dir == "" {
			dir = filepath.Join(home, "logs")
		}
		dir = expandPath(dir)
		if err := os.MkdirAll(dir, 0o750); err == nil {
			path := filepath.Join(dir, "truematch.log")
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err == nil {
				file = f
				filePath = path
				writers = append(writers, f)
			}
		}
	}

	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	output := log.NewOutput(io.MultiWriter(writers...))
	cleanup := func() {
		if file != nil {
			_ = file.Close()
		}
	}
	return output, filePath, cleanup
}

// printMetricsSummary writes the non-zero counters of this process
func printMetricsSummary(w io.Writer) {
	if metrics.DefaultRegistry == nil {
		return
	}
	samples, err := metrics.Summarize(metrics.DefaultRegistry)
	if err != nil {
		fmt.Fprintf(w, "metrics unavailable: %v\n", err)
		return
	}
	fmt.Fprintln(w, "Metrics:")
	for _, s := range samples {
		fmt.Fprintf(w, "  %s\n", s)
	}
}
