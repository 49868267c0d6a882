package log

import (
	"io"
	"os"
)

// Format represents the output format for logs
type Format int

const (
	// FormatJSON outputs logs in JSON format
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format
	FormatText
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	default:
		return "json"
	}
}

// ParseFormat parses a string into a Format
func ParseFormat(s string) Format {
	switch s {
	case "text", "TEXT", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return io.Discard
	}
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStdout creates an Output that writes to stdout
func OutputStdout() Output {
	return Output{writer: os.Stdout}
}

// OutputStderr creates an Output that writes to stderr
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// OutputDiscard drops everything. The CLI uses it until a log file is configured.
func OutputDiscard() Output {
	return Output{writer: io.Discard}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format (JSON or Text)
	Format Format

	// Output is where logs should be written
	Output Output

	// AddSource includes source file and line number in logs
	AddSource bool

	// ServiceName is attached to every record as "service"
	ServiceName string

	// ServiceVersion is attached to every record as "version"
	ServiceVersion string
}

// DefaultConfig logs at INFO level in JSON format, discarding output.
// A CLI must not print logs over its own user-facing output unless asked to.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatJSON,
		Output:         OutputDiscard(),
		ServiceName:    "truematch",
		ServiceVersion: "dev",
	}
}

// DevelopmentConfig logs at DEBUG level in text format to stderr with source location
func DevelopmentConfig() Config {
	return Config{
		Level:          LevelDebug,
		Format:         FormatText,
		Output:         OutputStderr(),
		AddSource:      true,
		ServiceName:    "truematch",
		ServiceVersion: "dev",
	}
}
