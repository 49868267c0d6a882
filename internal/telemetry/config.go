package telemetry

// Config holds configuration for the tracer
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector endpoint (host:port).
	// If empty, spans are recorded but not exported.
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig returns a disabled configuration; tracing is opt-in for the CLI
func DefaultConfig() Config {
	return Config{
		ServiceName:    "truematch",
		ServiceVersion: "dev",
		Environment:    "cli",
		SampleRate:     1.0,
	}
}
