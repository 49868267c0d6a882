package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	globalProvider trace.TracerProvider
	globalShutdown func(context.Context) error
	providerMu     sync.RWMutex
)

func createResource(cfg Config) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
}

// InitProvider initializes the OpenTelemetry tracer provider.
// Returns a shutdown function that flushes pending spans.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if !cfg.Enabled {
		globalProvider = noop.NewTracerProvider()
		globalShutdown = func(context.Context) error { return nil }
		otel.SetTracerProvider(globalProvider)
		return globalShutdown, nil
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(createResource(cfg)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clamp(cfg.SampleRate)))),
	}

	if cfg.Endpoint != "" {
		exporter, err := otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	globalProvider = tp
	otel.SetTracerProvider(tp)
	globalShutdown = tp.Shutdown

	return globalShutdown, nil
}

// SetTracerProvider installs tp as the package provider. Tests use it with
// an in-memory exporter.
func SetTracerProvider(tp trace.TracerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	globalProvider = tp
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	shutdown := globalShutdown
	providerMu.RUnlock()

	if shutdown != nil {
		return shutdown(ctx)
	}
	return nil
}

// GetTracerProvider returns the current tracer provider
func GetTracerProvider() trace.TracerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if globalProvider != nil {
		return globalProvider
	}
	return noop.NewTracerProvider()
}

func clamp(rate float64) float64 {
	switch {
	case rate <= 0:
		return 0
	case rate >= 1:
		return 1
	default:
		return rate
	}
}
