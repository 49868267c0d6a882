package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartCommandSpan creates a span for a CLI command execution.
//
//	ctx, span := telemetry.StartCommandSpan(ctx, "auth login")
//	defer span.End()
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("commands")
	ctx, span := tracer.Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartRequestSpan creates a client span for one logical API request.
// Attempts (original send and resend) are recorded as events on it.
func StartRequestSpan(ctx context.Context, method, path, requestID string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("platform")
	ctx, span := tracer.Start(ctx, "http "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))

	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("request.id", requestID),
		attribute.String("component", "pipeline"),
	)

	return ctx, span
}

// StartRefreshSpan creates a span around a refresh-token exchange
func StartRefreshSpan(ctx context.Context, mode string) (context.Context, trace.Span) {
	tracer := GetTracerProvider().Tracer("platform")
	ctx, span := tracer.Start(ctx, "session.refresh")

	span.SetAttributes(
		attribute.String("refresh.mode", mode),
		attribute.String("component", "pipeline"),
	)

	return ctx, span
}

// RecordAttempt adds an attempt event with its HTTP status to span
func RecordAttempt(span trace.Span, attempt, status int) {
	span.AddEvent("attempt", trace.WithAttributes(
		attribute.Int("attempt", attempt),
		attribute.Int("http.status_code", status),
	))
}

// RecordSuccess marks a span as successful with optional result attributes
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
