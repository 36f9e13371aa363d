// Package tracing provides the shared OTel tracer helper for domain packages.
//
// When no TracerProvider is registered (tests, the CLI, local runs without an
// OTLP endpoint) the global no-op provider is used and every call is inert.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "modelforge"

// Start creates a span as a child of the span in ctx, or a root span when ctx
// carries none. The caller must End the returned span.
//
//	ctx, span := tracing.Start(ctx, "compiler.compile",
//	    attribute.Int("modelforge.find_targets", len(targets)),
//	)
//	defer span.End()
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError marks the span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
