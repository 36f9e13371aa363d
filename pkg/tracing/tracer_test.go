package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStart_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ctx, parent := Start(context.Background(), "solve", attribute.String("modelforge.problem.id", "p1"))
	_, child := Start(ctx, "solve.attempt")
	RecordError(child, errors.New("timeout"))
	RecordError(child, nil)
	child.End()
	parent.End()

	spans := exporter.GetSpans()
	if assert.Len(t, spans, 2) {
		assert.Equal(t, "solve.attempt", spans[0].Name)
		assert.Equal(t, codes.Error, spans[0].Status.Code)
		assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
		assert.Contains(t, spans[1].Attributes, attribute.String("modelforge.problem.id", "p1"))
	}
}

func TestStart_NoopProvider(t *testing.T) {
	ctx, span := Start(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsSampled())
}
