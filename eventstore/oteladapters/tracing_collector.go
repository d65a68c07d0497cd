package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
)

const (
	statusSuccess  = "success"
	statusError    = "error"
	statusConflict = "conflict"
	attrErrorType  = "error_type"
	attrStatus     = "status"
)

// TracingCollector implements eventstore.TracingCollector using the OpenTelemetry tracing API.
// Spans are started as client spans; the operation and query comment are additionally recorded
// under the database semantic convention names.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a new OpenTelemetry tracing collector.
// The tracer should be created from your OpenTelemetry TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan implements eventstore.TracingCollector.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	spanCtx, span := t.tracer.Start(
		ctx,
		name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attributesFrom(attrs)...),
		trace.WithAttributes(semconvAttributesFrom(attrs)...),
	)

	return spanCtx, &SpanContext{span: span}
}

// FinishSpan implements eventstore.TracingCollector. Span contexts not created by this collector are ignored.
func (t *TracingCollector) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*SpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(attributesFrom(attrs)...)
	otelSpanCtx.setStatus(status, attrs[attrErrorType])
	otelSpanCtx.span.End()
}

var _ eventstore.TracingCollector = (*TracingCollector)(nil)

// SpanContext implements eventstore.SpanContext by wrapping an OpenTelemetry span.
type SpanContext struct {
	span trace.Span
}

// SetStatus implements eventstore.SpanContext.
func (s *SpanContext) SetStatus(status string) {
	s.setStatus(status, "")
}

// AddAttribute implements eventstore.SpanContext.
func (s *SpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

func (s *SpanContext) setStatus(status string, errorType string) {
	switch status {
	case statusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case statusConflict:
		s.span.SetStatus(codes.Error, "concurrency conflict")
	case statusError:
		description := "operation failed"
		if errorType != "" {
			description += ": " + errorType
		}

		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetAttributes(attribute.String(attrStatus, status))
	}
}

var _ eventstore.SpanContext = (*SpanContext)(nil)
