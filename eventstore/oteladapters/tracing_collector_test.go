package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/oteladapters"
)

func givenTracingCollector(t *testing.T) (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func attributeValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_RecordsOperationAndComment(t *testing.T) {
	// arrange
	collector, exporter := givenTracingCollector(t)

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), "eventstore.query", map[string]string{
		"action":        "query",
		"operation":     "findAllActive",
		"query_comment": "findAll query",
	})
	collector.FinishSpan(spanCtx, "success", map[string]string{"event_count": "5"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "eventstore.query", span.Name)
	assert.Equal(t, trace.SpanKindClient, span.SpanKind)
	assert.Equal(t, codes.Ok, span.Status.Code)

	expected := map[string]string{
		"operation":         "findAllActive",
		"query_comment":     "findAll query",
		"event_count":       "5",
		"db.system.name":    "postgresql",
		"db.operation.name": "findAllActive",
		"db.query.summary":  "findAll query",
	}
	for key, value := range expected {
		actual, found := attributeValue(span.Attributes, key)
		assert.True(t, found, "missing attribute %s", key)
		assert.Equal(t, value, actual, "attribute %s", key)
	}
}

func Test_TracingCollector_WithoutComment(t *testing.T) {
	collector, exporter := givenTracingCollector(t)

	_, spanCtx := collector.StartSpan(context.Background(), "eventstore.query", map[string]string{"operation": "count"})
	collector.FinishSpan(spanCtx, "success", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	_, found := attributeValue(spans[0].Attributes, "db.query.summary")
	assert.False(t, found)
}

func Test_TracingCollector_Status(t *testing.T) {
	tests := []struct {
		name                string
		status              string
		attrs               map[string]string
		expectedCode        codes.Code
		expectedDescription string
	}{
		{name: "success", status: "success", expectedCode: codes.Ok},
		{name: "conflict", status: "conflict", expectedCode: codes.Error, expectedDescription: "concurrency conflict"},
		{name: "error without type", status: "error", expectedCode: codes.Error, expectedDescription: "operation failed"},
		{
			name:                "error with type",
			status:              "error",
			attrs:               map[string]string{"error_type": "database_query"},
			expectedCode:        codes.Error,
			expectedDescription: "operation failed: database_query",
		},
		{name: "unknown status", status: "whatever", expectedCode: codes.Unset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector, exporter := givenTracingCollector(t)

			_, spanCtx := collector.StartSpan(context.Background(), "eventstore.append", nil)
			collector.FinishSpan(spanCtx, tt.status, tt.attrs)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tt.expectedCode, spans[0].Status.Code)
			assert.Equal(t, tt.expectedDescription, spans[0].Status.Description)
		})
	}
}

func Test_TracingCollector_IgnoresForeignSpanContexts(t *testing.T) {
	collector, exporter := givenTracingCollector(t)

	assert.NotPanics(t, func() { collector.FinishSpan(nil, "success", nil) })
	assert.Empty(t, exporter.GetSpans())
}

func Test_SpanContext_AddAttribute(t *testing.T) {
	collector, exporter := givenTracingCollector(t)

	_, spanCtx := collector.StartSpan(context.Background(), "eventstore.query", nil)
	spanCtx.AddAttribute("retry", "1")
	collector.FinishSpan(spanCtx, "success", nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	value, found := attributeValue(spans[0].Attributes, "retry")
	assert.True(t, found)
	assert.Equal(t, "1", value)
}
