package postgresengine

import (
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithTableName sets the table name for the EventStore.
func WithTableName(tableName string) Option {
	return func(es *EventStore) error {
		if tableName == "" {
			return eventstore.ErrEmptyEventsTableName
		}

		es.eventTableName = tableName

		return nil
	}
}

// WithLogger sets the logger for the EventStore.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries (including their comment) with execution timing
// Info level: Event counts, durations, concurrency conflicts (production-safe)
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, e.g. one that correlates log records with trace spans.
// It receives the same messages as the Logger set with WithLogger; both can be used at the same time.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(es *EventStore) error {
		es.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the EventStore.
// It receives query/append durations, event counts, concurrency conflicts, and database errors,
// all labeled with the repository operation.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(es *EventStore) error {
		es.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the EventStore.
// Query and Append spans carry the repository operation and its query comment as attributes.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(es *EventStore) error {
		es.tracingCollector = collector
		return nil
	}
}

// WithQueryMeta sets the registry from which the EventStore resolves the query metadata of repository operations.
// Without it, no query carries a comment.
func WithQueryMeta(registry *querymeta.Registry) Option {
	return func(es *EventStore) error {
		es.queryMeta = registry
		return nil
	}
}
