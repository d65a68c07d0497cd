// Package oteladapters provides OpenTelemetry implementations of the eventstore observability interfaces.
//
// Spans, metrics, and log records emitted through these adapters carry the repository operation
// and, if there is one, its query comment, so the same text can be followed from the application trace
// down to the database statistics.
//
//	tracer := otel.Tracer("querymeta-eventstore")
//	meter := otel.Meter("querymeta-eventstore")
//
//	store, err := postgresengine.NewEventStoreFromPGXPool(
//		pool,
//		postgresengine.WithQueryMeta(registry),
//		postgresengine.WithTracing(oteladapters.NewTracingCollector(tracer)),
//		postgresengine.WithMetrics(oteladapters.NewMetricsCollector(meter)),
//		postgresengine.WithContextualLogger(oteladapters.NewSlogBridgeLogger("querymeta-eventstore")),
//	)
package oteladapters
