// Package eventstore provides the core types for event sourcing with dynamic event streams,
// shared by all engine implementations.
//
// Key types:
//   - Filter: criteria for querying events (event types, JSON payload predicates, occurred-at range)
//   - StorableEvent: an event as it is appended and queried back
//   - Logger, MetricsCollector, TracingCollector: dependency-free observability hooks
//
// Repository operations can carry query metadata (see package querymeta). The operation is
// put into the context, engines resolve its metadata and embed the comment into the generated query:
//
//	ctx = querymeta.WithOperation(ctx, "findAllActive")
//
//	filter := eventstore.BuildEventFilter().
//		Matching().
//		AnyEventTypeOf(BookCopyLentToReaderEventType, BookCopyReturnedByReaderEventType).
//		AnyPredicateOf(eventstore.P("BookID", bookID)).
//		Finalize()
//
//	events, maxSeq, err := store.Query(ctx, filter)
//	if err != nil {
//		// handle error
//	}
//
//	newEvent, _ := eventstore.BuildStorableEvent(eventType, time.Now(), payload, metadata)
//	err = store.Append(ctx, filter, maxSeq, newEvent)
package eventstore
