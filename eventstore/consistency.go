package eventstore

import "context"

// ConsistencyLevel tells the event store whether a read may be served by a replica.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary database. Command handlers doing read-check-append need it
	// to see their own writes, so it is the default.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reads from a replica database, if one is configured.
	EventualConsistency
)

const consistencyLevelKey contextKey = "eventstore.consistency_level"

type contextKey string

// WithStrongConsistency returns a context which routes Query to the primary database.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context which allows Query to use a replica database.
//
// Example usage:
//
//	ctx = eventstore.WithEventualConsistency(ctx)
//	events, maxSeq, err := eventStore.Query(ctx, filter)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, consistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, defaulting to StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(consistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
