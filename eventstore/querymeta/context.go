package querymeta

import "context"

// contextKey is a private type to prevent context key collisions.
type contextKey string

// OperationKey is the context key under which the current repository operation is stored.
const OperationKey contextKey = "querymeta.operation"

// WithOperation returns a context which tells the event store which repository operation it is executing.
//
// Example usage:
//
//	ctx = querymeta.WithOperation(ctx, "findAllActive")
//	events, maxSeq, err := eventStore.Query(ctx, filter)
func WithOperation(ctx context.Context, operation OperationName) context.Context {
	return context.WithValue(ctx, OperationKey, operation)
}

// OperationFrom extracts the repository operation from the context.
// It returns false if no operation, or an empty one, was set.
func OperationFrom(ctx context.Context) (OperationName, bool) {
	operation, ok := ctx.Value(OperationKey).(OperationName)
	if !ok || operation == "" {
		return "", false
	}

	return operation, true
}
