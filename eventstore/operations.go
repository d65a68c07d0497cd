package eventstore

import (
	"context"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

// Built-in operation names, used when the context does not name a repository operation.
// Registering query metadata for them applies to every Query or Append without an explicit operation.
const (
	OperationQuery  querymeta.OperationName = "eventstore.Query"
	OperationAppend querymeta.OperationName = "eventstore.Append"
)

// OperationOrDefault returns the repository operation stored in the context, or fallback if there is none.
func OperationOrDefault(ctx context.Context, fallback querymeta.OperationName) querymeta.OperationName {
	if operation, ok := querymeta.OperationFrom(ctx); ok {
		return operation
	}

	return fallback
}
