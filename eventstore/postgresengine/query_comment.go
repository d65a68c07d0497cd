package postgresengine

import (
	"context"
	"strings"

	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore"
	"github.com/AntonStoeckl/querymeta-eventstore-go/eventstore/querymeta"
)

const (
	sqlCommentOpen  = "/* "
	sqlCommentClose = " */ "
)

// queryMeta is the resolved metadata of one Query or Append call.
type queryMeta struct {
	operation querymeta.OperationName
	comment   string
}

// resolveQueryMeta determines the repository operation from the context (falling back to the built-in one)
// and looks up its comment. Unregistered operations get an empty comment.
func (es *EventStore) resolveQueryMeta(ctx context.Context, fallback querymeta.OperationName) queryMeta {
	operation := eventstore.OperationOrDefault(ctx, fallback)

	return queryMeta{
		operation: operation,
		comment:   es.queryMeta.MetaFor(operation).Comment(),
	}
}

// withComment prefixes sqlQuery with the comment as a block comment, or returns it unchanged if the comment is empty.
func withComment(comment string, sqlQuery string) string {
	if comment == "" {
		return sqlQuery
	}

	return sqlCommentOpen + sanitizeComment(comment) + sqlCommentClose + sqlQuery
}

// sanitizeComment makes sure the text can neither terminate the block comment nor open a nested one
// (Postgres block comments nest). Invalid UTF-8 and NUL bytes are not allowed in Postgres query text at all.
// The order matters: after breaking up every "*/", breaking up "/*" can not create a new one.
func sanitizeComment(comment string) string {
	sanitized := strings.ToValidUTF8(comment, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	sanitized = strings.ReplaceAll(sanitized, "*/", "* /")
	sanitized = strings.ReplaceAll(sanitized, "/*", "/ *")

	return sanitized
}
