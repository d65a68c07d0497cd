package oteladapters

import (
	"maps"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

const (
	attrOperation    = "operation"
	attrQueryComment = "query_comment"

	// Semantic convention names for database client spans.
	semconvDBSystemName    = "db.system.name"
	semconvDBOperationName = "db.operation.name"
	semconvDBQuerySummary  = "db.query.summary"
	dbSystemPostgreSQL     = "postgresql"
)

// attributesFrom converts the label map into OpenTelemetry attributes, ordered by key.
func attributesFrom(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))

	for _, key := range slices.Sorted(maps.Keys(labels)) {
		attrs = append(attrs, attribute.String(key, labels[key]))
	}

	return attrs
}

// semconvAttributesFrom mirrors the repository operation and its query comment into the database semantic conventions.
func semconvAttributesFrom(labels map[string]string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(semconvDBSystemName, dbSystemPostgreSQL)}

	if operation, ok := labels[attrOperation]; ok && operation != "" {
		attrs = append(attrs, attribute.String(semconvDBOperationName, operation))
	}

	if comment, ok := labels[attrQueryComment]; ok && comment != "" {
		attrs = append(attrs, attribute.String(semconvDBQuerySummary, comment))
	}

	return attrs
}
