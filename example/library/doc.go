// Package library is an example of repository operations which carry static query metadata.
//
// The operations of the Repository are declared once, at startup, with RegisterQueryMeta.
// Every Query and Append the Repository runs through the event store is tagged with its operation,
// so PostgreSQL sees e.g.
//
//	/* lend book copy to reader */ WITH context AS (SELECT MAX("sequence_number") ...
//
// in pg_stat_activity and pg_stat_statements.
package library
