// Package querymeta attaches metadata to repository operations so that the query-building
// engine can include it in the generated query, e.g. a comment that shows up in the database's
// query log or in pg_stat_activity.
//
// Metadata is registered explicitly, once, at startup:
//
//	registry := querymeta.NewRegistry()
//	_ = registry.Register("findAllActive", querymeta.MustNew(querymeta.WithComment("findAll query")))
//	_ = registry.Register("count", querymeta.MustNew())
//
// Reusable definitions are expressed as Templates, which other markers include:
//
//	reporting := querymeta.MustNewTemplate("reporting", querymeta.WithComment("reporting query"))
//	_ = registry.RegisterTemplate("monthlyReport", reporting)
//
// At call time the operation travels in the context:
//
//	ctx = querymeta.WithOperation(ctx, "findAllActive")
//	events, maxSeq, err := store.Query(ctx, filter)
//
// An operation without registered metadata behaves exactly like one registered with an empty comment.
package querymeta
