// Package postgresengine provides a PostgreSQL implementation of the eventstore interface.
//
// This package implements dynamic event streams using PostgreSQL as the storage backend,
// supporting multiple database adapters (pgx, sql.DB, sqlx) with atomic operations
// and concurrency control.
//
// The EventStore is also the query builder of the repository operations that run through it:
// Query and Append resolve the query metadata of the current operation from a querymeta.Registry
// and prefix the generated SQL with its comment, so the text shows up in pg_stat_activity,
// pg_stat_statements, and the server log.
//
// Key features:
//   - Multiple database adapter support (PGX, SQL, SQLX) and an optional read replica
//   - Atomic event appending with concurrency conflict detection
//   - Dynamic event stream filtering with JSON predicate support
//   - Query comments per repository operation
//   - Optional logging, metrics, and tracing, all labeled with the repository operation
//
// Usage examples:
//
//	registry := querymeta.NewRegistry()
//	_ = registry.Register("findAllActive", querymeta.MustNew(querymeta.WithComment("findAll query")))
//
//	db, _ := pgxpool.New(context.Background(), dsn)
//	store, _ := postgresengine.NewEventStoreFromPGXPool(
//		db,
//		postgresengine.WithTableName("my_events"),
//		postgresengine.WithQueryMeta(registry),
//		postgresengine.WithLogger(slog.Default()),
//	)
//
//	// runs as: /* findAll query */ SELECT ...
//	events, maxSeq, _ := store.Query(querymeta.WithOperation(ctx, "findAllActive"), filter)
//	err := store.Append(ctx, filter, maxSeq, newEvent)
package postgresengine
