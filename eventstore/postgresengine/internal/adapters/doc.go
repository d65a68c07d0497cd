// Package adapters lets the PostgreSQL event store run on pgxpool.Pool, sql.DB, or sqlx.DB.
//
// All adapters execute fully rendered SQL strings, the statements carry no bind arguments.
// This keeps the query comment and the statement together as one string, exactly as logged.
package adapters
