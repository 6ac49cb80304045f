// Package postgres implements job.Store on PostgreSQL using pgx/v5 with raw
// SQL. Instance history lives in a single jobrun_instances table created by
// the embedded migrations; call Migrate once before use.
package postgres
