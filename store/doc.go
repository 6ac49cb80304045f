// Package store defines the instance history contract shared by the
// backends under this directory.
//
// The engine persists instances through job.Store. [Store] adds the
// operational methods every backend also provides, and [Migrator] marks
// backends that need a schema before first use.
//
// # Available Backends
//
//   - memory: in-process map, the engine default
//   - redis: Hash per instance plus a Sorted Set index (go-redis)
//   - postgres: raw SQL over pgxpool with embedded migrations
//   - bun: Bun ORM on PostgreSQL, sharing the postgres schema
//   - mongo: grove mongodriver, one document per instance
//   - sqlite: grove sqlitedriver with a grove migration group
package store
