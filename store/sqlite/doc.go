// Package sqlite implements job.Store using the grove ORM with SQLite
// dialect. Suitable for embedded/edge deployments, CLI tools, and standalone
// applications.
//
// The caller owns the *grove.DB lifecycle; the store never closes it:
//
//	sdb := sqlitedriver.New()
//	_ = sdb.Open(ctx, "jobrun.db")
//	db, _ := grove.Open(sdb)
//	store := sqlite.New(db)
//	store.Migrate(ctx)
//
// Timestamps are stored as Unix nanoseconds so ordering and precision
// survive the round trip.
package sqlite
