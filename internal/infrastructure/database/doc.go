// Package database provides SQLite connectivity for Porter Core.
//
// This package manages:
//   - Opening the database file with WAL mode and busy timeout pragmas
//   - Running embedded schema migrations at startup
//   - Connection health checks
//
// Porter uses SQLite as its local journal store: device state transitions,
// presence decision outcomes and related audit data live here. The database
// is never on the frame-handling hot path; writes happen from handler
// goroutines after the interesting work is done.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
