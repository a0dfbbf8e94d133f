// Package journal records limiter decisions for later inspection.
//
// # Overview
//
// Every decision taken by the limits manager can be appended to a Store.
// Three backends are provided:
//
//   - Memory: bounded ring of recent records, lost on exit
//   - SQLite: durable file-backed store using either the pure Go "sqlite"
//     driver or the cgo "sqlite3" driver
//   - Postgres: a pgx connection pool, so several instances can journal
//     into one table
//
// A Pruner deletes records older than the retention window and is normally
// run by the maintenance scheduler.
//
// # Usage
//
//	store, err := journal.Open(&cfg.Journal)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	recent, err := store.Query(ctx, journal.Filter{Limiter: "api", Limit: 20})
//
// # Thread Safety
//
// All stores are safe for concurrent use.
package journal
