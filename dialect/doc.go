// Package dialect defines what the persister needs from a database: a
// session that runs statements (ExecQuerier) and transactions opened from
// it (Driver.Tx, Tx.Commit, Tx.Rollback). Keeping these here lets the
// planner be tested without database/sql.
//
// The dialect name of a driver selects quoting, placeholders and how
// generated keys are read back:
//
//   - Postgres and SQLite return generated keys with RETURNING.
//   - MySQL reads LAST_INSERT_ID.
//
// dialect/sql implements the interfaces over database/sql:
//
//	drv, err := sql.Open("sqlite", "file:app.db?_pragma=foreign_keys(1)")
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//	p := persist.New(drv, registry)
package dialect
