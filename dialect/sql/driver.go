package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/graft/dialect"
)

// ExecQuerier is the part of *sql.DB, *sql.Conn and *sql.Tx that a Conn
// runs statements on.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
)

// ColumnScanner is the part of *sql.Rows used to read result sets.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// Conn is a dialect.ExecQuerier over a database/sql session. The driver
// name it was opened with decides the dialect.
type Conn struct {
	ExecQuerier
	name string
}

// Dialect returns the dialect of the connection.
func (c Conn) Dialect() string {
	return dialectOf(c.name)
}

// Exec runs a statement. v must be nil or a *Result that receives the
// statement result.
func (c Conn) Exec(ctx context.Context, query string, args, v any) error {
	argv, err := argsOf(args)
	if err != nil {
		return err
	}
	var res *Result
	switch v := v.(type) {
	case nil:
	case *Result:
		res = v
	default:
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Result", v)
	}
	r, err := c.ExecContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: exec: %w", err)
	}
	if res != nil {
		*res = r
	}
	return nil
}

// Query runs a query. v must be a *Rows; the caller closes it.
func (c Conn) Query(ctx context.Context, query string, args, v any) error {
	rows, ok := v.(*Rows)
	if !ok {
		return fmt.Errorf("dialect/sql: invalid type %T. expect *sql.Rows", v)
	}
	argv, err := argsOf(args)
	if err != nil {
		return err
	}
	r, err := c.QueryContext(ctx, query, argv...)
	if err != nil {
		return fmt.Errorf("dialect/sql: query: %w", err)
	}
	rows.ColumnScanner = r
	return nil
}

func argsOf(args any) ([]any, error) {
	argv, ok := args.([]any)
	if !ok {
		return nil, fmt.Errorf("dialect/sql: invalid type %T. expect []any for args", args)
	}
	return argv, nil
}

// Driver is the dialect.Driver of a *sql.DB.
type Driver struct {
	Conn
	db *sql.DB
}

// Open opens a database with database/sql and wraps it. driverName is the
// name the database/sql driver registered, e.g. "sqlite" for
// modernc.org/sqlite or "postgres" for lib/pq.
func Open(driverName, source string) (*Driver, error) {
	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, err
	}
	return OpenDB(driverName, db), nil
}

// OpenDB wraps an open database.
func OpenDB(driverName string, db *sql.DB) *Driver {
	return &Driver{Conn: Conn{ExecQuerier: db, name: driverName}, db: db}
}

// DB returns the wrapped database.
func (d *Driver) DB() *sql.DB { return d.db }

// Tx starts a transaction with the default options.
func (d *Driver) Tx(ctx context.Context) (dialect.Tx, error) {
	return d.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with options, for example a stricter
// isolation level for the persist calls that need it.
func (d *Driver) BeginTx(ctx context.Context, opts *TxOptions) (dialect.Tx, error) {
	tx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: begin: %w", err)
	}
	return &Tx{Conn: Conn{ExecQuerier: tx, name: d.name}, tx: tx, ctx: ctx}, nil
}

// Close closes the database.
func (d *Driver) Close() error { return d.db.Close() }

// Tx is the dialect.Tx of a *sql.Tx.
type Tx struct {
	Conn
	tx  *sql.Tx
	ctx context.Context
}

// Commit commits the transaction.
func (t *Tx) Commit() error { return t.tx.Commit() }

// Rollback aborts the transaction. database/sql rolls a transaction back
// on its own once the context it began with is done, so ErrTxDone is not
// an error then.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) && t.ctx != nil && t.ctx.Err() != nil {
		return nil
	}
	return err
}

// dialectOf maps a database/sql driver name, possibly wrapped by a
// telemetry driver, to one of the supported dialects.
func dialectOf(name string) string {
	switch {
	case strings.HasPrefix(name, dialect.MySQL):
		return dialect.MySQL
	case strings.HasPrefix(name, "sqlite"):
		return dialect.SQLite
	case strings.HasPrefix(name, dialect.Postgres), strings.HasPrefix(name, "pgx"):
		return dialect.Postgres
	}
	return name
}

var (
	_ dialect.Driver = (*Driver)(nil)
	_ dialect.Tx     = (*Tx)(nil)
)
