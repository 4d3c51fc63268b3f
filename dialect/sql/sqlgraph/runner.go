// Package sqlgraph implements the statements issued by the persister on top
// of the dialect/sql builders: single-row inserts, updates and deletes keyed
// by primary key, bulk junction maintenance and batched primary-key loads.
package sqlgraph

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/text/cases"

	"github.com/syssam/graft/contrib/dataloader"
	"github.com/syssam/graft/dialect"
	"github.com/syssam/graft/dialect/sql"
	"github.com/syssam/graft/schema"
)

// maxParams bounds the number of placeholders of bulk statements, below the
// historical SQLite limit.
const maxParams = 999

// InsertResult holds the outcome of a single-row insert.
type InsertResult struct {
	// Values holds the generated column values reported by the database,
	// keyed by the requested column names.
	Values map[string]any
}

// Runner executes persister statements for one SQL dialect.
type Runner struct {
	dialect string
}

// NewRunner returns a Runner for the given dialect (see the dialect package).
func NewRunner(d string) *Runner {
	return &Runner{dialect: d}
}

// Dialect returns the runner dialect.
func (r *Runner) Dialect() string { return r.dialect }

func (r *Runner) builder() *sql.DialectBuilder {
	return sql.Dialect(r.dialect)
}

// Insert inserts a single row and returns the values of the returning
// columns. PostgreSQL and SQLite use a RETURNING clause; MySQL reports the
// auto-increment value of a single returning column through LastInsertId.
func (r *Runner) Insert(ctx context.Context, s dialect.ExecQuerier, table string, values map[string]any, returning []string) (InsertResult, error) {
	var res InsertResult
	cols := slices.Sorted(maps.Keys(values))
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	b := r.builder().Insert(table).Columns(cols...)
	if len(cols) > 0 {
		b.Values(args...)
	}
	if len(returning) > 0 && r.dialect != dialect.MySQL {
		query, qargs := b.Returning(returning...).Query()
		rows := &sql.Rows{}
		if err := s.Query(ctx, query, qargs, rows); err != nil {
			return res, wrapConstraint(err)
		}
		defer rows.Close()
		scanned, err := ScanRows(rows, returning)
		if err != nil {
			return res, wrapConstraint(err)
		}
		if len(scanned) != 1 {
			return res, fmt.Errorf("graft: insert into %s returned %d rows", table, len(scanned))
		}
		res.Values = scanned[0]
		return res, nil
	}
	if len(returning) > 1 {
		return res, fmt.Errorf("graft: %s does not support returning %d generated columns", r.dialect, len(returning))
	}
	query, qargs := b.Query()
	var result sql.Result
	if err := s.Exec(ctx, query, qargs, &result); err != nil {
		return res, wrapConstraint(err)
	}
	if len(returning) == 1 {
		id, err := result.LastInsertId()
		if err != nil {
			return res, fmt.Errorf("graft: insert into %s: last insert id: %w", table, err)
		}
		res.Values = map[string]any{returning[0]: id}
	}
	return res, nil
}

// Update sets the given columns of the row with the given primary key and
// returns the number of affected rows.
func (r *Runner) Update(ctx context.Context, s dialect.ExecQuerier, table string, id schema.Identifier, values map[string]any) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	u := r.builder().Update(table)
	for _, c := range slices.Sorted(maps.Keys(values)) {
		u.Set(c, values[c])
	}
	query, args := u.Where(keyPredicate(id)).Query()
	return r.exec(ctx, s, query, args)
}

// Delete deletes the row with the given primary key and returns the number
// of affected rows.
func (r *Runner) Delete(ctx context.Context, s dialect.ExecQuerier, table string, id schema.Identifier) (int64, error) {
	query, args := r.builder().Delete(table).Where(keyPredicate(id)).Query()
	return r.exec(ctx, s, query, args)
}

// BulkInsert inserts rows sharing the same columns, splitting them into as
// few statements as the parameter limit allows.
func (r *Runner) BulkInsert(ctx context.Context, s dialect.ExecQuerier, table string, rows []map[string]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := slices.Sorted(maps.Keys(rows[0]))
	var affected int64
	for _, chunk := range dataloader.Chunk(rows, chunkSize(len(cols))) {
		b := r.builder().Insert(table).Columns(cols...)
		for _, row := range chunk {
			if len(row) != len(cols) {
				return affected, fmt.Errorf("graft: bulk insert into %s: rows have different columns", table)
			}
			args := make([]any, len(cols))
			for i, c := range cols {
				v, ok := row[c]
				if !ok {
					return affected, fmt.Errorf("graft: bulk insert into %s: row is missing column %q", table, c)
				}
				args[i] = v
			}
			b.Values(args...)
		}
		query, args := b.Query()
		n, err := r.exec(ctx, s, query, args)
		if err != nil {
			return affected, err
		}
		affected += n
	}
	return affected, nil
}

// BulkDelete deletes the rows matching any of the given keys.
func (r *Runner) BulkDelete(ctx context.Context, s dialect.ExecQuerier, table string, keys []map[string]any) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var affected int64
	for _, chunk := range dataloader.Chunk(keys, chunkSize(len(keys[0]))) {
		query, args := r.builder().Delete(table).Where(sql.Keys(chunk)).Query()
		n, err := r.exec(ctx, s, query, args)
		if err != nil {
			return affected, err
		}
		affected += n
	}
	return affected, nil
}

// Select returns the given columns of the rows matching any of the keys.
// Column names in the result are the requested ones, whatever case the
// driver reports them in.
func (r *Runner) Select(ctx context.Context, s dialect.ExecQuerier, table string, columns []string, keys []map[string]any) ([]map[string]any, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	query, args := r.builder().Select(columns...).From(table).Where(sql.Keys(keys)).Query()
	rows := &sql.Rows{}
	if err := s.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRows(rows, columns)
}

func (r *Runner) exec(ctx context.Context, s dialect.ExecQuerier, query string, args []any) (int64, error) {
	var res sql.Result
	if err := s.Exec(ctx, query, args, &res); err != nil {
		return 0, wrapConstraint(err)
	}
	return res.RowsAffected()
}

// ScanRows scans all rows into column maps. Driver column names are matched
// case-insensitively to the expected names.
func ScanRows(rows sql.ColumnScanner, expected []string) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	fold := cases.Fold()
	names := make(map[string]string, len(expected))
	for _, name := range expected {
		names[fold.String(name)] = name
	}
	for i, c := range columns {
		if name, ok := names[fold.String(c)]; ok {
			columns[i] = name
		}
	}
	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, c := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = bytes.Clone(b)
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// keyPredicate matches a single row by its key columns.
func keyPredicate(id schema.Identifier) *sql.Predicate {
	values := id.Values()
	cols := slices.Sorted(maps.Keys(values))
	preds := make([]*sql.Predicate, len(cols))
	for i, c := range cols {
		preds[i] = sql.EQ(c, values[c])
	}
	return sql.And(preds...)
}

func chunkSize(columns int) int {
	return max(1, maxParams/max(columns, 1))
}
