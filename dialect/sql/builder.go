package sql

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/syssam/graft/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl.
type Builder struct {
	sb      *strings.Builder
	args    []any
	dialect string
}

// Quote quotes the given identifier with the characters based
// on the configured dialect. It defaults to "`".
func (b *Builder) Quote(ident string) string {
	switch {
	case b.postgres():
		if strings.Contains(ident, ".") {
			parts := strings.Split(ident, ".")
			for i := range parts {
				parts[i] = pq.QuoteIdentifier(parts[i])
			}
			return strings.Join(parts, ".")
		}
		return pq.QuoteIdentifier(ident)
	default:
		return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
	}
}

// Ident appends the given quoted identifier to the builder.
func (b *Builder) Ident(s string) *Builder {
	b.WriteString(b.Quote(s))
	return b
}

// IdentComma appends the quoted identifiers separated by commas.
func (b *Builder) IdentComma(s ...string) *Builder {
	for i := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(s[i])
	}
	return b
}

// WriteString appends the given string to the builder.
func (b *Builder) WriteString(s string) *Builder {
	if b.sb == nil {
		b.sb = &strings.Builder{}
	}
	b.sb.WriteString(s)
	return b
}

// Arg appends an input argument to the builder and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.postgres() {
		b.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.WriteString("?")
	}
	return b
}

// Args appends a list of arguments separated by commas.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Nested runs fn with a nested builder sharing the argument list, and wraps
// its output with parentheses.
func (b *Builder) Nested(fn func(*Builder)) *Builder {
	b.WriteString("(")
	fn(b)
	b.WriteString(")")
	return b
}

// String returns the accumulated string.
func (b *Builder) String() string {
	if b.sb == nil {
		return ""
	}
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// SetDialect sets the builder dialect. It's used for garnering dialect specific queries.
func (b *Builder) SetDialect(dialect string) {
	b.dialect = dialect
}

// Dialect returns the dialect of the builder.
func (b Builder) Dialect() string {
	return b.dialect
}

func (b Builder) postgres() bool {
	return b.dialect == dialect.Postgres
}

// Predicate is a where predicate.
type Predicate struct {
	fns []func(*Builder)
}

// P creates a new predicate.
//
//	P().EQ("name", "a8m").And().EQ("age", 30)
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// Append appends a new function to the predicate callbacks.
func (p *Predicate) Append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

// build writes the predicate to the builder.
func (p *Predicate) build(b *Builder) {
	for _, f := range p.fns {
		f(b)
	}
}

// EQ returns a "=" predicate. A nil value is written as IS NULL.
func EQ(col string, value any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col)
		if value == nil {
			b.WriteString(" IS NULL")
			return
		}
		b.WriteString(" = ").Arg(value)
	})
}

// In returns the `IN` predicate.
func In(col string, args ...any) *Predicate {
	return P(func(b *Builder) {
		if len(args) == 0 {
			b.WriteString("FALSE")
			return
		}
		b.Ident(col).WriteString(" IN ").Nested(func(b *Builder) {
			b.Args(args...)
		})
	})
}

// And combines all given predicates with AND between them.
func And(preds ...*Predicate) *Predicate {
	return join("AND", preds)
}

// Or combines all given predicates with OR between them.
func Or(preds ...*Predicate) *Predicate {
	return join("OR", preds)
}

func join(op string, preds []*Predicate) *Predicate {
	return P(func(b *Builder) {
		if len(preds) == 1 {
			preds[0].build(b)
			return
		}
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" " + op + " ")
			}
			b.Nested(p.build)
		}
	})
}

// Keys returns a predicate matching rows whose columns equal one of the given
// key tuples. Single-column keys without NULLs are written as an IN clause,
// others as a disjunction of conjunctions.
//
//	Keys([]map[string]any{{"id": 1}, {"id": 2}})               // `id` IN (?, ?)
//	Keys([]map[string]any{{"a": 1, "b": 2}, {"a": 3, "b": 4}}) // (`a` = ? AND `b` = ?) OR (...)
func Keys(keys []map[string]any) *Predicate {
	if len(keys) == 0 {
		return P(func(b *Builder) { b.WriteString("FALSE") })
	}
	cols := slices.Sorted(maps.Keys(keys[0]))
	if len(cols) == 1 {
		args := make([]any, 0, len(keys))
		for _, k := range keys {
			v := k[cols[0]]
			if v == nil {
				args = nil
				break
			}
			args = append(args, v)
		}
		if args != nil {
			return In(cols[0], args...)
		}
	}
	preds := make([]*Predicate, 0, len(keys))
	for _, k := range keys {
		conj := make([]*Predicate, 0, len(cols))
		for _, c := range slices.Sorted(maps.Keys(k)) {
			conj = append(conj, EQ(c, k[c]))
		}
		preds = append(preds, And(conj...))
	}
	return Or(preds...)
}

// InsertBuilder is a builder for `INSERT INTO` statement.
type InsertBuilder struct {
	Builder
	table     string
	columns   []string
	values    [][]any
	returning []string
}

// Insert creates a builder for the `INSERT INTO` statement.
//
//	Insert("users").
//		Columns("name", "age").
//		Values("a8m", 10).
//		Values("foo", 20)
func Insert(table string) *InsertBuilder { return &InsertBuilder{table: table} }

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values append a value tuple for the insert statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Returning adds the `RETURNING` clause to the insert statement.
// Supported by SQLite and PostgreSQL.
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns query representation of an `INSERT INTO` statement.
func (i *InsertBuilder) Query() (string, []any) {
	i.WriteString("INSERT INTO ").Ident(i.table)
	switch {
	case len(i.columns) == 0 && i.dialect == dialect.MySQL:
		i.WriteString(" () VALUES ()")
	case len(i.columns) == 0:
		i.WriteString(" DEFAULT VALUES")
	default:
		i.WriteString(" ").Nested(func(b *Builder) { b.IdentComma(i.columns...) })
		i.WriteString(" VALUES ")
		for j, v := range i.values {
			if j > 0 {
				i.WriteString(", ")
			}
			i.Nested(func(b *Builder) { b.Args(v...) })
		}
	}
	if len(i.returning) > 0 && i.dialect != dialect.MySQL {
		i.WriteString(" RETURNING ").IdentComma(i.returning...)
	}
	return i.String(), i.args
}

// UpdateBuilder is a builder for `UPDATE` statement.
type UpdateBuilder struct {
	Builder
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update creates a builder for the `UPDATE` statement.
//
//	Update("users").Set("name", "foo").Where(EQ("id", 1))
func Update(table string) *UpdateBuilder { return &UpdateBuilder{table: table} }

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Where adds a where predicate for update statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	u.where = p
	return u
}

// Empty reports whether this builder does not contain update changes.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Query returns query representation of an `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	u.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			u.WriteString(", ")
		}
		u.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if u.where != nil {
		u.WriteString(" WHERE ")
		u.where.build(&u.Builder)
	}
	return u.String(), u.args
}

// DeleteBuilder is a builder for `DELETE` statement.
type DeleteBuilder struct {
	Builder
	table string
	where *Predicate
}

// Delete creates a builder for the `DELETE` statement.
//
//	Delete("users").Where(EQ("id", 1))
func Delete(table string) *DeleteBuilder { return &DeleteBuilder{table: table} }

// Where appends a where predicate to the `DELETE` statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	d.where = p
	return d
}

// Query returns query representation of a `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	d.WriteString("DELETE FROM ").Ident(d.table)
	if d.where != nil {
		d.WriteString(" WHERE ")
		d.where.build(&d.Builder)
	}
	return d.String(), d.args
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	Builder
	columns []string
	table   string
	where   *Predicate
}

// Select returns a new selector for the `SELECT` statement.
//
//	Select("id", "name").From("users").Where(EQ("id", 1))
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// From sets the source table of the `SELECT` statement.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// Where sets the predicate of the `SELECT` statement.
func (s *Selector) Where(p *Predicate) *Selector {
	s.where = p
	return s
}

// Query returns query representation of a `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	s.WriteString("SELECT ")
	if len(s.columns) == 0 {
		s.WriteString("*")
	} else {
		s.IdentComma(s.columns...)
	}
	s.WriteString(" FROM ").Ident(s.table)
	if s.where != nil {
		s.WriteString(" WHERE ")
		s.where.build(&s.Builder)
	}
	return s.String(), s.args
}

// DialectBuilder prefixes all root builders with the `Dialect` constructor.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Insert creates an InsertBuilder for the configured dialect.
//
//	Dialect(dialect.Postgres).
//		Insert("users").Columns("age").Values(1)
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	b := Insert(table)
	b.SetDialect(d.dialect)
	return b
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	b := Update(table)
	b.SetDialect(d.dialect)
	return b
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	b := Delete(table)
	b.SetDialect(d.dialect)
	return b
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	b := Select(columns...)
	b.SetDialect(d.dialect)
	return b
}
