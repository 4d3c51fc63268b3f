package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/graft/dialect"
)

func TestBuilderQuote(t *testing.T) {
	tests := []struct {
		dialect string
		ident   string
		want    string
	}{
		{dialect.MySQL, "users", "`users`"},
		{dialect.SQLite, "a`b", "`a``b`"},
		{dialect.Postgres, "users", `"users"`},
		{dialect.Postgres, "public.users", `"public"."users"`},
		{dialect.Postgres, `we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect+"/"+tt.ident, func(t *testing.T) {
			b := &Builder{dialect: tt.dialect}
			assert.Equal(t, tt.want, b.Quote(tt.ident))
		})
	}
}

func TestInsertBuilder(t *testing.T) {
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "mysql",
			input:     Dialect(dialect.MySQL).Insert("users").Columns("name", "age").Values("a8m", 10),
			wantQuery: "INSERT INTO `users` (`name`, `age`) VALUES (?, ?)",
			wantArgs:  []any{"a8m", 10},
		},
		{
			name:      "postgres_returning",
			input:     Dialect(dialect.Postgres).Insert("users").Columns("name", "age").Values("a8m", 10).Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			wantArgs:  []any{"a8m", 10},
		},
		{
			name:      "bulk",
			input:     Dialect(dialect.SQLite).Insert("group_users").Columns("group_id", "user_id").Values(1, 2).Values(1, 3),
			wantQuery: "INSERT INTO `group_users` (`group_id`, `user_id`) VALUES (?, ?), (?, ?)",
			wantArgs:  []any{1, 2, 1, 3},
		},
		{
			name:      "default_values",
			input:     Dialect(dialect.SQLite).Insert("users").Returning("id"),
			wantQuery: "INSERT INTO `users` DEFAULT VALUES RETURNING `id`",
		},
		{
			name:      "mysql_default_values_no_returning",
			input:     Dialect(dialect.MySQL).Insert("users").Returning("id"),
			wantQuery: "INSERT INTO `users` () VALUES ()",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestUpdateBuilder(t *testing.T) {
	u := Dialect(dialect.Postgres).Update("users").
		Set("name", "foo").
		Set("version", 2).
		Where(And(EQ("id", 1), EQ("tenant", "t1")))
	query, args := u.Query()
	assert.Equal(t, `UPDATE "users" SET "name" = $1, "version" = $2 WHERE ("id" = $3) AND ("tenant" = $4)`, query)
	assert.Equal(t, []any{"foo", 2, 1, "t1"}, args)
	assert.False(t, u.Empty())
	assert.True(t, Update("users").Empty())
}

func TestDeleteBuilder(t *testing.T) {
	query, args := Dialect(dialect.MySQL).Delete("users").Where(EQ("id", 1)).Query()
	assert.Equal(t, "DELETE FROM `users` WHERE `id` = ?", query)
	assert.Equal(t, []any{1}, args)

	query, args = Delete("users").Query()
	assert.Equal(t, "DELETE FROM `users`", query)
	assert.Empty(t, args)
}

func TestSelector(t *testing.T) {
	query, args := Dialect(dialect.Postgres).Select("id", "name").From("users").Where(In("id", 1, 2, 3)).Query()
	assert.Equal(t, `SELECT "id", "name" FROM "users" WHERE "id" IN ($1, $2, $3)`, query)
	assert.Equal(t, []any{1, 2, 3}, args)

	query, _ = Select().From("users").Query()
	assert.Equal(t, "SELECT * FROM `users`", query)
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		pred      *Predicate
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "eq_null",
			pred:      EQ("parent_id", nil),
			wantQuery: "`parent_id` IS NULL",
		},
		{
			name:      "in_empty",
			pred:      In("id"),
			wantQuery: "FALSE",
		},
		{
			name:      "or",
			pred:      Or(EQ("a", 1), EQ("b", 2)),
			wantQuery: "(`a` = ?) OR (`b` = ?)",
			wantArgs:  []any{1, 2},
		},
		{
			name:      "keys_single_column",
			pred:      Keys([]map[string]any{{"id": 1}, {"id": 2}}),
			wantQuery: "`id` IN (?, ?)",
			wantArgs:  []any{1, 2},
		},
		{
			name:      "keys_composite",
			pred:      Keys([]map[string]any{{"b": 2, "a": 1}, {"a": 3, "b": 4}}),
			wantQuery: "((`a` = ?) AND (`b` = ?)) OR ((`a` = ?) AND (`b` = ?))",
			wantArgs:  []any{1, 2, 3, 4},
		},
		{
			name:      "keys_with_null",
			pred:      Keys([]map[string]any{{"id": 1}, {"id": nil}}),
			wantQuery: "(`id` = ?) OR (`id` IS NULL)",
			wantArgs:  []any{1},
		},
		{
			name:      "keys_empty",
			pred:      Keys(nil),
			wantQuery: "FALSE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Builder{}
			tt.pred.build(b)
			query, args := b.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}
