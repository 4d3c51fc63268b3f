// Package sql implements the dialect.Driver interface on top of database/sql
// and provides the small statement builder used by the reference query runner.
//
// # Drivers
//
// Any registered database/sql driver can be wrapped. The dialect is derived
// from the driver name:
//
//	drv, err := sql.Open("sqlite", "file:graft?mode=memory&_pragma=foreign_keys(1)")
//	drv, err := sql.Open("pgx", "postgres://localhost/graft")
//
// StatsDriver counts statements by kind and reports slow ones; DebugDriver
// logs every statement through log/slog. Both wrap any dialect.Driver.
//
// # Builders
//
// Statements adapt to the dialect's identifier quoting and placeholders:
//
//	sql.Dialect(dialect.Postgres).
//		Insert("users").
//		Columns("name").
//		Values("a8m").
//		Returning("id")
//	// INSERT INTO "users" ("name") VALUES ($1) RETURNING "id"
//
//	sql.Dialect(dialect.MySQL).
//		Select("id", "version").
//		From("users").
//		Where(sql.Keys([]map[string]any{{"id": 1}, {"id": 2}}))
//	// SELECT `id`, `version` FROM `users` WHERE `id` IN (?, ?)
package sql
