package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft/dialect"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		query string
		want  StatementKind
	}{
		{"SELECT id FROM users", KindSelect},
		{"  insert INTO users DEFAULT VALUES", KindInsert},
		{"UPDATE users SET name = ?", KindUpdate},
		{"DELETE FROM users", KindDelete},
		{"PRAGMA foreign_keys = ON", KindOther},
		{"", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.query))
		})
	}
	assert.Equal(t, "StatementKind(9)", StatementKind(9).String())
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []SlowStatement
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(0),
		WithSlowQueryHook(func(_ context.Context, s SlowStatement) {
			slow = append(slow, s)
		}),
	)

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, drv.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES", []any{}, nil))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.Error(t, tx.Query(context.Background(), "SELECT 1", []any{1}, &Rows{}))
	require.NoError(t, tx.Rollback())

	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "DELETE FROM users", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	s := drv.Stats()
	assert.Equal(t, int64(3), s.Total())
	assert.Equal(t, int64(1), s.Count(KindInsert))
	assert.Equal(t, int64(1), s.Count(KindSelect))
	assert.Equal(t, int64(1), s.Count(KindDelete))
	assert.Zero(t, s.Count(KindUpdate))
	assert.Equal(t, int64(1), s.Errors)
	assert.Equal(t, int64(3), s.Slow)
	assert.Equal(t, int64(1), s.Commits)
	assert.Equal(t, int64(1), s.Rollbacks)
	assert.Contains(t, s.String(), "select=1 insert=1 delete=1 duration=")

	require.Len(t, slow, 3)
	assert.Equal(t, KindSelect, slow[1].Kind)
	assert.Equal(t, []any{1}, slow[1].Args)

	drv.Reset()
	assert.Zero(t, drv.Stats().Total())
	assert.Zero(t, drv.Stats().Commits)

	drv.SetSlowThreshold(time.Hour)
	assert.Equal(t, time.Hour, drv.SlowThreshold())
}

func TestStatsDriver_SlowQueryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db), WithSlowThreshold(0), WithSlowQueryLog(logger))

	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, drv.Exec(context.Background(), "UPDATE users SET name = ?", []any{"a8m"}, nil))
	assert.Contains(t, buf.String(), "graft: slow statement")
	assert.Contains(t, buf.String(), "kind=update")
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.SQLite, db), logger)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "DELETE FROM users", []any{}, nil))
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, `msg="graft: begin" tx=1`)
	assert.Contains(t, out, `msg="graft: exec" tx=1 sql="DELETE FROM users"`)
	assert.Contains(t, out, `msg="graft: commit" tx=1`)
}
