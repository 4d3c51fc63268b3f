package sqlgraph

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ConstraintError wraps a driver error caused by a constraint violation
// while executing a write.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error implements the error interface.
func (e ConstraintError) Error() string { return "graft: constraint failed: " + e.msg }

// Unwrap implements the errors.Wrapper interface.
func (e *ConstraintError) Unwrap() error { return e.wrap }

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	var e *ConstraintError
	return errors.As(err, &e) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		IsNotNullConstraintError(err)
}

// wrapConstraint wraps err with a ConstraintError if it was raised by a
// constraint violation, and returns it unchanged otherwise.
func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var e *ConstraintError
	if errors.As(err, &e) {
		return err
	}
	if IsUniqueConstraintError(err) || IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) || IsNotNullConstraintError(err) {
		return &ConstraintError{msg: err.Error(), wrap: err}
	}
	return err
}

// sqliteCoder is implemented by modernc.org/sqlite and mattn/go-sqlite3
// errors. The code is the extended result code.
type sqliteCoder interface {
	Code() int
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlBadNull                = 1048
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// SQLite extended result codes for constraint violations.
const (
	sqliteConstraintCheck      = 275
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// violation describes how each driver reports one class of constraint error.
type violation struct {
	sqlState string
	mysql    []uint16
	sqlite   []int
	messages []string
}

var (
	uniqueViolation = violation{
		sqlState: pgUniqueViolation,
		mysql:    []uint16{mysqlDuplicateEntry},
		sqlite:   []int{sqliteConstraintUnique, sqliteConstraintPrimaryKey},
		messages: []string{"Error 1062", "violates unique constraint", "UNIQUE constraint failed"},
	}
	foreignKeyViolation = violation{
		sqlState: pgForeignKeyViolation,
		mysql:    []uint16{mysqlForeignKeyParent, mysqlForeignKeyChild},
		sqlite:   []int{sqliteConstraintForeignKey},
		messages: []string{"Error 1451", "Error 1452", "violates foreign key constraint", "FOREIGN KEY constraint failed"},
	}
	checkViolation = violation{
		sqlState: pgCheckViolation,
		mysql:    []uint16{mysqlCheckConstraintViolate},
		sqlite:   []int{sqliteConstraintCheck},
		messages: []string{"Error 3819", "violates check constraint", "CHECK constraint failed"},
	}
	notNullViolation = violation{
		sqlState: pgNotNullViolation,
		mysql:    []uint16{mysqlBadNull},
		sqlite:   []int{sqliteConstraintNotNull},
		messages: []string{"Error 1048", "violates not-null constraint", "NOT NULL constraint failed"},
	}
)

// match reports whether err is an instance of the violation.
func (v violation) match(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[*pq.Error](err); ok {
		return e.SQLState() == v.sqlState
	}
	if e, ok := asError[*mysql.MySQLError](err); ok {
		for _, n := range v.mysql {
			if e.Number == n {
				return true
			}
		}
		return false
	}
	// pgx and other drivers expose the SQLSTATE through a method.
	if e, ok := asError[interface{ SQLState() string }](err); ok && e.SQLState() == v.sqlState {
		return true
	}
	if e, ok := asError[sqliteCoder](err); ok {
		for _, c := range v.sqlite {
			if e.Code() == c {
				return true
			}
		}
	}
	// Fallback to string matching for drivers that don't implement interfaces.
	return containsAny(err.Error(), v.messages...)
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness constraint violation.
// e.g. duplicate value in unique index.
func IsUniqueConstraintError(err error) bool { return uniqueViolation.match(err) }

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
// e.g. parent row does not exist.
func IsForeignKeyConstraintError(err error) bool { return foreignKeyViolation.match(err) }

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool { return checkViolation.match(err) }

// IsNotNullConstraintError reports if the error resulted from writing NULL
// into a NOT NULL column.
func IsNotNullConstraintError(err error) bool { return notNullViolation.match(err) }

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
