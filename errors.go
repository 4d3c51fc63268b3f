package graft

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors.
var (
	// ErrPlanning is matched by every error raised while planning a persist
	// call, that is, before any row was written.
	ErrPlanning = errors.New("graft: planning failed")

	// ErrUnknownEntity is returned when an entity name is not registered.
	ErrUnknownEntity = errors.New("graft: unknown entity")
)

// DependencyCycleError is returned when the foreign keys between planned
// writes form a cycle that cannot be broken because none of its columns is
// nullable.
type DependencyCycleError struct {
	// Path lists the entities of the cycle, e.g. ["A#1", "B#2", "A#1"].
	Path []string
	// Columns lists the foreign-key columns along the cycle.
	Columns []string
}

// Error returns the error string.
func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("graft: unresolvable dependency cycle %s through non-nullable columns %s",
		strings.Join(e.Path, " -> "), strings.Join(e.Columns, ", "))
}

// Is reports whether the target error matches ErrPlanning.
func (e *DependencyCycleError) Is(err error) bool { return err == ErrPlanning }

// MissingTargetError is returned when a record references a new related record
// through a relation that does not cascade the operation, so the referenced row
// would never be written.
type MissingTargetError struct {
	Entity   string // Owner entity name
	Relation string // Relation name on the owner
	Target   string // Target entity name
}

// Error returns the error string.
func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("graft: %s.%s references a new %s that is not cascaded; save it first or enable cascade",
		e.Entity, e.Relation, e.Target)
}

// Is reports whether the target error matches ErrPlanning.
func (e *MissingTargetError) Is(err error) bool { return err == ErrPlanning }

// AmbiguousIdentityError is returned when two distinct records resolve to the
// same primary key but disagree on what should be written.
type AmbiguousIdentityError struct {
	Entity string
	ID     any
	Column string // Conflicting column, if any
}

// Error returns the error string.
func (e *AmbiguousIdentityError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("graft: ambiguous identity for %s (id=%v): records disagree on %q", e.Entity, e.ID, e.Column)
	}
	return fmt.Sprintf("graft: ambiguous identity for %s (id=%v)", e.Entity, e.ID)
}

// Is reports whether the target error matches ErrPlanning.
func (e *AmbiguousIdentityError) Is(err error) bool { return err == ErrPlanning }

// MissingIdentifierError is returned when an operation that addresses an
// existing row is requested for a record without primary key.
type MissingIdentifierError struct {
	Entity string
	Op     Op
}

// Error returns the error string.
func (e *MissingIdentifierError) Error() string {
	return fmt.Sprintf("graft: %s of %s requires a primary key value", e.Op, e.Entity)
}

// Is reports whether the target error matches ErrPlanning.
func (e *MissingIdentifierError) Is(err error) bool { return err == ErrPlanning }

// MissingDeleteDateColumnError is returned when soft-remove or recover is
// requested for an entity without a delete-date column.
type MissingDeleteDateColumnError struct {
	Entity string
}

// Error returns the error string.
func (e *MissingDeleteDateColumnError) Error() string {
	return fmt.Sprintf("graft: %s has no delete date column", e.Entity)
}

// Is reports whether the target error matches ErrPlanning.
func (e *MissingDeleteDateColumnError) Is(err error) bool { return err == ErrPlanning }

// OrphanError is returned when a row removed from a loaded to-many relation
// must have its foreign key nullified, but the column is not nullable.
type OrphanError struct {
	Entity   string
	Relation string
	ID       any
}

// Error returns the error string.
func (e *OrphanError) Error() string {
	return fmt.Sprintf("graft: cannot orphan %s (id=%v) from %s: foreign key is not nullable", e.Entity, e.ID, e.Relation)
}

// Is reports whether the target error matches ErrPlanning.
func (e *OrphanError) Is(err error) bool { return err == ErrPlanning }

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Entity string // Entity type
	Op     Op     // Denied operation
	Err    error  // Policy decision
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	return fmt.Sprintf("graft: privacy denied %s on %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the policy decision.
func (e *PrivacyError) Unwrap() error { return e.Err }

// Is reports whether the target error matches ErrPlanning.
func (e *PrivacyError) Is(err error) bool { return err == ErrPlanning }

// IsPlanningError reports whether err was raised before any write was issued.
func IsPlanningError(err error) bool {
	return err != nil && errors.Is(err, ErrPlanning)
}

// IsDependencyCycle returns true if the error is a DependencyCycleError.
func IsDependencyCycle(err error) bool {
	var e *DependencyCycleError
	return errors.As(err, &e)
}

// IsMissingTarget returns true if the error is a MissingTargetError.
func IsMissingTarget(err error) bool {
	var e *MissingTargetError
	return errors.As(err, &e)
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	var e *PrivacyError
	return errors.As(err, &e)
}

// RollbackError is returned when rolling back a failed persist call fails too.
// Both the original error and the rollback error are reachable through
// errors.Is and errors.As.
type RollbackError struct {
	Err      error // Original error that triggered rollback
	Rollback error // Error returned by the rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("graft: %v: rollback failed: %v", e.Err, e.Rollback)
}

// Unwrap returns both underlying errors.
func (e *RollbackError) Unwrap() []error {
	return []error{e.Err, e.Rollback}
}

// AggregateError represents multiple errors collected during planning.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "graft: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("graft: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil. A single error is returned as is.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
