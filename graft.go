// Package graft is an object-relational persistence layer that turns graphs of
// entity records into ordered, transactional database writes.
//
// Entities are plain records (a mapping from column or relation name to value)
// described by metadata from the schema package. The persist package plans and
// executes a graph mutation (save, remove, soft-remove, recover) inside a single
// transaction:
//
//	reg := schema.NewRegistry()
//	reg.Register(userEntity, postEntity)
//	p := persist.New(drv, reg)
//
//	u := graft.NewRecord(map[string]any{"name": "a8m"})
//	post := graft.NewRecord(map[string]any{"title": "hello", "author": u})
//	res, err := p.Save(ctx, "Post", post)
package graft

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/syssam/graft/dialect"
)

// Record is an entity value: a mapping from column or relation name to value.
//
// The identity of a record is its pointer. A property that was never set is
// undefined and is skipped by the persister; a property set to nil is an
// explicit NULL. To-one relations hold a *Record (or nil) and to-many relations
// hold a []*Record.
type Record struct {
	values map[string]any
}

// NewRecord returns a record holding a copy of the given values.
func NewRecord(values map[string]any) *Record {
	r := &Record{values: make(map[string]any, len(values))}
	maps.Copy(r.values, values)
	return r
}

// Get returns the value of the named property and whether it is defined.
func (r *Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.values[name]
	return v, ok
}

// Set defines the named property.
func (r *Record) Set(name string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	r.values[name] = v
}

// Unset makes the named property undefined.
func (r *Record) Unset(name string) {
	delete(r.values, name)
}

// Has reports whether the named property is defined.
func (r *Record) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.values[name]
	return ok
}

// Keys returns the defined property names in sorted order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.values))
}

// Values returns a shallow copy of the record properties.
func (r *Record) Values() map[string]any {
	if r == nil {
		return nil
	}
	return maps.Clone(r.values)
}

// String implements the fmt.Stringer interface. Nested records are
// printed by reference to avoid walking cyclic graphs.
func (r *Record) String() string {
	if r == nil {
		return "Record(nil)"
	}
	var sb strings.Builder
	sb.WriteString("Record(")
	for i, k := range r.Keys() {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch v := r.values[k].(type) {
		case *Record:
			fmt.Fprintf(&sb, "%s=&Record{%p}", k, v)
		case []*Record:
			fmt.Fprintf(&sb, "%s=[%d records]", k, len(v))
		default:
			fmt.Fprintf(&sb, "%s=%v", k, v)
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// Op represents the operation of a persist call or of a single planned write.
// Ops are bit flags, so a set of operations can be expressed as their union.
type Op uint

// Operations.
const (
	OpInsert Op = 1 << iota
	OpUpdate
	OpRemove
	OpSoftRemove
	OpRecover

	// OpSave is the union of insert and update: the row is inserted if it
	// does not exist and updated otherwise.
	OpSave = OpInsert | OpUpdate
)

// Is reports whether o matches any of the given op flags.
func (o Op) Is(op Op) bool { return o&op != 0 }

var opNames = [...]string{
	"OpInsert",
	"OpUpdate",
	"OpRemove",
	"OpSoftRemove",
	"OpRecover",
}

// String returns the op name.
func (o Op) String() string {
	if o == OpSave {
		return "OpSave"
	}
	var names []string
	for i, name := range opNames {
		if o&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("Op(%d)", uint(o))
	}
	return strings.Join(names, "|")
}

// Mutation is the read-only view of a single planned write, passed to
// mutation policies before anything is written.
type Mutation interface {
	// Op returns the resolved operation of the write.
	Op() Op
	// Type returns the entity name.
	Type() string
	// Record returns the in-memory record. It may be nil for writes that
	// were derived from stored state only (e.g. orphaned rows).
	Record() *Record
	// Fields returns the column names the write will set.
	Fields() []string
	// Field returns the value the write will set for the given column.
	Field(name string) (any, bool)
}

// Policy decides whether a mutation is allowed. A nil return, or an error
// matching privacy.Skip or privacy.Allow, lets the mutation proceed.
type Policy interface {
	EvalMutation(context.Context, Mutation) error
}

// PolicyFunc is an adapter that allows the use of ordinary functions as policies.
type PolicyFunc func(context.Context, Mutation) error

// EvalMutation calls f(ctx, m).
func (f PolicyFunc) EvalMutation(ctx context.Context, m Mutation) error {
	return f(ctx, m)
}

// txCtxKey is the context key of an ambient transaction.
type txCtxKey struct{}

// NewTxContext returns a new context carrying the given transaction. Persist
// calls made with this context reuse the transaction and leave commit and
// rollback to its owner.
func NewTxContext(parent context.Context, tx dialect.Tx) context.Context {
	return context.WithValue(parent, txCtxKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, if any.
func TxFromContext(ctx context.Context) (dialect.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey{}).(dialect.Tx)
	return tx, ok && tx != nil
}
