package persist

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/syssam/graft"
	"github.com/syssam/graft/dialect"
	"github.com/syssam/graft/schema"
)

// executor runs the operations of a sorted plan against one session.
type executor struct {
	plan    *plan
	runner  Runner
	session dialect.ExecQuerier
	log     *slog.Logger
	result  *Result
	tables  []string
	touched map[string]bool
}

func newExecutor(p *plan, runner Runner, session dialect.ExecQuerier, log *slog.Logger, res *Result) *executor {
	return &executor{
		plan:    p,
		runner:  runner,
		session: session,
		log:     log,
		result:  res,
		touched: make(map[string]bool),
	}
}

// execute runs the operations in order and stops at the first error. The
// subject of a failed operation is marked failed.
func (e *executor) execute(ctx context.Context, ops []operation) error {
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.run(ctx, op); err != nil {
			if op.subject != nil {
				op.subject.State = StateFailed
			}
			return err
		}
	}
	return nil
}

func (e *executor) run(ctx context.Context, op operation) error {
	if op.kind == opJunction {
		return e.junctions(ctx)
	}
	s := op.subject
	e.log.DebugContext(ctx, "graft: execute", "entity", s.Metadata.Name, "op", op.kind.String(), "table", s.Metadata.Table)
	if op.internal() {
		_, err := e.update(ctx, s, op.changes)
		return err
	}
	s.State = StateExecuting
	gop := s.Op()
	if err := e.fire(ctx, s, gop, true); err != nil {
		return err
	}
	// A listener may have ended the call.
	if err := ctx.Err(); err != nil {
		return err
	}
	var err error
	switch op.kind {
	case opInsert:
		err = e.insert(ctx, s)
	case opUpdate:
		if s.noop {
			// Listeners reverted every change.
			s.State = StateDone
			return nil
		}
		if _, err = e.update(ctx, s, s.ChangeMaps); err == nil {
			e.result.Updated++
		}
	case opSoftRemove, opRecover:
		if _, err = e.update(ctx, s, s.ChangeMaps); err == nil {
			err = e.backfill(s, s.ChangeMaps)
		}
		if err == nil {
			if op.kind == opRecover {
				e.result.Recovered++
			} else {
				e.result.SoftRemoved++
			}
		}
	case opRemove:
		err = e.remove(ctx, s)
	}
	if err != nil {
		return err
	}
	if err := e.fire(ctx, s, gop, false); err != nil {
		return err
	}
	s.State = StateDone
	operationsTotal.WithLabelValues(s.Metadata.Name, op.kind.String()).Inc()
	return nil
}

// fire calls the listeners of the subject for the given stage. Changes of
// inserts and updates are recomputed after before-listeners, so the writes
// they make to the record are persisted.
func (e *executor) fire(ctx context.Context, s *Subject, op graft.Op, before bool) error {
	listeners := s.Metadata.Listeners
	if s.derived || !schema.HasListener(listeners, op, before) {
		return nil
	}
	ev := &schema.Event{Op: op, Entity: s.Entity, Metadata: s.Metadata, Session: e.session}
	for _, l := range listeners {
		if err := schema.FireListener(ctx, l, op, before, ev); err != nil {
			return err
		}
	}
	if !before {
		return nil
	}
	switch op {
	case graft.OpInsert:
		return e.plan.computeInsert(s)
	case graft.OpUpdate:
		return e.plan.computeUpdate(s)
	}
	return nil
}

func (e *executor) insert(ctx context.Context, s *Subject) error {
	meta := s.Metadata
	values, err := e.values(s, s.ChangeMaps)
	if err != nil {
		return err
	}
	var returning []string
	for _, pk := range meta.PrimaryKeys() {
		if _, ok := values[pk.Name]; !ok && pk.Generated == schema.GenerateIncrement {
			returning = append(returning, pk.Name)
		}
	}
	res, err := e.runner.Insert(ctx, e.session, meta.Table, values, returning)
	if err != nil {
		return err
	}
	e.touch(meta.Table)
	id := make(schema.Identifier)
	for _, pk := range meta.PrimaryKeys() {
		v, ok := res.Values[pk.Name]
		if !ok {
			v = values[pk.Name]
		}
		if v = pk.Normalize(v); v == nil {
			return fmt.Errorf("graft: insert %s: no value for primary key %q", meta.Name, pk.Name)
		}
		id[pk.Name] = v
	}
	e.plan.index(s, id)
	for _, pk := range meta.PrimaryKeys() {
		if err := e.setFromStorage(s, pk, id[pk.Name]); err != nil {
			return err
		}
	}
	for name, v := range s.generated {
		if col := meta.Column(name); col != nil && !col.Primary {
			if err := e.setFromStorage(s, col, v); err != nil {
				return err
			}
		}
	}
	e.result.Inserted++
	e.result.AffectedRows++
	return nil
}

// update writes the given changes to the row of the subject. A row that
// is gone is not an error: it only shows in the affected row count.
func (e *executor) update(ctx context.Context, s *Subject, changes []ChangeMap) (int64, error) {
	values, err := e.values(s, changes)
	if err != nil {
		return 0, err
	}
	if s.Identifier == nil {
		return 0, &graft.MissingIdentifierError{Entity: s.Metadata.Name, Op: graft.OpUpdate}
	}
	n, err := e.runner.Update(ctx, e.session, s.Metadata.Table, s.Identifier, values)
	if err != nil {
		return 0, err
	}
	e.touch(s.Metadata.Table)
	if n == 0 {
		e.log.DebugContext(ctx, "graft: update matched no rows", "entity", s.Metadata.Name, "id", s.Identifier.String())
	}
	e.result.AffectedRows += n
	for _, cm := range changes {
		if k := cm.Column.Kind; k == schema.KindVersion || k == schema.KindUpdateDate {
			if err := e.setFromStorage(s, cm.Column, cm.Value); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (e *executor) remove(ctx context.Context, s *Subject) error {
	n, err := e.runner.Delete(ctx, e.session, s.Metadata.Table, s.Identifier)
	if err != nil {
		return err
	}
	e.touch(s.Metadata.Table)
	e.result.Removed++
	e.result.AffectedRows += n
	return nil
}

// values returns the storage values of the changes. Pending values take
// the key of their subject, inserted earlier in the plan.
func (e *executor) values(s *Subject, changes []ChangeMap) (map[string]any, error) {
	values := make(map[string]any, len(changes))
	for _, cm := range changes {
		v := cm.Value
		if cm.Pending != nil {
			ref, ok := cm.Pending.refValues([]string{cm.Column.Referenced})
			if !ok {
				return nil, fmt.Errorf("graft: %s.%s: key of %s is not known", s.Metadata.Name, cm.Column.Name, cm.Pending)
			}
			v = ref[cm.Column.Referenced]
		}
		sv, err := cm.Column.StorageValue(v)
		if err != nil {
			return nil, err
		}
		values[cm.Column.Name] = sv
	}
	return values, nil
}

// backfill writes the values of the changes back to the records.
func (e *executor) backfill(s *Subject, changes []ChangeMap) error {
	for _, cm := range changes {
		if cm.Pending == nil {
			if err := e.setFromStorage(s, cm.Column, cm.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *executor) setFromStorage(s *Subject, col *schema.Column, v any) error {
	fv, err := col.FromStorage(v)
	if err != nil {
		return err
	}
	s.set(col.Name, fv)
	return nil
}

func (e *executor) touch(table string) {
	if !e.touched[table] {
		e.touched[table] = true
		e.tables = append(e.tables, table)
	}
}
