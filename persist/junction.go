package persist

import (
	"context"
	"fmt"

	"github.com/syssam/graft/schema"
)

// junctionBatch holds the rows of one junction table.
type junctionBatch struct {
	table string
	rows  []map[string]any
}

// junctions applies the junction rows of all subjects: deletes first, then
// inserts. Rows computed from both sides of a relation are written once.
func (e *executor) junctions(ctx context.Context) error {
	var removes, inserts []*junctionBatch
	removed, inserted := make(map[string]bool), make(map[string]bool)
	add := func(batches []*junctionBatch, seen map[string]bool, table string, row schema.Identifier) []*junctionBatch {
		k := table + "\x00" + row.Key()
		if seen[k] {
			return batches
		}
		seen[k] = true
		for _, b := range batches {
			if b.table == table {
				b.rows = append(b.rows, row.Values())
				return batches
			}
		}
		return append(batches, &junctionBatch{table: table, rows: []map[string]any{row.Values()}})
	}
	for _, s := range e.plan.subjects {
		for _, jr := range s.junctionRemoves {
			row, err := junctionKey(s, jr)
			if err != nil {
				return err
			}
			removes = add(removes, removed, jr.rel.Junction.Table, row)
		}
	}
	for _, s := range e.plan.subjects {
		for _, jr := range s.junctionInserts {
			row, err := junctionKey(s, jr)
			if err != nil {
				return err
			}
			inserts = add(inserts, inserted, jr.rel.Junction.Table, row)
		}
	}
	for _, b := range removes {
		e.log.DebugContext(ctx, "graft: execute", "op", "junction-delete", "table", b.table, "rows", len(b.rows))
		n, err := e.runner.BulkDelete(ctx, e.session, b.table, b.rows)
		if err != nil {
			return err
		}
		e.touch(b.table)
		e.result.JunctionRemoved += n
	}
	for _, b := range inserts {
		e.log.DebugContext(ctx, "graft: execute", "op", "junction-insert", "table", b.table, "rows", len(b.rows))
		n, err := e.runner.BulkInsert(ctx, e.session, b.table, b.rows)
		if err != nil {
			return err
		}
		e.touch(b.table)
		e.result.JunctionInserted += n
	}
	return nil
}

// junctionKey returns the junction row of jr, keyed by junction column
// names.
func junctionKey(s *Subject, jr junctionRow) (schema.Identifier, error) {
	self, other := jr.rel.JunctionColumns()
	row := make(schema.Identifier, len(self)+len(other))
	ref, ok := s.refValues(referencedNames(self))
	if !ok {
		return nil, fmt.Errorf("graft: %s: key of %s is not known", jr.rel, s)
	}
	for _, jc := range self {
		row[jc.Name] = ref[jc.Referenced]
	}
	ref = jr.ref
	if jr.target != nil {
		if ref, ok = jr.target.refValues(referencedNames(other)); !ok {
			return nil, fmt.Errorf("graft: %s: key of %s is not known", jr.rel, jr.target)
		}
	}
	for _, jc := range other {
		v, ok := ref[jc.Referenced]
		if !ok {
			return nil, fmt.Errorf("graft: %s: missing value for junction column %q", jr.rel, jc.Name)
		}
		row[jc.Name] = v
	}
	return row, nil
}

func referencedNames(jcs []schema.JoinColumn) []string {
	names := make([]string, len(jcs))
	for i, jc := range jcs {
		names[i] = jc.Referenced
	}
	return names
}
