package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syssam/graft"
	"github.com/syssam/graft/privacy"
	"github.com/syssam/graft/schema"
)

// plan holds the subjects of one persist call. Subjects live in an arena
// indexed by builder order; the indexes drive deterministic ordering.
type plan struct {
	op       graft.Op
	now      time.Time
	subjects []*Subject
	byRecord map[*graft.Record]*Subject
	byKey    map[*schema.Entity]map[string]*Subject
	refs     []reference
}

// reference is a related record reached through a relation that does not
// cascade the operation.
type reference struct {
	owner  *Subject
	rel    *schema.Relation
	record *graft.Record
}

func newPlan(op graft.Op, now time.Time) *plan {
	return &plan{
		op:       op,
		now:      now,
		byRecord: make(map[*graft.Record]*Subject),
		byKey:    make(map[*schema.Entity]map[string]*Subject),
	}
}

// build creates the subjects reachable from the given roots.
func (p *plan) build(meta *schema.Entity, roots []*graft.Record) error {
	for _, rec := range roots {
		if rec == nil {
			return fmt.Errorf("graft: nil %s record", meta.Name)
		}
		if _, err := p.visit(meta, rec, true, true, nil); err != nil {
			return err
		}
	}
	if p.op != graft.OpSave {
		return nil
	}
	if err := p.checkReferences(); err != nil {
		return err
	}
	p.link()
	return nil
}

// visit returns the subject of the record, creating it and traversing its
// cascaded relations on first visit. insert and update are the save intents
// of the relation the record was reached through.
func (p *plan) visit(meta *schema.Entity, rec *graft.Record, insert, update bool, via *schema.Relation) (*Subject, error) {
	if s, ok := p.byRecord[rec]; ok {
		if s.Metadata != meta {
			return nil, fmt.Errorf("graft: record %p is used as both %s and %s", rec, s.Metadata.Name, meta.Name)
		}
		s.canBeInserted = s.canBeInserted || insert
		s.canBeUpdated = s.canBeUpdated || update
		return s, nil
	}
	id, hasID := meta.IdentifierOf(rec)
	if hasID {
		if s := p.byKey[meta][id.Key()]; s != nil {
			if err := p.merge(s, rec); err != nil {
				return nil, err
			}
			s.canBeInserted = s.canBeInserted || insert
			s.canBeUpdated = s.canBeUpdated || update
			return s, p.traverse(s, rec)
		}
	}
	s := newSubject(meta, rec, len(p.subjects))
	switch p.op {
	case graft.OpSave:
		s.canBeInserted, s.canBeUpdated, s.via = insert, update, via
	case graft.OpRemove:
		s.MustBeRemoved = true
	case graft.OpSoftRemove, graft.OpRecover:
		if meta.DeleteDateColumn() == nil {
			return nil, &graft.MissingDeleteDateColumnError{Entity: meta.Name}
		}
		s.MustBeSoftRemoved = p.op == graft.OpSoftRemove
		s.MustBeRecovered = p.op == graft.OpRecover
	default:
		return nil, fmt.Errorf("graft: unsupported operation %s", p.op)
	}
	if p.op != graft.OpSave && !hasID {
		return nil, &graft.MissingIdentifierError{Entity: meta.Name, Op: p.op}
	}
	p.subjects = append(p.subjects, s)
	p.byRecord[rec] = s
	if hasID {
		p.index(s, id)
	}
	return s, p.traverse(s, rec)
}

// index registers the subject under its primary key.
func (p *plan) index(s *Subject, id schema.Identifier) {
	s.Identifier = id
	keys := p.byKey[s.Metadata]
	if keys == nil {
		keys = make(map[string]*Subject)
		p.byKey[s.Metadata] = keys
	}
	keys[id.Key()] = s
}

// merge adds rec as an alias of s. Both records must agree on every column
// they define.
func (p *plan) merge(s *Subject, rec *graft.Record) error {
	for _, col := range s.Metadata.Columns {
		if col.Virtual {
			continue
		}
		v, ok := rec.Get(col.Name)
		if !ok {
			continue
		}
		cur, ok := s.value(col.Name)
		if !ok {
			continue
		}
		a, err := col.ToStorage(v)
		if err != nil {
			return err
		}
		b, err := col.ToStorage(cur)
		if err != nil {
			return err
		}
		if !schema.EqualValues(a, b) {
			return &graft.AmbiguousIdentityError{Entity: s.Metadata.Name, ID: s.Identifier.String(), Column: col.Name}
		}
	}
	p.byRecord[rec] = s
	s.aliases = append(s.aliases, rec)
	return nil
}

// traverse visits the records related to rec through relations cascading
// the operation. Other related records are kept as references.
func (p *plan) traverse(s *Subject, rec *graft.Record) error {
	for _, rel := range s.Metadata.Relations {
		v, ok := rec.Get(rel.Name)
		if !ok {
			continue
		}
		targets, err := related(rel, v)
		if err != nil {
			return err
		}
		cascade := rel.Cascade.Has(p.op)
		for _, t := range targets {
			switch {
			case t == nil:
			case !cascade:
				p.refs = append(p.refs, reference{owner: s, rel: rel, record: t})
			case p.op == graft.OpSave:
				if _, err := p.visit(rel.TargetEntity(), t, rel.Cascade.Insert, rel.Cascade.Update, rel); err != nil {
					return err
				}
			default:
				// Records without key were never stored.
				if _, ok := rel.TargetEntity().IdentifierOf(t); !ok {
					continue
				}
				if _, err := p.visit(rel.TargetEntity(), t, false, false, rel); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkReferences fails on references to records that are neither written
// by this call nor stored.
func (p *plan) checkReferences() error {
	for _, ref := range p.refs {
		if _, ok := p.byRecord[ref.record]; ok {
			continue
		}
		target := ref.rel.TargetEntity()
		if _, ok := target.IdentifierOf(ref.record); ok {
			continue
		}
		return &graft.MissingTargetError{Entity: ref.owner.Metadata.Name, Relation: ref.rel.Name, Target: target.Name}
	}
	return nil
}

// link records, on subjects reached through a to-many or inverse to-one
// relation, the owner their foreign key must point to.
func (p *plan) link() {
	for _, s := range p.subjects {
		for _, rec := range s.Records() {
			for _, rel := range s.Metadata.Relations {
				inv := rel.InverseRelation()
				if !inverseSide(rel) || inv == nil {
					continue
				}
				v, ok := rec.Get(rel.Name)
				if !ok {
					continue
				}
				targets, _ := related(rel, v)
				for _, t := range targets {
					cs := p.lookup(rel.TargetEntity(), t)
					if cs == nil {
						continue
					}
					if cs.links == nil {
						cs.links = make(map[*schema.Relation]*link)
					}
					cs.links[inv] = &link{owner: s, record: rec}
				}
			}
		}
	}
}

// lookup returns the subject of a record, by pointer or by primary key.
func (p *plan) lookup(meta *schema.Entity, rec *graft.Record) *Subject {
	if s, ok := p.byRecord[rec]; ok {
		return s
	}
	if id, ok := meta.IdentifierOf(rec); ok {
		return p.byKey[meta][id.Key()]
	}
	return nil
}

// authorize evaluates the mutation policies of all subjects with a write.
func (p *plan) authorize(ctx context.Context) error {
	for _, s := range p.subjects {
		op := s.Op()
		if op == 0 || s.noop || s.Metadata.Policy == nil {
			continue
		}
		err := s.Metadata.Policy.EvalMutation(ctx, &mutation{s: s, op: op})
		if err == nil || errors.Is(err, privacy.Allow) || errors.Is(err, privacy.Skip) {
			continue
		}
		return &graft.PrivacyError{Entity: s.Metadata.Name, Op: op, Err: err}
	}
	return nil
}

// inverseSide reports whether the foreign key of the relation is held by
// the target table.
func inverseSide(rel *schema.Relation) bool {
	return rel.Kind == schema.O2M || rel.Kind == schema.O2O && !rel.Owner
}

// related returns the records held by a relation property.
func related(rel *schema.Relation, v any) ([]*graft.Record, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case *graft.Record:
		if rel.ToMany() {
			return nil, fmt.Errorf("graft: %s expects []*graft.Record, got *graft.Record", rel)
		}
		return []*graft.Record{v}, nil
	case []*graft.Record:
		if !rel.ToMany() {
			return nil, fmt.Errorf("graft: %s expects *graft.Record, got []*graft.Record", rel)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("graft: %s holds unexpected value of type %T", rel, v)
	}
}
