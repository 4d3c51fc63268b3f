package persist

import (
	"github.com/google/uuid"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

// junctionRow is a junction table row to insert or delete. The owner side
// is the subject holding the row; the other side is either a subject
// inserted by the same call or a known key.
type junctionRow struct {
	rel    *schema.Relation
	target *Subject
	ref    schema.Identifier
}

// resolve fixes the operation of every subject once the stored rows are
// known. Saves become inserts or updates; removes of missing rows become
// no-ops.
func (p *plan) resolve() error {
	for _, s := range p.subjects {
		if s.resolved || s.derived {
			continue
		}
		s.resolved = true
		exists := s.DatabaseEntity != nil
		if p.op != graft.OpSave {
			if !exists {
				s.MustBeRemoved, s.MustBeSoftRemoved, s.MustBeRecovered = false, false, false
				s.noop = true
			}
			continue
		}
		switch {
		case exists && s.canBeUpdated:
			s.MustBeUpdated = true
		case exists:
			s.noop = true
		case s.canBeInserted:
			s.MustBeInserted = true
		default:
			return &graft.MissingTargetError{Entity: s.via.Entity().Name, Relation: s.via.Name, Target: s.Metadata.Name}
		}
	}
	return nil
}

// computeChanges computes the column writes of all resolved subjects and
// the relation maintenance of saved ones. It may add derived subjects for
// rows that are only touched through a relation.
func (p *plan) computeChanges() error {
	for _, s := range p.subjects[:len(p.subjects):len(p.subjects)] {
		if s.derived {
			continue
		}
		var err error
		switch {
		case s.MustBeInserted:
			err = p.computeInsert(s)
		case s.MustBeUpdated:
			err = p.computeUpdate(s)
		case s.MustBeSoftRemoved:
			s.ChangeMaps = []ChangeMap{{Column: s.Metadata.DeleteDateColumn(), Value: p.now}}
		case s.MustBeRecovered:
			s.ChangeMaps = []ChangeMap{{Column: s.Metadata.DeleteDateColumn(), Value: nil}}
		case s.MustBeRemoved:
			p.removeJunctions(s)
		}
		if err != nil {
			return err
		}
	}
	for _, s := range p.subjects[:len(p.subjects):len(p.subjects)] {
		if s.derived || !s.MustBeInserted && !s.MustBeUpdated {
			continue
		}
		if err := p.computeRelations(s); err != nil {
			return err
		}
	}
	return nil
}

// computeInsert collects every defined column of the subject plus defaults
// and generated values for undefined ones.
func (p *plan) computeInsert(s *Subject) error {
	s.ChangeMaps = s.ChangeMaps[:0]
	for _, col := range s.Metadata.Columns {
		if col.Virtual || s.deferred[col.Name] {
			continue
		}
		cm, ok, err := p.columnValue(s, col)
		if err != nil {
			return err
		}
		if !ok {
			if cm.Value, ok, err = p.defaultValue(s, col); err != nil {
				return err
			}
			cm.Column = col
		}
		if ok {
			s.ChangeMaps = append(s.ChangeMaps, cm)
		}
	}
	if s.Identifier != nil {
		return nil
	}
	id := make(schema.Identifier)
	for _, pk := range s.Metadata.PrimaryKeys() {
		cm, ok := s.change(pk.Name)
		if !ok || cm.Pending != nil || cm.Value == nil {
			return nil
		}
		id[pk.Name] = cm.Value
	}
	p.index(s, id)
	return nil
}

// computeUpdate collects the columns whose normalized in-memory value
// differs from the stored one. Version and update-date columns are added
// when anything changed; otherwise the subject becomes a no-op.
func (p *plan) computeUpdate(s *Subject) error {
	s.ChangeMaps = s.ChangeMaps[:0]
	for _, col := range s.Metadata.Columns {
		if col.Virtual || col.Primary || col.Immutable || col.Kind == schema.KindCreateDate ||
			col.Kind == schema.KindUpdateDate || col.Kind == schema.KindVersion {
			continue
		}
		cm, ok, err := p.columnValue(s, col)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if cm.Pending == nil {
			stored, _ := s.DatabaseEntity.Get(col.Name)
			if schema.EqualValues(cm.Value, col.Normalize(stored)) {
				continue
			}
		}
		s.ChangeMaps = append(s.ChangeMaps, cm)
	}
	if len(s.ChangeMaps) == 0 {
		s.noop = true
		return nil
	}
	s.noop = false
	if col := s.Metadata.VersionColumn(); col != nil {
		version := int64(0)
		stored, _ := s.DatabaseEntity.Get(col.Name)
		if v, ok := col.Normalize(stored).(int64); ok {
			version = v
		}
		s.ChangeMaps = append(s.ChangeMaps, ChangeMap{Column: col, Value: version + 1})
	}
	if col := s.Metadata.UpdateDateColumn(); col != nil {
		s.ChangeMaps = append(s.ChangeMaps, ChangeMap{Column: col, Value: col.Normalize(p.now)})
	}
	return nil
}

// columnValue returns the value the subject defines for the column.
// Foreign-key columns are derived from their relation when the relation
// property is defined, or from the owner the subject was reached through.
func (p *plan) columnValue(s *Subject, col *schema.Column) (ChangeMap, bool, error) {
	if rel := col.Relation; rel != nil && rel.Entity() == s.Metadata {
		if v, ok := s.value(rel.Name); ok {
			target, _ := v.(*graft.Record)
			return p.foreignKey(s, col, rel, target)
		}
		if l := s.links[rel]; l != nil {
			return p.foreignKey(s, col, rel, l.record)
		}
	}
	v, ok := s.value(col.Name)
	if !ok {
		return ChangeMap{}, false, nil
	}
	nv, err := col.ToStorage(v)
	if err != nil {
		return ChangeMap{}, false, err
	}
	return ChangeMap{Column: col, Value: nv}, true, nil
}

// foreignKey returns the write of a foreign-key column pointing to target.
func (p *plan) foreignKey(s *Subject, col *schema.Column, rel *schema.Relation, target *graft.Record) (ChangeMap, bool, error) {
	cm := ChangeMap{Column: col, Relation: rel}
	if target == nil {
		return cm, true, nil
	}
	ts := p.lookup(rel.TargetEntity(), target)
	if ts != nil && ts.MustBeInserted {
		cm.Pending = ts
		return cm, true, nil
	}
	var (
		ref schema.Identifier
		ok  bool
	)
	if ts != nil {
		ref, ok = ts.refValues([]string{col.Referenced})
	} else {
		ref, ok = refOf(rel.TargetEntity(), target, []string{col.Referenced})
	}
	if !ok {
		return cm, false, &graft.MissingTargetError{Entity: s.Metadata.Name, Relation: rel.Name, Target: rel.Target}
	}
	cm.Value = ref[col.Referenced]
	return cm, true, nil
}

// defaultValue returns the value written for an undefined column on insert.
// Generated values are kept on the subject so that recomputing the changes
// returns the same ones.
func (p *plan) defaultValue(s *Subject, col *schema.Column) (any, bool, error) {
	if v, ok := s.generated[col.Name]; ok {
		return v, true, nil
	}
	var v any
	switch {
	case col.Primary && col.Generated == schema.GenerateUUID:
		if col.Type == schema.TypeString {
			v = uuid.NewString()
		} else {
			v = uuid.New()
		}
	case col.Generated == schema.GenerateIncrement:
		return nil, false, nil
	case col.Kind == schema.KindCreateDate, col.Kind == schema.KindUpdateDate:
		v = col.Normalize(p.now)
	case col.Kind == schema.KindVersion:
		v = int64(1)
	default:
		dv, ok := col.DefaultValue()
		if !ok {
			return nil, false, nil
		}
		nv, err := col.ToStorage(dv)
		if err != nil {
			return nil, false, err
		}
		v = nv
	}
	if s.generated == nil {
		s.generated = make(map[string]any)
	}
	s.generated[col.Name] = v
	return v, true, nil
}

// computeRelations diffs the to-many relations defined on the in-memory
// records of a saved subject against the loaded relation ids.
func (p *plan) computeRelations(s *Subject) error {
	seen := make(map[*schema.Relation]bool)
	for _, rec := range s.Records() {
		for _, rel := range s.Metadata.Relations {
			v, ok := rec.Get(rel.Name)
			if !ok || seen[rel] {
				continue
			}
			seen[rel] = true
			targets, err := related(rel, v)
			if err != nil {
				return err
			}
			switch {
			case rel.Kind == schema.M2M:
				err = p.diffJunction(s, rel, targets)
			case inverseSide(rel) && rel.InverseRelation() != nil:
				err = p.diffInverse(s, rel, targets)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// diffJunction computes the junction rows to insert and delete so the
// stored relation matches the in-memory one.
func (p *plan) diffJunction(s *Subject, rel *schema.Relation, targets []*graft.Record) error {
	_, other := rel.JunctionColumns()
	refs := make([]string, len(other))
	for i, jc := range other {
		refs[i] = jc.Referenced
	}
	loaded := make(map[string]bool)
	for _, id := range s.relationIDs[rel] {
		loaded[id.Key()] = true
	}
	current := make(map[string]bool)
	for _, t := range targets {
		if t == nil {
			continue
		}
		ts := p.lookup(rel.TargetEntity(), t)
		if ts != nil && ts.MustBeInserted {
			s.junctionInserts = append(s.junctionInserts, junctionRow{rel: rel, target: ts})
			continue
		}
		var (
			ref schema.Identifier
			ok  bool
		)
		if ts != nil {
			ref, ok = ts.refValues(refs)
		} else {
			ref, ok = refOf(rel.TargetEntity(), t, refs)
		}
		if !ok {
			return &graft.MissingTargetError{Entity: s.Metadata.Name, Relation: rel.Name, Target: rel.Target}
		}
		k := ref.Key()
		if current[k] {
			continue
		}
		current[k] = true
		if !loaded[k] {
			s.junctionInserts = append(s.junctionInserts, junctionRow{rel: rel, ref: ref})
		}
	}
	for _, id := range s.relationIDs[rel] {
		if !current[id.Key()] {
			s.junctionRemoves = append(s.junctionRemoves, junctionRow{rel: rel, ref: id})
		}
	}
	return nil
}

// diffInverse links the in-memory members of a to-many (or inverse to-one)
// relation to the subject and applies the orphan action of the relation to
// loaded members that left it.
func (p *plan) diffInverse(s *Subject, rel *schema.Relation, targets []*graft.Record) error {
	target := rel.TargetEntity()
	inv := rel.InverseRelation()
	loaded := make(map[string]bool)
	for _, id := range s.relationIDs[rel] {
		loaded[id.Key()] = true
	}
	current := make(map[string]bool)
	for _, t := range targets {
		if t == nil {
			continue
		}
		cs := p.lookup(target, t)
		if cs != nil && cs.Identifier != nil {
			current[cs.Identifier.Key()] = true
		}
		if cs != nil && (cs.MustBeInserted || cs.MustBeUpdated) {
			continue
		}
		id, ok := target.IdentifierOf(t)
		if !ok {
			return &graft.MissingTargetError{Entity: s.Metadata.Name, Relation: rel.Name, Target: target.Name}
		}
		current[id.Key()] = true
		if !s.MustBeInserted && loaded[id.Key()] {
			continue
		}
		if cs == nil {
			cs = p.derive(target, t, id)
		}
		if err := p.relink(cs, inv, s); err != nil {
			return err
		}
	}
	for _, id := range s.relationIDs[rel] {
		k := id.Key()
		if current[k] || p.byKey[target][k] != nil {
			continue
		}
		if err := p.orphan(s, rel, id); err != nil {
			return err
		}
	}
	return nil
}

// relink turns cs into an update of the foreign key of rel, pointing it to
// owner.
func (p *plan) relink(cs *Subject, rel *schema.Relation, owner *Subject) error {
	var changes []ChangeMap
	for _, jc := range rel.JoinColumns {
		col := cs.Metadata.Column(jc.Name)
		cm := ChangeMap{Column: col, Relation: rel}
		if owner.MustBeInserted {
			cm.Pending = owner
		} else {
			ref, ok := owner.refValues([]string{jc.Referenced})
			if !ok {
				return &graft.MissingTargetError{Entity: cs.Metadata.Name, Relation: rel.Name, Target: owner.Metadata.Name}
			}
			cm.Value = ref[jc.Referenced]
			if stored, ok := cs.DatabaseEntity.Get(col.Name); ok && schema.EqualValues(cm.Value, col.Normalize(stored)) {
				continue
			}
		}
		changes = append(changes, cm)
	}
	if len(changes) == 0 {
		return nil
	}
	cs.ChangeMaps = append(cs.ChangeMaps, changes...)
	cs.MustBeUpdated, cs.noop, cs.derived, cs.resolved = true, false, true, true
	return nil
}

// orphan applies the orphan action of rel to a stored row that left it.
func (p *plan) orphan(owner *Subject, rel *schema.Relation, id schema.Identifier) error {
	target := rel.TargetEntity()
	switch rel.Orphan {
	case schema.OrphanDisable:
		return nil
	case schema.OrphanNullify:
		if !rel.Nullable {
			return &graft.OrphanError{Entity: target.Name, Relation: rel.String(), ID: id.String()}
		}
		ds := p.derive(target, nil, id)
		for _, jc := range rel.JoinColumns {
			ds.ChangeMaps = append(ds.ChangeMaps, ChangeMap{Column: target.Column(jc.Name), Relation: rel.InverseRelation()})
		}
		ds.MustBeUpdated, ds.orphan = true, true
	case schema.OrphanDelete:
		p.derive(target, nil, id).MustBeRemoved = true
	case schema.OrphanSoftDelete:
		col := target.DeleteDateColumn()
		if col == nil {
			return &graft.MissingDeleteDateColumnError{Entity: target.Name}
		}
		ds := p.derive(target, nil, id)
		ds.MustBeSoftRemoved = true
		ds.ChangeMaps = []ChangeMap{{Column: col, Value: p.now}}
	}
	return nil
}

// derive adds a subject for a stored row that is only written through a
// relation of another subject. A nil record is replaced by one holding the
// primary key.
func (p *plan) derive(meta *schema.Entity, rec *graft.Record, id schema.Identifier) *Subject {
	if rec == nil {
		rec = graft.NewRecord(nil)
		for _, c := range meta.PrimaryKeys() {
			v, err := c.FromStorage(id[c.Name])
			if err != nil {
				v = id[c.Name]
			}
			rec.Set(c.Name, v)
		}
	}
	s := newSubject(meta, rec, len(p.subjects))
	s.derived, s.resolved, s.databaseLoaded = true, true, true
	p.subjects = append(p.subjects, s)
	p.byRecord[rec] = s
	p.index(s, id)
	return s
}

// removeJunctions deletes every loaded junction row of a removed subject.
func (p *plan) removeJunctions(s *Subject) {
	for _, rel := range s.Metadata.Relations {
		if rel.Kind != schema.M2M {
			continue
		}
		for _, id := range s.relationIDs[rel] {
			s.junctionRemoves = append(s.junctionRemoves, junctionRow{rel: rel, ref: id})
		}
	}
}

// refOf returns the normalized values of the given columns of a record
// that is not part of the call.
func refOf(meta *schema.Entity, rec *graft.Record, names []string) (schema.Identifier, bool) {
	ref := make(schema.Identifier, len(names))
	for _, name := range names {
		col := meta.Column(name)
		if col == nil {
			return nil, false
		}
		v, ok := rec.Get(name)
		if !ok || v == nil {
			return nil, false
		}
		nv, err := col.ToStorage(v)
		if err != nil || nv == nil {
			return nil, false
		}
		ref[name] = nv
	}
	return ref, true
}
