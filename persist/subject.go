package persist

import (
	"fmt"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

// State is the execution state of a subject.
type State uint8

// Subject states.
const (
	StatePending State = iota
	StateExecuting
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StatePending:   "pending",
	StateExecuting: "executing",
	StateDone:      "done",
	StateFailed:    "failed",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// ChangeMap is a single column write of a subject. Exactly one of Value and
// Pending is meaningful: Pending is set when the value is the key of another
// subject inserted by the same call, and is resolved at execution.
type ChangeMap struct {
	Column   *schema.Column
	Relation *schema.Relation
	Value    any
	Pending  *Subject
}

// Subject is the unit of work of a persist call: one entity record and the
// write planned for it.
type Subject struct {
	// Metadata describes the entity type.
	Metadata *schema.Entity
	// Entity is the record supplied by the caller. It is never copied;
	// generated values are written back to it.
	Entity *graft.Record
	// DatabaseEntity holds the stored row in normalized form, or nil if the
	// row does not exist (or was not loaded, see Loaded).
	DatabaseEntity *graft.Record
	// Identifier addresses the stored row. It is nil for inserts with
	// database-generated keys until the insert is executed.
	Identifier schema.Identifier

	MustBeInserted    bool
	MustBeUpdated     bool
	MustBeRemoved     bool
	MustBeSoftRemoved bool
	MustBeRecovered   bool

	// ChangeMaps holds the column writes computed for the subject.
	ChangeMaps []ChangeMap
	// State is the execution state.
	State State

	index          int
	aliases        []*graft.Record
	databaseLoaded bool

	// save intents, resolved once by resolveOperation.
	canBeInserted bool
	canBeUpdated  bool
	resolved      bool
	via           *schema.Relation

	noop    bool
	derived bool
	orphan  bool

	// links holds the owners of to-many (or inverse to-one) relations this
	// subject was reached through, keyed by the owning relation of the
	// subject.
	links map[*schema.Relation]*link

	generated       map[string]any
	deferred        map[string]bool
	relationIDs     map[*schema.Relation][]schema.Identifier
	junctionInserts []junctionRow
	junctionRemoves []junctionRow
}

// link is an owner of the subject through an inverse relation.
type link struct {
	owner  *Subject
	record *graft.Record
}

func newSubject(meta *schema.Entity, rec *graft.Record, index int) *Subject {
	return &Subject{Metadata: meta, Entity: rec, index: index}
}

// Loaded reports whether the stored row was loaded. A loaded subject with a
// nil DatabaseEntity has no stored row.
func (s *Subject) Loaded() bool { return s.databaseLoaded }

// Noop reports whether the subject was planned as an update but has nothing
// to write.
func (s *Subject) Noop() bool { return s.noop }

// Op returns the resolved operation of the subject, or 0 if it has none.
func (s *Subject) Op() graft.Op {
	switch {
	case s.MustBeInserted:
		return graft.OpInsert
	case s.MustBeUpdated:
		return graft.OpUpdate
	case s.MustBeRemoved:
		return graft.OpRemove
	case s.MustBeSoftRemoved:
		return graft.OpSoftRemove
	case s.MustBeRecovered:
		return graft.OpRecover
	}
	return 0
}

// Records returns the entity and the records merged into the subject.
func (s *Subject) Records() []*graft.Record {
	return append([]*graft.Record{s.Entity}, s.aliases...)
}

// value returns the value of the named property, looking into aliases when
// the entity does not define it.
func (s *Subject) value(name string) (any, bool) {
	if v, ok := s.Entity.Get(name); ok {
		return v, true
	}
	for _, a := range s.aliases {
		if v, ok := a.Get(name); ok {
			return v, true
		}
	}
	return nil, false
}

// set writes a property to the entity and its aliases.
func (s *Subject) set(name string, v any) {
	for _, r := range s.Records() {
		r.Set(name, v)
	}
}

// EntityWithFulfilledIDs returns a copy of the entity whose primary-key
// properties are set from the identifier, including generated keys.
func (s *Subject) EntityWithFulfilledIDs() *graft.Record {
	rec := graft.NewRecord(s.Entity.Values())
	for _, a := range s.aliases {
		for k, v := range a.Values() {
			if !rec.Has(k) {
				rec.Set(k, v)
			}
		}
	}
	for _, c := range s.Metadata.PrimaryKeys() {
		if v, ok := s.Identifier[c.Name]; ok {
			if fv, err := c.FromStorage(v); err == nil {
				rec.Set(c.Name, fv)
			}
		}
	}
	return rec
}

// refValues returns the normalized values of the given columns of the
// subject: identifier values first, then the record, then the stored row.
func (s *Subject) refValues(names []string) (schema.Identifier, bool) {
	ref := make(schema.Identifier, len(names))
	for _, name := range names {
		if v, ok := s.Identifier[name]; ok && v != nil {
			ref[name] = v
			continue
		}
		col := s.Metadata.Column(name)
		if col == nil {
			return nil, false
		}
		if v, ok := s.value(name); ok && v != nil {
			nv, err := col.ToStorage(v)
			if err != nil || nv == nil {
				return nil, false
			}
			ref[name] = nv
			continue
		}
		if v, ok := s.DatabaseEntity.Get(name); ok && v != nil {
			ref[name] = v
			continue
		}
		return nil, false
	}
	return ref, true
}

// change returns the change of the named column, if any.
func (s *Subject) change(name string) (ChangeMap, bool) {
	for _, cm := range s.ChangeMaps {
		if cm.Column.Name == name {
			return cm, true
		}
	}
	return ChangeMap{}, false
}

// String returns a readable reference to the subject, e.g. "Post#3".
func (s *Subject) String() string {
	return fmt.Sprintf("%s#%d", s.Metadata.Name, s.index)
}

// mutation is the graft.Mutation view of a subject passed to policies.
type mutation struct {
	s  *Subject
	op graft.Op
}

var _ graft.Mutation = (*mutation)(nil)

func (m *mutation) Op() graft.Op          { return m.op }
func (m *mutation) Type() string          { return m.s.Metadata.Name }
func (m *mutation) Record() *graft.Record { return m.s.Entity }

func (m *mutation) Fields() []string {
	names := make([]string, 0, len(m.s.ChangeMaps))
	for _, cm := range m.s.ChangeMaps {
		names = append(names, cm.Column.Name)
	}
	return names
}

// Field returns the value written to the column, or its current value for
// columns the write leaves untouched.
func (m *mutation) Field(name string) (any, bool) {
	if cm, ok := m.s.change(name); ok {
		if cm.Pending != nil {
			return nil, true
		}
		return cm.Value, true
	}
	if ref, ok := m.s.refValues([]string{name}); ok {
		return ref[name], true
	}
	return nil, false
}
