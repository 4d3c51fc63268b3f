package schema

import (
	"github.com/syssam/graft"
)

// Entity is the metadata of an entity type. It is built once, registered in
// a Registry and read-only afterwards.
//
//	user := schema.NewEntity("User").
//		Mixin(mixin.ID{}, mixin.Time{}).
//		Fields(field.String("name")).
//		Edges(edge.To("posts", "Post").Cascade(schema.CascadeAll))
type Entity struct {
	Name      string
	Table     string
	Columns   []*Column
	Relations []*Relation
	Listeners []Listener
	Policy    graft.Policy

	columns   map[string]*Column
	relations map[string]*Relation
	primary   []*Column
}

// NewEntity returns a new entity with the given name.
func NewEntity(name string) *Entity {
	return &Entity{Name: name}
}

// TableName sets the table of the entity.
func (e *Entity) TableName(table string) *Entity {
	e.Table = table
	return e
}

// Fields appends the columns built by the given fields.
func (e *Entity) Fields(fields ...Field) *Entity {
	for _, f := range fields {
		e.Columns = append(e.Columns, f.Descriptor())
	}
	return e
}

// Edges appends the relations built by the given edges.
func (e *Entity) Edges(edges ...Edge) *Entity {
	for _, ed := range edges {
		e.Relations = append(e.Relations, ed.Descriptor())
	}
	return e
}

// Mixin appends the columns of the given mixins.
func (e *Entity) Mixin(mixins ...Mixin) *Entity {
	for _, m := range mixins {
		e.Fields(m.Fields()...)
	}
	return e
}

// Listen appends entity listeners.
func (e *Entity) Listen(listeners ...Listener) *Entity {
	e.Listeners = append(e.Listeners, listeners...)
	return e
}

// Privacy sets the mutation policy of the entity.
func (e *Entity) Privacy(p graft.Policy) *Entity {
	e.Policy = p
	return e
}

// Column returns the named column, or nil.
func (e *Entity) Column(name string) *Column {
	if e.columns != nil {
		return e.columns[name]
	}
	for _, c := range e.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Relation returns the named relation, or nil.
func (e *Entity) Relation(name string) *Relation {
	if e.relations != nil {
		return e.relations[name]
	}
	for _, r := range e.Relations {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// PrimaryKeys returns the primary-key columns in declaration order.
func (e *Entity) PrimaryKeys() []*Column {
	if e.primary != nil {
		return e.primary
	}
	var pks []*Column
	for _, c := range e.Columns {
		if c.Primary {
			pks = append(pks, c)
		}
	}
	return pks
}

// PrimaryKeyNames returns the names of the primary-key columns.
func (e *Entity) PrimaryKeyNames() []string {
	pks := e.PrimaryKeys()
	names := make([]string, len(pks))
	for i, c := range pks {
		names[i] = c.Name
	}
	return names
}

// CreateDateColumn returns the create-date column, or nil.
func (e *Entity) CreateDateColumn() *Column { return e.columnOfKind(KindCreateDate) }

// UpdateDateColumn returns the update-date column, or nil.
func (e *Entity) UpdateDateColumn() *Column { return e.columnOfKind(KindUpdateDate) }

// DeleteDateColumn returns the delete-date column, or nil.
func (e *Entity) DeleteDateColumn() *Column { return e.columnOfKind(KindDeleteDate) }

// VersionColumn returns the version column, or nil.
func (e *Entity) VersionColumn() *Column { return e.columnOfKind(KindVersion) }

func (e *Entity) columnOfKind(k Kind) *Column {
	for _, c := range e.Columns {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// PersistedColumns returns the non-virtual columns.
func (e *Entity) PersistedColumns() []*Column {
	cols := make([]*Column, 0, len(e.Columns))
	for _, c := range e.Columns {
		if !c.Virtual {
			cols = append(cols, c)
		}
	}
	return cols
}

// IdentifierOf returns the normalized primary key of the record. It reports
// false if any primary-key column is undefined or NULL.
func (e *Entity) IdentifierOf(r *graft.Record) (Identifier, bool) {
	pks := e.PrimaryKeys()
	if r == nil || len(pks) == 0 {
		return nil, false
	}
	id := make(Identifier, len(pks))
	for _, c := range pks {
		v, ok := r.Get(c.Name)
		if !ok || v == nil {
			return nil, false
		}
		nv, err := c.ToStorage(v)
		if err != nil || nv == nil {
			return nil, false
		}
		id[c.Name] = nv
	}
	return id, true
}

// IdentifierOfRow returns the primary key of a stored row.
func (e *Entity) IdentifierOfRow(row map[string]any) (Identifier, bool) {
	pks := e.PrimaryKeys()
	if len(pks) == 0 {
		return nil, false
	}
	id := make(Identifier, len(pks))
	for _, c := range pks {
		v := c.Normalize(row[c.Name])
		if v == nil {
			return nil, false
		}
		id[c.Name] = v
	}
	return id, true
}

// Equal reports whether two records have the same primary key.
func (e *Entity) Equal(a, b *graft.Record) bool {
	if a == b {
		return true
	}
	ida, ok := e.IdentifierOf(a)
	if !ok {
		return false
	}
	idb, ok := e.IdentifierOf(b)
	return ok && ida.Equal(idb)
}

// String returns the entity name.
func (e *Entity) String() string { return e.Name }
