package schema

import (
	"fmt"

	"github.com/syssam/graft"
)

// Type is the logical type of a column.
type Type uint8

// Column types.
const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeUint
	TypeFloat
	TypeString
	TypeBytes
	TypeTime
	TypeUUID
	TypeJSON
	TypeEnum
)

var typeNames = [...]string{
	TypeInvalid: "invalid",
	TypeBool:    "bool",
	TypeInt:     "int",
	TypeUint:    "uint",
	TypeFloat:   "float",
	TypeString:  "string",
	TypeBytes:   "bytes",
	TypeTime:    "time",
	TypeUUID:    "uuid",
	TypeJSON:    "json",
	TypeEnum:    "enum",
}

// String returns the type name.
func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", t)
}

// Generation describes how a primary key value is produced when the record
// does not carry one.
type Generation uint8

// Generation strategies.
const (
	GenerateNone      Generation = iota // value is assigned by the caller
	GenerateIncrement                   // value is assigned by the database
	GenerateUUID                        // value is generated client side before insert
)

// Kind marks columns whose value is maintained by the persister.
type Kind uint8

// Column kinds.
const (
	KindRegular    Kind = iota
	KindCreateDate      // set on insert
	KindUpdateDate      // set on insert and on every update
	KindDeleteDate      // set by soft-remove and cleared by recover
	KindVersion         // 1 on insert, incremented on every update
)

// Transformer converts column values between their in-memory and stored
// representations.
type Transformer interface {
	// To converts an in-memory value to its stored representation.
	To(any) (any, error)
	// From converts a stored value to its in-memory representation.
	From(any) (any, error)
}

// Column describes a persisted (or virtual) property of an entity.
type Column struct {
	Name        string
	Type        Type
	Primary     bool
	Generated   Generation
	Nullable    bool
	Default     any // value or func() any
	Immutable   bool
	Virtual     bool
	Kind        Kind
	Transformer Transformer
	Enums       []string

	// Relation is set on foreign-key columns and Referenced holds the name
	// of the referenced column on the relation target.
	Relation   *Relation
	Referenced string
}

// DefaultValue returns the default value of the column, calling it if it is
// a function.
func (c *Column) DefaultValue() (any, bool) {
	switch v := c.Default.(type) {
	case nil:
		return nil, false
	case func() any:
		return v(), true
	default:
		return v, true
	}
}

// RelationKind is the cardinality of a relation.
type RelationKind uint8

// Relation kinds.
const (
	O2O RelationKind = iota + 1 // one-to-one
	O2M                         // one-to-many
	M2O                         // many-to-one
	M2M                         // many-to-many
)

// String returns the relation kind name.
func (k RelationKind) String() string {
	switch k {
	case O2O:
		return "O2O"
	case O2M:
		return "O2M"
	case M2O:
		return "M2O"
	case M2M:
		return "M2M"
	}
	return fmt.Sprintf("RelationKind(%d)", k)
}

// OrphanAction is applied to rows that leave a loaded to-many (or inverse
// to-one) relation.
type OrphanAction uint8

// Orphan actions.
const (
	OrphanNullify    OrphanAction = iota // set the foreign key to NULL
	OrphanDelete                         // delete the row
	OrphanSoftDelete                     // soft-delete the row
	OrphanDisable                        // leave the row untouched
)

// Cascade holds the operations that are propagated through a relation.
type Cascade struct {
	Insert     bool
	Update     bool
	Remove     bool
	SoftRemove bool
	Recover    bool
}

// CascadeAll cascades every operation.
var CascadeAll = Cascade{Insert: true, Update: true, Remove: true, SoftRemove: true, Recover: true}

// Has reports whether the given operation is cascaded. For OpSave, either
// insert or update cascading is enough.
func (c Cascade) Has(op graft.Op) bool {
	switch {
	case op.Is(graft.OpInsert) && c.Insert,
		op.Is(graft.OpUpdate) && c.Update,
		op.Is(graft.OpRemove) && c.Remove,
		op.Is(graft.OpSoftRemove) && c.SoftRemove,
		op.Is(graft.OpRecover) && c.Recover:
		return true
	}
	return false
}

// JoinColumn pairs a foreign-key column with the column it references.
type JoinColumn struct {
	Name       string // column holding the reference
	Referenced string // referenced column on the other side
}

// Junction describes the join table of a many-to-many relation. OwnerColumns
// reference the owning entity and InverseColumns the target.
type Junction struct {
	Table          string
	OwnerColumns   []JoinColumn
	InverseColumns []JoinColumn
}

// Columns returns all junction columns, owner side first.
func (j *Junction) Columns() []string {
	cols := make([]string, 0, len(j.OwnerColumns)+len(j.InverseColumns))
	for _, c := range j.OwnerColumns {
		cols = append(cols, c.Name)
	}
	for _, c := range j.InverseColumns {
		cols = append(cols, c.Name)
	}
	return cols
}

// Relation describes a relation between two entities.
//
// The owning side of a to-one relation holds the foreign key (JoinColumns
// name its columns). The owning side of a many-to-many relation owns the
// junction table. Non-owning sides share the JoinColumns and Junction of
// their inverse once the registry resolved them.
type Relation struct {
	Name        string
	Kind        RelationKind
	Target      string
	Inverse     string
	Owner       bool
	JoinColumns []JoinColumn
	Junction    *Junction
	Nullable    bool
	Cascade     Cascade
	Orphan      OrphanAction

	entity  *Entity
	target  *Entity
	inverse *Relation
}

// Entity returns the entity declaring the relation.
func (r *Relation) Entity() *Entity { return r.entity }

// TargetEntity returns the resolved target entity.
func (r *Relation) TargetEntity() *Entity { return r.target }

// InverseRelation returns the resolved inverse relation, if any.
func (r *Relation) InverseRelation() *Relation { return r.inverse }

// ToMany reports whether the in-memory value of the relation is a list.
func (r *Relation) ToMany() bool { return r.Kind == O2M || r.Kind == M2M }

// HoldsForeignKey reports whether the declaring entity's table holds the
// foreign key of the relation.
func (r *Relation) HoldsForeignKey() bool {
	return r.Owner && (r.Kind == M2O || r.Kind == O2O)
}

// JunctionColumns returns the junction columns referencing the declaring
// entity and the target, from the declaring side's point of view.
func (r *Relation) JunctionColumns() (self, other []JoinColumn) {
	if r.Junction == nil {
		return nil, nil
	}
	if r.Owner {
		return r.Junction.OwnerColumns, r.Junction.InverseColumns
	}
	return r.Junction.InverseColumns, r.Junction.OwnerColumns
}

// String returns the qualified relation name.
func (r *Relation) String() string {
	if r.entity != nil {
		return r.entity.Name + "." + r.Name
	}
	return r.Name
}

// Field is implemented by column builders.
type Field interface {
	Descriptor() *Column
}

// Edge is implemented by relation builders.
type Edge interface {
	Descriptor() *Relation
}

// Mixin is a reusable set of columns.
type Mixin interface {
	Fields() []Field
}
