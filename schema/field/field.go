package field

import (
	"time"

	"github.com/google/uuid"

	"github.com/syssam/graft/schema"
)

// Type aliases the column types of the schema package.
type Type = schema.Type

// Column types.
const (
	TypeBool   = schema.TypeBool
	TypeInt    = schema.TypeInt
	TypeUint   = schema.TypeUint
	TypeFloat  = schema.TypeFloat
	TypeString = schema.TypeString
	TypeBytes  = schema.TypeBytes
	TypeTime   = schema.TypeTime
	TypeUUID   = schema.TypeUUID
	TypeJSON   = schema.TypeJSON
	TypeEnum   = schema.TypeEnum
)

// Builder is the fluent builder of a column.
type Builder struct {
	desc *schema.Column
}

func newBuilder(name string, t Type) *Builder {
	return &Builder{desc: &schema.Column{Name: name, Type: t}}
}

// Bool returns a new boolean column builder.
func Bool(name string) *Builder { return newBuilder(name, TypeBool) }

// Int returns a new integer column builder.
func Int(name string) *Builder { return newBuilder(name, TypeInt) }

// Int64 is an alias of Int. Integers are stored as int64.
func Int64(name string) *Builder { return newBuilder(name, TypeInt) }

// Uint returns a new unsigned integer column builder.
func Uint(name string) *Builder { return newBuilder(name, TypeUint) }

// Float returns a new float column builder.
func Float(name string) *Builder { return newBuilder(name, TypeFloat) }

// String returns a new string column builder.
func String(name string) *Builder { return newBuilder(name, TypeString) }

// Text is an alias of String.
func Text(name string) *Builder { return newBuilder(name, TypeString) }

// Bytes returns a new binary column builder.
func Bytes(name string) *Builder { return newBuilder(name, TypeBytes) }

// Time returns a new time column builder.
func Time(name string) *Builder { return newBuilder(name, TypeTime) }

// UUID returns a new UUID column builder.
func UUID(name string) *Builder { return newBuilder(name, TypeUUID) }

// JSON returns a new JSON column builder. Values are compared by structure.
func JSON(name string) *Builder { return newBuilder(name, TypeJSON) }

// Enum returns a new enum column builder with the given values.
func Enum(name string, values ...string) *Builder {
	b := newBuilder(name, TypeEnum)
	b.desc.Enums = values
	return b
}

// Primary marks the column as (part of) the primary key.
func (b *Builder) Primary() *Builder {
	b.desc.Primary = true
	return b
}

// Increment marks the column value as generated by the database.
func (b *Builder) Increment() *Builder {
	b.desc.Generated = schema.GenerateIncrement
	return b
}

// GenerateUUID generates a UUID value before insert when the record has
// none.
func (b *Builder) GenerateUUID() *Builder {
	b.desc.Generated = schema.GenerateUUID
	return b
}

// Nullable allows NULL values.
func (b *Builder) Nullable() *Builder {
	b.desc.Nullable = true
	return b
}

// Optional is an alias of Nullable.
func (b *Builder) Optional() *Builder { return b.Nullable() }

// Default sets the value written on insert when the record does not define
// the column. It may be a value or a func() any.
func (b *Builder) Default(v any) *Builder {
	b.desc.Default = v
	return b
}

// DefaultFunc sets a default computed on every insert.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.desc.Default = fn
	return b
}

// Immutable excludes the column from updates.
func (b *Builder) Immutable() *Builder {
	b.desc.Immutable = true
	return b
}

// Virtual marks the column as computed: it is never written.
func (b *Builder) Virtual() *Builder {
	b.desc.Virtual = true
	return b
}

// CreateDate sets the column to the current time on insert.
func (b *Builder) CreateDate() *Builder {
	b.desc.Kind = schema.KindCreateDate
	b.desc.Immutable = true
	return b
}

// UpdateDate sets the column to the current time on insert and update.
func (b *Builder) UpdateDate() *Builder {
	b.desc.Kind = schema.KindUpdateDate
	return b
}

// DeleteDate marks the column as the soft-delete timestamp.
func (b *Builder) DeleteDate() *Builder {
	b.desc.Kind = schema.KindDeleteDate
	b.desc.Nullable = true
	return b
}

// Version marks the column as the row version: 1 on insert and incremented
// on every update.
func (b *Builder) Version() *Builder {
	b.desc.Kind = schema.KindVersion
	return b
}

// Transform sets the column transformer.
func (b *Builder) Transform(t schema.Transformer) *Builder {
	b.desc.Transformer = t
	return b
}

// Descriptor implements the schema.Field interface.
func (b *Builder) Descriptor() *schema.Column {
	return b.desc
}

// Now is a default function returning the current time.
func Now() any { return time.Now() }

// NewUUID is a default function returning a random UUID.
func NewUUID() any { return uuid.New() }

var _ schema.Field = (*Builder)(nil)
