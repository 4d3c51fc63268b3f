package mixin

import (
	"github.com/syssam/graft/schema"
	"github.com/syssam/graft/schema/field"
)

// Schema is the default implementation of the schema.Mixin interface.
// It should be embedded in custom mixin definitions.
//
//	type Audit struct {
//	    mixin.Schema
//	}
//
//	func (Audit) Fields() []schema.Field {
//	    return []schema.Field{
//	        field.String("created_by").Immutable(),
//	        field.String("updated_by"),
//	    }
//	}
type Schema struct{}

// Fields returns the fields of the mixin.
func (Schema) Fields() []schema.Field { return nil }

var _ schema.Mixin = (*Schema)(nil)

// Time adds created_at and updated_at columns maintained by the persister.
type Time struct {
	Schema
}

// Fields returns the time tracking fields.
func (Time) Fields() []schema.Field {
	return append(CreateTime{}.Fields(), UpdateTime{}.Fields()...)
}

// CreateTime adds only the created_at column.
type CreateTime struct {
	Schema
}

// Fields returns the created_at field.
func (CreateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("created_at").CreateDate(),
	}
}

// UpdateTime adds only the updated_at column.
type UpdateTime struct {
	Schema
}

// Fields returns the updated_at field.
func (UpdateTime) Fields() []schema.Field {
	return []schema.Field{
		field.Time("updated_at").UpdateDate(),
	}
}

// SoftDelete adds the deleted_at column used by soft-remove and recover.
type SoftDelete struct {
	Schema
}

// Fields returns the soft delete field.
func (SoftDelete) Fields() []schema.Field {
	return []schema.Field{
		field.Time("deleted_at").DeleteDate(),
	}
}

// TimeSoftDelete combines Time and SoftDelete mixins.
type TimeSoftDelete struct {
	Schema
}

// Fields returns all timestamp and soft delete fields.
func (TimeSoftDelete) Fields() []schema.Field {
	return append(Time{}.Fields(), SoftDelete{}.Fields()...)
}

// Compose returns a mixin with the fields of all given mixins, in order.
func Compose(mixins ...schema.Mixin) schema.Mixin {
	return composed(mixins)
}

type composed []schema.Mixin

func (c composed) Fields() []schema.Field {
	var fields []schema.Field
	for _, m := range c {
		fields = append(fields, m.Fields()...)
	}
	return fields
}
