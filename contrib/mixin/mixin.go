// Package mixin provides optional, ready-to-use mixins for primary keys,
// optimistic versioning and multi-tenancy.
//
//	schema.NewEntity("User").
//	    Mixin(mixin.ID{}, mixin.Version{}, mixin.TenantID{}).
//	    Fields(field.String("name"))
package mixin

import (
	"github.com/syssam/graft/schema"
	"github.com/syssam/graft/schema/field"
	"github.com/syssam/graft/schema/mixin"
)

// ID adds an integer primary key generated by the database.
//
//	id INTEGER PRIMARY KEY AUTOINCREMENT
type ID struct{ mixin.Schema }

// Fields of the ID mixin.
func (ID) Fields() []schema.Field {
	return []schema.Field{
		field.Int("id").Primary().Increment(),
	}
}

var _ schema.Mixin = (*ID)(nil)

// UUID adds a UUID primary key generated with github.com/google/uuid before
// the row is inserted, so related rows can reference it without waiting for
// the database.
type UUID struct{ mixin.Schema }

// Fields of the UUID mixin.
func (UUID) Fields() []schema.Field {
	return []schema.Field{
		field.UUID("id").Primary().GenerateUUID().Immutable(),
	}
}

var _ schema.Mixin = (*UUID)(nil)

// Version adds a version column: 1 on insert and incremented on every
// update that changes the row.
type Version struct{ mixin.Schema }

// Fields of the Version mixin.
func (Version) Fields() []schema.Field {
	return []schema.Field{
		field.Int("version").Version(),
	}
}

var _ schema.Mixin = (*Version)(nil)

// TenantID adds an immutable tenant_id column. Combined with a mutation
// policy (see privacy.TenantRule), it keeps writes inside one tenant.
type TenantID struct{ mixin.Schema }

// Fields of the TenantID mixin.
func (TenantID) Fields() []schema.Field {
	return []schema.Field{
		field.String("tenant_id").Immutable(),
	}
}

var _ schema.Mixin = (*TenantID)(nil)

// Audit composes the ID, Time and Version mixins.
type Audit struct{ mixin.Schema }

// Fields of the Audit mixin.
func (Audit) Fields() []schema.Field {
	return mixin.Compose(ID{}, mixin.Time{}, Version{}).Fields()
}

var _ schema.Mixin = (*Audit)(nil)
