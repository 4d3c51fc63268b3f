// Package mixin provides the base mixin and the timestamp mixins whose
// columns are maintained by the persister.
//
// A mixin is a reusable set of columns added to an entity:
//
//	schema.NewEntity("Post").
//	    Mixin(mixin.Time{}, mixin.SoftDelete{}).
//	    Fields(field.String("title"))
//
// Time adds created_at (set on insert) and updated_at (set on insert and on
// every update). SoftDelete adds deleted_at, set by soft-remove and cleared
// by recover.
//
// For primary keys, versioning and tenancy see the contrib/mixin package.
package mixin
