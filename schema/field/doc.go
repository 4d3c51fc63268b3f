// Package field provides fluent builders for entity columns.
//
//	field.Int("id").Primary().Increment()
//	field.UUID("id").Primary().GenerateUUID()
//	field.String("email")
//	field.Time("created_at").CreateDate()
//	field.Time("deleted_at").DeleteDate()
//	field.Int("version").Version()
//	field.JSON("settings").Nullable()
//	field.Enum("status", "active", "disabled").Default("active")
//
// Columns are non-nullable unless Nullable is called. Foreign-key columns
// are declared implicitly by owning relations (see package edge) and only
// need a field when their type or name must be customized.
package field
