// Package schema describes entities to the persister: their table, columns,
// primary keys, relations, listeners and mutation policy.
//
// Entities are declared with the field, edge and mixin builders and resolved
// by a Registry:
//
//	user := schema.NewEntity("User").
//	    Mixin(mixin.Time{}).
//	    Fields(
//	        field.Int("id").Primary().Increment(),
//	        field.String("name"),
//	    ).
//	    Edges(
//	        edge.To("posts", "Post").Cascade(schema.CascadeAll),
//	        edge.ManyToMany("groups", "Group").CascadeOn(graft.OpInsert),
//	    )
//
//	post := schema.NewEntity("Post").
//	    Fields(
//	        field.Int("id").Primary().Increment(),
//	        field.String("title"),
//	    ).
//	    Edges(edge.From("author", "User").Ref("posts"))
//
//	reg := schema.NewRegistry()
//	if err := reg.Register(user, post, group); err != nil {
//	    return err
//	}
//
// Registering resolves each relation: the target entity, the inverse side,
// the foreign-key columns of owning to-one relations (declared implicitly as
// "<relation>_<referenced>", e.g. posts.author_id) and the junction table of
// owning many-to-many relations ("<entity>_<relation>", e.g. user_groups).
// Tables default to the pluralized snake case of the entity name.
//
// # Values
//
// Column values are compared on a normalized representation so values read
// back from a driver match values set in memory. See Column.Normalize.
// Primary keys are represented as Identifier values, whose Key method gives
// a stable map key for composite and non-comparable keys.
package schema
