// Package edge provides fluent builders for relations between entities.
//
// The owning side of a to-one relation holds the foreign key; the owning
// side of a many-to-many relation owns the junction table:
//
//	// Post.author holds posts.author_id.
//	edge.From("author", "User").Ref("posts").Required()
//	// User.posts is its inverse.
//	edge.To("posts", "Post").Cascade(schema.CascadeAll)
//
//	// User.groups owns the user_groups table.
//	edge.ManyToMany("groups", "Group").CascadeOn(graft.OpInsert)
//	edge.ManyToMany("users", "User").Ref("groups")
//
// Related records are written only through relations that cascade the
// operation; otherwise they are treated as references and must already
// exist.
//
// Rows that leave a loaded to-many relation get their foreign key nullified
// unless another OnOrphan action is set.
package edge
