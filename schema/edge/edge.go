package edge

import (
	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

// Builder is the fluent builder of a relation.
type Builder struct {
	desc *schema.Relation
}

// To declares the non-owning side of a relation: the foreign key lives in
// the target table. It is one-to-many unless Unique is called.
//
//	edge.To("posts", "Post")               // User has many posts
//	edge.To("profile", "Profile").Unique() // User has one profile
func To(name, target string) *Builder {
	return &Builder{desc: &schema.Relation{
		Name:     name,
		Kind:     schema.O2M,
		Target:   target,
		Nullable: true,
	}}
}

// From declares the owning side of a to-one relation: the foreign key lives
// in the declaring table. It is many-to-one unless Unique is called.
//
//	edge.From("author", "User").Ref("posts")
func From(name, target string) *Builder {
	return &Builder{desc: &schema.Relation{
		Name:     name,
		Kind:     schema.M2O,
		Target:   target,
		Owner:    true,
		Nullable: true,
	}}
}

// ManyToMany declares a many-to-many relation kept in a junction table. The
// declaring side owns the junction unless Ref is called.
//
//	edge.ManyToMany("groups", "Group")          // owning side
//	edge.ManyToMany("users", "User").Ref("groups") // inverse side
func ManyToMany(name, target string) *Builder {
	return &Builder{desc: &schema.Relation{
		Name:   name,
		Kind:   schema.M2M,
		Target: target,
		Owner:  true,
	}}
}

// Unique makes the relation one-to-one.
func (b *Builder) Unique() *Builder {
	if b.desc.Kind == schema.O2M || b.desc.Kind == schema.M2O {
		b.desc.Kind = schema.O2O
	}
	return b
}

// Ref names the inverse relation on the target. On a many-to-many relation
// it also makes this side the inverse (non-owning) one.
func (b *Builder) Ref(name string) *Builder {
	b.desc.Inverse = name
	if b.desc.Kind == schema.M2M {
		b.desc.Owner = false
	}
	return b
}

// Required makes the foreign key non-nullable.
func (b *Builder) Required() *Builder {
	b.desc.Nullable = false
	return b
}

// Field names the foreign-key column of an owning to-one relation. An
// optional referenced column defaults to the target primary key.
func (b *Builder) Field(column string, referenced ...string) *Builder {
	jc := schema.JoinColumn{Name: column}
	if len(referenced) > 0 {
		jc.Referenced = referenced[0]
	}
	b.desc.JoinColumns = append(b.desc.JoinColumns, jc)
	return b
}

// Through names the junction table of an owning many-to-many relation and,
// optionally, its owner and inverse columns.
//
//	edge.ManyToMany("friends", "User").Through("friendships", "user_id", "friend_id")
func (b *Builder) Through(table string, columns ...string) *Builder {
	j := &schema.Junction{Table: table}
	if len(columns) == 2 {
		j.OwnerColumns = []schema.JoinColumn{{Name: columns[0]}}
		j.InverseColumns = []schema.JoinColumn{{Name: columns[1]}}
	}
	b.desc.Junction = j
	return b
}

// Cascade sets the operations propagated to related records.
func (b *Builder) Cascade(c schema.Cascade) *Builder {
	b.desc.Cascade = c
	return b
}

// CascadeOn enables cascading of the given operations.
//
//	edge.To("posts", "Post").CascadeOn(graft.OpSave, graft.OpRemove)
func (b *Builder) CascadeOn(ops ...graft.Op) *Builder {
	c := &b.desc.Cascade
	for _, op := range ops {
		c.Insert = c.Insert || op.Is(graft.OpInsert)
		c.Update = c.Update || op.Is(graft.OpUpdate)
		c.Remove = c.Remove || op.Is(graft.OpRemove)
		c.SoftRemove = c.SoftRemove || op.Is(graft.OpSoftRemove)
		c.Recover = c.Recover || op.Is(graft.OpRecover)
	}
	return b
}

// OnOrphan sets the action applied to rows removed from the loaded relation.
func (b *Builder) OnOrphan(a schema.OrphanAction) *Builder {
	b.desc.Orphan = a
	return b
}

// Descriptor implements the schema.Edge interface.
func (b *Builder) Descriptor() *schema.Relation {
	return b.desc
}

var _ schema.Edge = (*Builder)(nil)
