package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
	"github.com/syssam/graft/schema/edge"
	"github.com/syssam/graft/schema/field"
)

func blog() (user, post, group, category *schema.Entity) {
	user = schema.NewEntity("User").
		Fields(
			field.Int("id").Primary().Increment(),
			field.String("name"),
		).
		Edges(
			edge.To("posts", "Post").Cascade(schema.CascadeAll),
			edge.ManyToMany("groups", "Group").CascadeOn(graft.OpInsert),
		)
	post = schema.NewEntity("Post").
		Fields(
			field.Int("id").Primary().Increment(),
			field.String("title"),
		).
		Edges(edge.From("author", "User").Ref("posts").Required())
	group = schema.NewEntity("Group").
		Fields(
			field.Int("id").Primary(),
			field.String("name"),
		).
		Edges(edge.ManyToMany("users", "User").Ref("groups"))
	category = schema.NewEntity("Category").
		Fields(field.Int("id").Primary().Increment()).
		Edges(
			edge.From("parent", "Category").Ref("children"),
			edge.To("children", "Category"),
		)
	return
}

func TestRegistry_Register(t *testing.T) {
	user, post, group, category := blog()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(user, post, group, category))

	assert.Equal(t, "users", user.Table)
	assert.Equal(t, "categories", category.Table)
	assert.Equal(t, []*schema.Entity{user, post, group, category}, reg.Entities())

	e, err := reg.Entity("Post")
	require.NoError(t, err)
	assert.Same(t, post, e)

	_, err = reg.Entity("Comment")
	assert.ErrorIs(t, err, graft.ErrUnknownEntity)
	assert.Panics(t, func() { reg.MustEntity("Comment") })
}

func TestRegistry_ForeignKeys(t *testing.T) {
	user, post, group, category := blog()
	require.NoError(t, schema.NewRegistry().Register(user, post, group, category))

	author := post.Relation("author")
	require.NotNil(t, author)
	assert.Equal(t, schema.M2O, author.Kind)
	assert.True(t, author.HoldsForeignKey())
	assert.False(t, author.Nullable)
	assert.Equal(t, []schema.JoinColumn{{Name: "author_id", Referenced: "id"}}, author.JoinColumns)
	assert.Same(t, user, author.TargetEntity())
	assert.Same(t, user.Relation("posts"), author.InverseRelation())

	fk := post.Column("author_id")
	require.NotNil(t, fk, "implicit foreign-key column")
	assert.Equal(t, schema.TypeInt, fk.Type)
	assert.Same(t, author, fk.Relation)
	assert.False(t, fk.Nullable)

	posts := user.Relation("posts")
	assert.Equal(t, schema.O2M, posts.Kind)
	assert.False(t, posts.HoldsForeignKey())
	assert.Equal(t, author.JoinColumns, posts.JoinColumns)
	assert.Same(t, author, posts.InverseRelation())

	parent := category.Relation("parent")
	assert.True(t, parent.Nullable)
	assert.Equal(t, "parent_id", parent.JoinColumns[0].Name)
	assert.Same(t, parent, category.Relation("children").InverseRelation())
}

func TestRegistry_Junction(t *testing.T) {
	user, post, group, category := blog()
	require.NoError(t, schema.NewRegistry().Register(user, post, group, category))

	groups := user.Relation("groups")
	require.NotNil(t, groups.Junction)
	assert.Equal(t, "user_groups", groups.Junction.Table)
	assert.Equal(t, []string{"user_id", "group_id"}, groups.Junction.Columns())

	users := group.Relation("users")
	assert.False(t, users.Owner)
	assert.Same(t, groups.Junction, users.Junction)
	self, other := users.JunctionColumns()
	assert.Equal(t, "group_id", self[0].Name)
	assert.Equal(t, "user_id", other[0].Name)
}

func TestRegistry_Errors(t *testing.T) {
	tests := []struct {
		name     string
		entities func() []*schema.Entity
		contains string
	}{
		{
			name: "no primary key",
			entities: func() []*schema.Entity {
				return []*schema.Entity{schema.NewEntity("Log").Fields(field.String("line"))}
			},
			contains: "no primary key",
		},
		{
			name: "unknown target",
			entities: func() []*schema.Entity {
				return []*schema.Entity{
					schema.NewEntity("Post").
						Fields(field.Int("id").Primary()).
						Edges(edge.From("author", "User")),
				}
			},
			contains: `unknown target entity "User"`,
		},
		{
			name: "duplicate",
			entities: func() []*schema.Entity {
				return []*schema.Entity{
					schema.NewEntity("A").Fields(field.Int("id").Primary()),
					schema.NewEntity("A").Fields(field.Int("id").Primary()),
				}
			},
			contains: `duplicate entity "A"`,
		},
		{
			name: "one-to-many without inverse",
			entities: func() []*schema.Entity {
				return []*schema.Entity{
					schema.NewEntity("User").Fields(field.Int("id").Primary()).Edges(edge.To("posts", "Post")),
					schema.NewEntity("Post").Fields(field.Int("id").Primary()),
				}
			},
			contains: "requires an inverse relation",
		},
		{
			name: "self many-to-many with colliding columns",
			entities: func() []*schema.Entity {
				return []*schema.Entity{
					schema.NewEntity("User").Fields(field.Int("id").Primary()).Edges(edge.ManyToMany("users", "User")),
				}
			},
			contains: "used twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := schema.NewRegistry()
			err := reg.Register(tt.entities()...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Empty(t, reg.Entities())
		})
	}
}

func TestRegistry_Incremental(t *testing.T) {
	reg := schema.NewRegistry()
	user := schema.NewEntity("User").Fields(field.UUID("id").Primary().GenerateUUID())
	require.NoError(t, reg.Register(user))

	friends := schema.NewEntity("Membership").
		Fields(field.Int("id").Primary().Increment()).
		Edges(edge.From("member", "User").Unique())
	require.NoError(t, reg.Register(friends))

	member := friends.Relation("member")
	assert.Equal(t, schema.O2O, member.Kind)
	assert.Equal(t, schema.TypeUUID, friends.Column("member_id").Type)
}
