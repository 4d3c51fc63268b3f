package schema_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

func TestColumn_Normalize(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	tests := []struct {
		name string
		typ  schema.Type
		in   any
		want any
	}{
		{"bool from int", schema.TypeBool, int64(1), true},
		{"bool from zero", schema.TypeBool, 0, false},
		{"bool from bytes", schema.TypeBool, []byte("true"), true},
		{"int widened", schema.TypeInt, int32(7), int64(7)},
		{"int from uint", schema.TypeInt, uint8(7), int64(7)},
		{"int from integral float", schema.TypeInt, 7.0, int64(7)},
		{"int from bytes", schema.TypeInt, []byte("42"), int64(42)},
		{"float from int", schema.TypeFloat, 3, 3.0},
		{"float from float32", schema.TypeFloat, float32(0.5), 0.5},
		{"string from bytes", schema.TypeString, []byte("a8m"), "a8m"},
		{"time from string", schema.TypeTime, "2024-05-01 10:30:00", ts},
		{"time to utc", schema.TypeTime, ts.In(time.FixedZone("X", 3600)), ts},
		{"uuid from string", schema.TypeUUID, id.String(), id},
		{"uuid from bytes", schema.TypeUUID, id[:], id},
		{"json from text", schema.TypeJSON, `{"a":[1,2]}`, map[string]any{"a": []any{1.0, 2.0}}},
		{"json from value", schema.TypeJSON, map[string]int{"a": 1}, map[string]any{"a": 1.0}},
		{"null valuer", schema.TypeString, sql.NullString{}, nil},
		{"valid valuer", schema.TypeString, sql.NullString{String: "x", Valid: true}, "x"},
		{"nil", schema.TypeInt, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &schema.Column{Name: "c", Type: tt.typ}
			got := c.Normalize(tt.in)
			if want, ok := tt.want.(time.Time); ok {
				require.IsType(t, time.Time{}, got)
				assert.True(t, want.Equal(got.(time.Time)))
				assert.Equal(t, time.UTC, got.(time.Time).Location())
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestColumn_Normalize_Pointer(t *testing.T) {
	s := "a8m"
	c := &schema.Column{Name: "name", Type: schema.TypeString}
	assert.Equal(t, "a8m", c.Normalize(&s))
	var nilp *string
	assert.Nil(t, c.Normalize(nilp))
}

type upper struct{}

func (upper) To(v any) (any, error)   { return v.(string) + "!", nil }
func (upper) From(v any) (any, error) { return v.(string)[:len(v.(string))-1], nil }

func TestColumn_Transformer(t *testing.T) {
	c := &schema.Column{Name: "name", Type: schema.TypeString, Transformer: upper{}}
	v, err := c.ToStorage("a8m")
	require.NoError(t, err)
	assert.Equal(t, "a8m!", v)
	v, err = c.FromStorage([]byte("a8m!"))
	require.NoError(t, err)
	assert.Equal(t, "a8m", v)
}

func TestEqualValues(t *testing.T) {
	ts := time.Now()
	assert.True(t, schema.EqualValues(nil, nil))
	assert.False(t, schema.EqualValues(nil, int64(0)))
	assert.True(t, schema.EqualValues(ts, ts.UTC()))
	assert.True(t, schema.EqualValues([]byte("a"), []byte("a")))
	assert.True(t, schema.EqualValues(int64(1), 1.0))
	assert.True(t, schema.EqualValues(map[string]any{"a": 1.0}, map[string]any{"a": 1.0}))
	assert.False(t, schema.EqualValues("1", int64(1)))
}

func TestColumn_StorageValue(t *testing.T) {
	id := uuid.New()
	v, err := (&schema.Column{Type: schema.TypeUUID}).StorageValue(id)
	require.NoError(t, err)
	assert.Equal(t, id.String(), v)

	v, err = (&schema.Column{Type: schema.TypeJSON}).StorageValue(map[string]any{"a": 1.0})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)
}

func TestColumn_DefaultValue(t *testing.T) {
	_, ok := (&schema.Column{}).DefaultValue()
	assert.False(t, ok)
	v, ok := (&schema.Column{Default: "x"}).DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	v, ok = (&schema.Column{Default: func() any { return 3 }}).DefaultValue()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestIdentifier(t *testing.T) {
	id := uuid.New()
	a := schema.Identifier{"tenant": "t1", "id": int64(1)}
	b := schema.Identifier{"id": int64(1), "tenant": "t1"}
	assert.Equal(t, a.Key(), b.Key())
	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.Key(), schema.Identifier{"id": int64(2), "tenant": "t1"}.Key())
	assert.Equal(t, "id=1,tenant=t1", a.String())

	u1 := schema.Identifier{"id": id}
	u2 := schema.Identifier{"id": id}
	assert.Equal(t, u1.Key(), u2.Key())
	assert.Equal(t, map[string]any{"id": id.String()}, u1.Values())

	assert.Equal(t, schema.Identifier{"id": int64(1)}.Key(), schema.Identifier{"id": 1.0}.Key())
}

func TestEntity_IdentifierOf(t *testing.T) {
	user, post, group, category := blog()
	require.NoError(t, schema.NewRegistry().Register(user, post, group, category))

	r := graft.NewRecord(map[string]any{"id": int32(5), "name": "a8m"})
	id, ok := user.IdentifierOf(r)
	require.True(t, ok)
	assert.Equal(t, schema.Identifier{"id": int64(5)}, id)

	_, ok = user.IdentifierOf(graft.NewRecord(map[string]any{"name": "a8m"}))
	assert.False(t, ok)
	_, ok = user.IdentifierOf(graft.NewRecord(map[string]any{"id": nil}))
	assert.False(t, ok)

	assert.True(t, user.Equal(r, graft.NewRecord(map[string]any{"id": 5})))
	assert.False(t, user.Equal(r, graft.NewRecord(map[string]any{"id": 6})))

	rowID, ok := user.IdentifierOfRow(map[string]any{"id": []byte("5")})
	require.True(t, ok)
	assert.True(t, rowID.Equal(id))
}
