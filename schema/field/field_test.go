package field_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/syssam/graft/schema"
	"github.com/syssam/graft/schema/field"
)

func TestInt(t *testing.T) {
	fd := field.Int("id").Primary().Increment().Descriptor()
	assert.Equal(t, "id", fd.Name)
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.True(t, fd.Primary)
	assert.Equal(t, schema.GenerateIncrement, fd.Generated)
	assert.False(t, fd.Nullable)

	fd = field.Int64("age").Default(10).Nullable().Descriptor()
	assert.Equal(t, field.TypeInt, fd.Type)
	assert.Equal(t, 10, fd.Default)
	assert.True(t, fd.Nullable)
}

func TestTypes(t *testing.T) {
	tests := []struct {
		builder *field.Builder
		want    field.Type
	}{
		{field.Bool("active"), field.TypeBool},
		{field.Uint("count"), field.TypeUint},
		{field.Float("price"), field.TypeFloat},
		{field.String("name"), field.TypeString},
		{field.Text("body"), field.TypeString},
		{field.Bytes("blob"), field.TypeBytes},
		{field.Time("at"), field.TypeTime},
		{field.UUID("id"), field.TypeUUID},
		{field.JSON("doc"), field.TypeJSON},
		{field.Enum("status", "on", "off"), field.TypeEnum},
	}
	for _, tt := range tests {
		fd := tt.builder.Descriptor()
		assert.Equal(t, tt.want, fd.Type, fd.Name)
	}
	assert.Equal(t, []string{"on", "off"}, field.Enum("status", "on", "off").Descriptor().Enums)
}

func TestSpecialColumns(t *testing.T) {
	fd := field.Time("created_at").CreateDate().Descriptor()
	assert.Equal(t, schema.KindCreateDate, fd.Kind)
	assert.True(t, fd.Immutable)

	fd = field.Time("updated_at").UpdateDate().Descriptor()
	assert.Equal(t, schema.KindUpdateDate, fd.Kind)

	fd = field.Time("deleted_at").DeleteDate().Descriptor()
	assert.Equal(t, schema.KindDeleteDate, fd.Kind)
	assert.True(t, fd.Nullable)

	fd = field.Int("version").Version().Descriptor()
	assert.Equal(t, schema.KindVersion, fd.Kind)

	fd = field.String("full_name").Virtual().Descriptor()
	assert.True(t, fd.Virtual)
}

func TestDefaults(t *testing.T) {
	fd := field.UUID("id").Primary().GenerateUUID().Descriptor()
	assert.Equal(t, schema.GenerateUUID, fd.Generated)

	fd = field.Time("seen_at").DefaultFunc(field.Now).Descriptor()
	v, ok := fd.DefaultValue()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), v.(time.Time), time.Minute)

	fd = field.UUID("token").DefaultFunc(field.NewUUID).Descriptor()
	v, _ = fd.DefaultValue()
	assert.IsType(t, uuid.UUID{}, v)
}
