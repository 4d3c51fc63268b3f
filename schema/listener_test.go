package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

type auditListener struct {
	calls []string
}

func (l *auditListener) BeforeInsert(context.Context, *schema.Event) error {
	l.calls = append(l.calls, "before insert")
	return nil
}

func (l *auditListener) AfterRemove(context.Context, *schema.Event) error {
	l.calls = append(l.calls, "after remove")
	return nil
}

func TestFireListener(t *testing.T) {
	ctx := context.Background()
	ev := &schema.Event{Op: graft.OpInsert, Entity: graft.NewRecord(nil)}

	l := &auditListener{}
	require.NoError(t, schema.FireListener(ctx, l, graft.OpInsert, true, ev))
	require.NoError(t, schema.FireListener(ctx, l, graft.OpInsert, false, ev))
	require.NoError(t, schema.FireListener(ctx, l, graft.OpRemove, false, ev))
	assert.Equal(t, []string{"before insert", "after remove"}, l.calls)

	var fired bool
	fn := schema.BeforeUpdate(func(_ context.Context, e *schema.Event) error {
		fired = true
		e.Entity.Set("touched", true)
		return nil
	})
	require.NoError(t, schema.FireListener(ctx, fn, graft.OpUpdate, false, ev))
	assert.False(t, fired)
	require.NoError(t, schema.FireListener(ctx, fn, graft.OpUpdate, true, ev))
	assert.True(t, fired)
	assert.True(t, ev.Entity.Has("touched"))
}

func TestHasListener(t *testing.T) {
	listeners := []schema.Listener{&auditListener{}, schema.AfterRecover(func(context.Context, *schema.Event) error { return nil })}
	assert.True(t, schema.HasListener(listeners, graft.OpInsert, true))
	assert.False(t, schema.HasListener(listeners, graft.OpInsert, false))
	assert.True(t, schema.HasListener(listeners, graft.OpRemove, false))
	assert.True(t, schema.HasListener(listeners, graft.OpRecover, false))
	assert.False(t, schema.HasListener(listeners, graft.OpSoftRemove, true))
	assert.False(t, schema.HasListener(nil, graft.OpUpdate, true))
}
