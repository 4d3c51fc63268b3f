package privacy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft/privacy"
)

func TestViewerContext(t *testing.T) {
	viewer := &privacy.SimpleViewer{UserID: "user-123", Roles: []string{"admin"}, TenantID: "acme"}
	ctx := privacy.WithViewer(context.Background(), viewer)

	got := privacy.ViewerFromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "user-123", got.GetID())
	assert.Equal(t, []string{"admin"}, got.GetRoles())
	assert.Equal(t, "acme", got.GetTenantID())

	assert.Nil(t, privacy.ViewerFromContext(context.Background()))
}

func TestDenyIfNoViewer(t *testing.T) {
	rule := privacy.DenyIfNoViewer()
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), &mockMutation{}), privacy.Deny)

	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1"})
	assert.ErrorIs(t, rule.EvalMutation(ctx, &mockMutation{}), privacy.Skip)
}

func TestRoles(t *testing.T) {
	tests := []struct {
		name   string
		rule   privacy.MutationRule
		viewer *privacy.SimpleViewer
		want   error
	}{
		{name: "has_role", rule: privacy.HasRole("admin"), viewer: &privacy.SimpleViewer{Roles: []string{"user", "admin"}}, want: privacy.Allow},
		{name: "missing_role", rule: privacy.HasRole("admin"), viewer: &privacy.SimpleViewer{Roles: []string{"user"}}, want: privacy.Skip},
		{name: "no_viewer", rule: privacy.HasRole("admin"), want: privacy.Skip},
		{name: "has_any_role", rule: privacy.HasAnyRole("admin", "moderator"), viewer: &privacy.SimpleViewer{Roles: []string{"moderator"}}, want: privacy.Allow},
		{name: "has_none", rule: privacy.HasAnyRole("admin", "moderator"), viewer: &privacy.SimpleViewer{Roles: []string{"user"}}, want: privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			assert.ErrorIs(t, tt.rule.EvalMutation(ctx, &mockMutation{}), tt.want)
		})
	}
}

func TestIsOwner(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		fields map[string]any
		viewer *privacy.SimpleViewer
		want   error
	}{
		{name: "string_id", fields: map[string]any{"owner_id": "user-123"}, viewer: &privacy.SimpleViewer{UserID: "user-123"}, want: privacy.Allow},
		{name: "int64_id", fields: map[string]any{"owner_id": int64(123)}, viewer: &privacy.SimpleViewer{UserID: "123"}, want: privacy.Allow},
		{name: "uuid_id", fields: map[string]any{"owner_id": id}, viewer: &privacy.SimpleViewer{UserID: id.String()}, want: privacy.Allow},
		{name: "other_owner", fields: map[string]any{"owner_id": "user-456"}, viewer: &privacy.SimpleViewer{UserID: "user-123"}, want: privacy.Skip},
		{name: "null_owner", fields: map[string]any{"owner_id": nil}, viewer: &privacy.SimpleViewer{UserID: "user-123"}, want: privacy.Skip},
		{name: "no_field", viewer: &privacy.SimpleViewer{UserID: "user-123"}, want: privacy.Skip},
		{name: "no_viewer", fields: map[string]any{"owner_id": "user-123"}, want: privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			err := privacy.IsOwner("owner_id").EvalMutation(ctx, &mockMutation{fields: tt.fields})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTenantRule(t *testing.T) {
	rule := privacy.TenantRule("tenant_id")
	acme := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", TenantID: "acme"})

	assert.ErrorIs(t, rule.EvalMutation(acme, &mockMutation{typ: "Post", fields: map[string]any{"tenant_id": "acme"}}), privacy.Allow)

	err := rule.EvalMutation(acme, &mockMutation{typ: "Post", fields: map[string]any{"tenant_id": "globex"}})
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), `Post is outside tenant "acme"`)

	assert.ErrorIs(t, rule.EvalMutation(acme, &mockMutation{fields: map[string]any{"tenant_id": nil}}), privacy.Deny)
	assert.ErrorIs(t, rule.EvalMutation(acme, &mockMutation{}), privacy.Skip)

	noTenant := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1"})
	assert.ErrorIs(t, rule.EvalMutation(noTenant, &mockMutation{fields: map[string]any{"tenant_id": "acme"}}), privacy.Skip)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), &mockMutation{}), privacy.Skip)
}

func TestPolicyChain(t *testing.T) {
	policy := privacy.MutationPolicy{
		privacy.DenyIfNoViewer(),
		privacy.HasRole("admin"),
		privacy.IsOwner("owner_id"),
		privacy.AlwaysDenyRule(),
	}
	own := &mockMutation{fields: map[string]any{"owner_id": "7"}}

	assert.ErrorIs(t, policy.EvalMutation(context.Background(), own), privacy.Deny)
	admin := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", Roles: []string{"admin"}})
	assert.ErrorIs(t, policy.EvalMutation(admin, own), privacy.Allow)
	owner := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "7"})
	assert.ErrorIs(t, policy.EvalMutation(owner, own), privacy.Allow)
	other := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "8"})
	assert.ErrorIs(t, policy.EvalMutation(other, own), privacy.Deny)
}
