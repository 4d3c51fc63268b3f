package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/graft"
	"github.com/syssam/graft/privacy"
)

// mockMutation implements graft.Mutation for testing.
type mockMutation struct {
	op     graft.Op
	typ    string
	fields map[string]any
}

func (m *mockMutation) Op() graft.Op          { return m.op }
func (m *mockMutation) Type() string          { return m.typ }
func (m *mockMutation) Record() *graft.Record { return graft.NewRecord(m.fields) }
func (m *mockMutation) Fields() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	return names
}
func (m *mockMutation) Field(name string) (any, bool) {
	v, ok := m.fields[name]
	return v, ok
}

func TestDecisionErrors(t *testing.T) {
	tests := []struct {
		name              string
		decision          error
		allow, deny, skip bool
	}{
		{name: "allow", decision: privacy.Allow, allow: true},
		{name: "deny", decision: privacy.Deny, deny: true},
		{name: "skip", decision: privacy.Skip, skip: true},
		{name: "allowf", decision: privacy.Allowf("user %s allowed", "admin"), allow: true},
		{name: "denyf", decision: privacy.Denyf("user %s denied", "guest"), deny: true},
		{name: "skipf", decision: privacy.Skipf("rule %d skipped", 1), skip: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allow, errors.Is(tt.decision, privacy.Allow))
			assert.Equal(t, tt.deny, errors.Is(tt.decision, privacy.Deny))
			assert.Equal(t, tt.skip, errors.Is(tt.decision, privacy.Skip))
		})
	}
	assert.Equal(t, "user guest denied: graft/privacy: deny rule", privacy.Denyf("user %s denied", "guest").Error())
}

func TestAlwaysRules(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, privacy.AlwaysAllowRule().EvalMutation(ctx, &mockMutation{}), privacy.Allow)
	assert.ErrorIs(t, privacy.AlwaysDenyRule().EvalMutation(ctx, &mockMutation{}), privacy.Deny)
}

func TestContextMutationRule(t *testing.T) {
	type key struct{}
	rule := privacy.ContextMutationRule(func(ctx context.Context) error {
		if ctx.Value(key{}) == "admin" {
			return privacy.Allow
		}
		return privacy.Skip
	})
	assert.ErrorIs(t, rule.EvalMutation(context.WithValue(context.Background(), key{}, "admin"), &mockMutation{}), privacy.Allow)
	assert.ErrorIs(t, rule.EvalMutation(context.Background(), &mockMutation{}), privacy.Skip)
}

func TestOnMutationOperation(t *testing.T) {
	rule := privacy.OnMutationOperation(privacy.AlwaysDenyRule(), graft.OpRemove|graft.OpSoftRemove)
	ctx := context.Background()
	tests := []struct {
		op   graft.Op
		want error
	}{
		{graft.OpInsert, privacy.Skip},
		{graft.OpUpdate, privacy.Skip},
		{graft.OpRemove, privacy.Deny},
		{graft.OpSoftRemove, privacy.Deny},
		{graft.OpRecover, privacy.Skip},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			assert.ErrorIs(t, rule.EvalMutation(ctx, &mockMutation{op: tt.op}), tt.want)
		})
	}
}

func TestOnEntity(t *testing.T) {
	rule := privacy.OnEntity(privacy.AlwaysDenyRule(), "User", "Group")
	ctx := context.Background()
	assert.ErrorIs(t, rule.EvalMutation(ctx, &mockMutation{typ: "User"}), privacy.Deny)
	assert.ErrorIs(t, rule.EvalMutation(ctx, &mockMutation{typ: "Group"}), privacy.Deny)
	assert.ErrorIs(t, rule.EvalMutation(ctx, &mockMutation{typ: "Post"}), privacy.Skip)
}

func TestOperationRules(t *testing.T) {
	ctx := context.Background()
	deny := privacy.DenyMutationOperationRule(graft.OpRemove)
	err := deny.EvalMutation(ctx, &mockMutation{op: graft.OpRemove})
	require.ErrorIs(t, err, privacy.Deny)
	assert.Contains(t, err.Error(), "operation OpRemove is not allowed")
	assert.ErrorIs(t, deny.EvalMutation(ctx, &mockMutation{op: graft.OpInsert}), privacy.Skip)

	allow := privacy.AllowMutationOperationRule(graft.OpInsert)
	assert.ErrorIs(t, allow.EvalMutation(ctx, &mockMutation{op: graft.OpInsert}), privacy.Allow)
	assert.ErrorIs(t, allow.EvalMutation(ctx, &mockMutation{op: graft.OpUpdate}), privacy.Skip)
}

func TestMutationPolicy(t *testing.T) {
	ctx := context.Background()
	t.Run("first_decision_wins", func(t *testing.T) {
		policy := privacy.MutationPolicy{
			privacy.MutationRuleFunc(func(context.Context, graft.Mutation) error { return nil }),
			privacy.MutationRuleFunc(func(context.Context, graft.Mutation) error { return privacy.Skip }),
			privacy.AlwaysDenyRule(),
			privacy.AlwaysAllowRule(),
		}
		assert.ErrorIs(t, policy.EvalMutation(ctx, &mockMutation{}), privacy.Deny)
	})
	t.Run("all_skip", func(t *testing.T) {
		policy := privacy.MutationPolicy{
			privacy.MutationRuleFunc(func(context.Context, graft.Mutation) error { return privacy.Skip }),
		}
		assert.NoError(t, policy.EvalMutation(ctx, &mockMutation{}))
	})
	t.Run("custom_error", func(t *testing.T) {
		boom := errors.New("boom")
		policy := privacy.MutationPolicy{
			privacy.MutationRuleFunc(func(context.Context, graft.Mutation) error { return boom }),
		}
		assert.ErrorIs(t, policy.EvalMutation(ctx, &mockMutation{}), boom)
	})
	t.Run("context_decision", func(t *testing.T) {
		policy := privacy.MutationPolicy{privacy.AlwaysDenyRule()}
		assert.NoError(t, policy.EvalMutation(privacy.DecisionContext(ctx, privacy.Allow), &mockMutation{}))
	})
}

func TestPolicies(t *testing.T) {
	ctx := context.Background()
	var calls []string
	rule := func(name string, decision error) graft.Policy {
		return privacy.MutationPolicy{privacy.MutationRuleFunc(func(context.Context, graft.Mutation) error {
			calls = append(calls, name)
			return decision
		})}
	}

	policy := privacy.NewPolicies(nil, rule("mixin", privacy.Skip), rule("entity", privacy.Allow), rule("never", privacy.Deny))
	require.NoError(t, policy.EvalMutation(ctx, &mockMutation{}))
	assert.Equal(t, []string{"mixin", "entity"}, calls)

	calls = nil
	policy = privacy.NewPolicies(rule("mixin", privacy.Denyf("tenant")), rule("entity", privacy.Allow))
	assert.ErrorIs(t, policy.EvalMutation(ctx, &mockMutation{}), privacy.Deny)
	assert.Equal(t, []string{"mixin"}, calls)

	calls = nil
	assert.NoError(t, policy.EvalMutation(privacy.DecisionContext(ctx, privacy.Allow), &mockMutation{}))
	assert.Empty(t, calls)
}

func TestDecisionContext(t *testing.T) {
	ctx := context.Background()

	_, ok := privacy.DecisionFromContext(ctx)
	assert.False(t, ok)

	assert.Equal(t, ctx, privacy.DecisionContext(ctx, nil))
	assert.Equal(t, ctx, privacy.DecisionContext(ctx, privacy.Skip))

	decision, ok := privacy.DecisionFromContext(privacy.DecisionContext(ctx, privacy.Allow))
	assert.True(t, ok)
	assert.NoError(t, decision)

	decision, ok = privacy.DecisionFromContext(privacy.DecisionContext(ctx, privacy.Deny))
	assert.True(t, ok)
	assert.ErrorIs(t, decision, privacy.Deny)
}
