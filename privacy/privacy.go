package privacy

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/syssam/graft"
)

// Policy decision sentinel errors. Rules return them, possibly wrapped, to
// end or continue the evaluation of a policy:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow ends the evaluation with an allow decision.
	Allow = errors.New("graft/privacy: allow rule")

	// Deny ends the evaluation with a deny decision.
	Deny = errors.New("graft/privacy: deny rule")

	// Skip continues the evaluation with the next rule.
	Skip = errors.New("graft/privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision.
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

type (
	// MutationRule decides whether a planned write is allowed.
	MutationRule interface {
		EvalMutation(context.Context, graft.Mutation) error
	}

	// MutationPolicy evaluates its rules in order until one returns a
	// decision other than Skip.
	MutationPolicy []MutationRule
)

// MutationRuleFunc is an adapter which allows the use of ordinary functions
// as mutation rules.
type MutationRuleFunc func(context.Context, graft.Mutation) error

// EvalMutation returns f(ctx, m).
func (f MutationRuleFunc) EvalMutation(ctx context.Context, m graft.Mutation) error {
	return f(ctx, m)
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() MutationRule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() MutationRule {
	return fixedDecision{Deny}
}

// ContextMutationRule creates a rule from a function of the context only.
// Returning nil is equivalent to returning Skip.
func ContextMutationRule(eval func(context.Context) error) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, _ graft.Mutation) error {
		return eval(ctx)
	})
}

// OnMutationOperation evaluates the given rule only on the given operations.
func OnMutationOperation(rule MutationRule, op graft.Op) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m graft.Mutation) error {
		if m.Op().Is(op) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// OnEntity evaluates the given rule only on writes of the named entities.
func OnEntity(rule MutationRule, names ...string) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m graft.Mutation) error {
		if slices.Contains(names, m.Type()) {
			return rule.EvalMutation(ctx, m)
		}
		return Skip
	})
}

// DenyMutationOperationRule returns a rule denying the given operations.
func DenyMutationOperationRule(op graft.Op) MutationRule {
	rule := MutationRuleFunc(func(_ context.Context, m graft.Mutation) error {
		return Denyf("graft/privacy: operation %s is not allowed", m.Op())
	})
	return OnMutationOperation(rule, op)
}

// AllowMutationOperationRule returns a rule allowing the given operations.
func AllowMutationOperationRule(op graft.Op) MutationRule {
	rule := MutationRuleFunc(func(context.Context, graft.Mutation) error {
		return Allow
	})
	return OnMutationOperation(rule, op)
}

// EvalMutation evaluates a mutation against the policy.
func (policy MutationPolicy) EvalMutation(ctx context.Context, m graft.Mutation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range policy {
		switch decision := rule.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		default:
			return decision
		}
	}
	return nil
}

// Policies combines the policies of several sources (for example an entity
// and its mixins) into a single graft.Policy. The first Allow ends the
// evaluation with a nil error.
type Policies []graft.Policy

// NewPolicies returns the non-nil policies as one graft.Policy.
func NewPolicies(policies ...graft.Policy) graft.Policy {
	ps := make(Policies, 0, len(policies))
	for _, p := range policies {
		if p != nil {
			ps = append(ps, p)
		}
	}
	return ps
}

// EvalMutation evaluates the mutation policies.
func (policies Policies) EvalMutation(ctx context.Context, m graft.Mutation) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, policy := range policies {
		switch decision := policy.EvalMutation(ctx, m); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

type decisionCtxKey struct{}

// DecisionContext returns a context carrying a decision that overrides the
// evaluation of every policy, e.g. for system jobs.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context. An
// Allow decision is returned as nil.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) EvalMutation(context.Context, graft.Mutation) error {
	return f.decision
}

var (
	_ graft.Policy = MutationPolicy(nil)
	_ graft.Policy = Policies(nil)
)
