package privacy

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/syssam/graft"
)

// Viewer is the principal a persist call runs for.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns "" outside multi-tenant setups.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a copy of ctx carrying the viewer.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a Viewer backed by plain fields.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// viewerRule returns a rule that skips without a viewer and calls fn with
// it otherwise.
func viewerRule(fn func(context.Context, Viewer, graft.Mutation) error) MutationRule {
	return MutationRuleFunc(func(ctx context.Context, m graft.Mutation) error {
		v := ViewerFromContext(ctx)
		if v == nil {
			return Skip
		}
		return fn(ctx, v, m)
	})
}

// DenyIfNoViewer denies writes made without a viewer. It usually opens a
// policy:
//
//	privacy.MutationPolicy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasRole("admin"),
//		privacy.IsOwner("author_id"),
//		privacy.AlwaysDenyRule(),
//	}
func DenyIfNoViewer() MutationRule {
	return ContextMutationRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("graft/privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows writes made by a viewer with the role.
func HasRole(role string) MutationRule {
	return HasAnyRole(role)
}

// HasAnyRole allows writes made by a viewer with one of the roles.
func HasAnyRole(roles ...string) MutationRule {
	return viewerRule(func(_ context.Context, v Viewer, _ graft.Mutation) error {
		if slices.ContainsFunc(v.GetRoles(), func(r string) bool { return slices.Contains(roles, r) }) {
			return Allow
		}
		return Skip
	})
}

// IsOwner allows writes of rows whose column holds the id of the viewer.
// The column is read from the values the write sets, then from the
// in-memory record, so updates that leave the owner unchanged match too.
func IsOwner(column string) MutationRule {
	return viewerRule(func(_ context.Context, v Viewer, m graft.Mutation) error {
		if owner, ok := columnValue(m, column); ok && owner != nil && idString(owner) == v.GetID() {
			return Allow
		}
		return Skip
	})
}

// TenantRule keeps writes inside the tenant of the viewer: it allows rows
// whose column matches the tenant and denies every other row that has the
// column. Viewers without a tenant and rows without the column are skipped.
func TenantRule(column string) MutationRule {
	return viewerRule(func(_ context.Context, v Viewer, m graft.Mutation) error {
		tenant := v.GetTenantID()
		if tenant == "" {
			return Skip
		}
		value, ok := columnValue(m, column)
		switch {
		case !ok:
			return Skip
		case value != nil && idString(value) == tenant:
			return Allow
		}
		return Denyf("graft/privacy: %s is outside tenant %q", m.Type(), tenant)
	})
}

func columnValue(m graft.Mutation, column string) (any, bool) {
	if v, ok := m.Field(column); ok {
		return v, true
	}
	return m.Record().Get(column)
}

// idString formats an identifier for comparison with viewer ids.
func idString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(v)
}
