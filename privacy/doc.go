// Package privacy provides the rules and policies evaluated by the persister
// before any row is written.
//
// A policy is attached to an entity and sees every planned write of that
// entity as a graft.Mutation: its resolved operation, the entity name and
// the column values the write will set. Rules return one of three
// decisions:
//
//   - Allow: the write is allowed and the evaluation stops
//   - Deny: the persist call fails with a graft.PrivacyError
//   - Skip: the next rule decides
//
// A policy whose rules all skip allows the write.
//
//	post := schema.NewEntity("Post").
//		Mixin(mixin.ID{}, mixin.TenantID{}).
//		Fields(field.String("title")).
//		Privacy(privacy.MutationPolicy{
//			privacy.DenyIfNoViewer(),
//			privacy.HasRole("admin"),
//			privacy.TenantRule("tenant_id"),
//			privacy.AlwaysDenyRule(),
//		})
//
// The viewer is carried by the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{
//		UserID:   "42",
//		Roles:    []string{"editor"},
//		TenantID: "acme",
//	})
//	_, err := p.Save(ctx, "Post", post)
//	if graft.IsPrivacyError(err) {
//		// denied before anything was written
//	}
//
// DecisionContext overrides every policy for the calls made with the
// returned context, which is how system jobs bypass them.
package privacy
