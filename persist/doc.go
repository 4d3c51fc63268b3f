// Package persist plans and executes graph mutations.
//
// A call walks the records reachable from its roots through cascading
// relations and builds one Subject per row identity. The stored rows of the
// subjects are loaded in batches, each subject is resolved to an insert,
// update, remove, soft-remove, recover or no-op, and its column writes are
// computed against the stored row. Writes are then ordered so that no row is
// inserted before the rows its foreign keys point to, and no row is deleted
// after the rows pointing to it. Cycles are broken on a nullable foreign
// key, which is written by a later update.
//
// Everything runs in one transaction:
//
//	p := persist.New(drv, reg)
//	user := graft.NewRecord(map[string]any{"name": "a8m"})
//	post := graft.NewRecord(map[string]any{"title": "hello", "author": user})
//	res, err := p.Save(ctx, "Post", post)
//	if err != nil {
//		return err
//	}
//	fmt.Println(res.Inserted, post.Values()["id"])
package persist
