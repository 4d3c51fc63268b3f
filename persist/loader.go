package persist

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/graft"
	"github.com/syssam/graft/contrib/dataloader"
	"github.com/syssam/graft/dialect"
	"github.com/syssam/graft/schema"
)

// loader loads the stored rows of subjects and the ids of their loaded
// relations. Keys are batched per entity type (or relation) and chunked,
// so each chunk costs exactly one query.
type loader struct {
	runner      Runner
	session     dialect.ExecQuerier
	op          graft.Op
	batchSize   int
	concurrency int
}

// group is a set of subjects sharing the metadata (and relation) loaded by
// the same queries.
type group struct {
	meta     *schema.Entity
	rel      *schema.Relation
	subjects []*Subject
}

// relationResult holds the loaded relation ids of one group.
type relationResult map[*Subject][]schema.Identifier

func (l *loader) load(ctx context.Context, subjects []*Subject) error {
	if err := l.loadEntities(ctx, subjects); err != nil {
		return err
	}
	return l.loadRelations(ctx, subjects)
}

// loadEntities loads the stored row of every subject with an identifier.
// Unmatched subjects are marked loaded with a nil database entity.
func (l *loader) loadEntities(ctx context.Context, subjects []*Subject) error {
	var groups []*group
	byMeta := make(map[*schema.Entity]*group)
	for _, s := range subjects {
		if s.Identifier == nil || s.databaseLoaded || s.derived {
			continue
		}
		g, ok := byMeta[s.Metadata]
		if !ok {
			g = &group{meta: s.Metadata}
			byMeta[s.Metadata] = g
			groups = append(groups, g)
		}
		g.subjects = append(g.subjects, s)
	}
	results := make([]map[string]*graft.Record, len(groups))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(l.concurrency)
	for i, g := range groups {
		eg.Go(func() error {
			rows, err := l.loadRows(ctx, g)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, g := range groups {
		for _, s := range g.subjects {
			s.DatabaseEntity = results[i][s.Identifier.Key()]
			s.databaseLoaded = true
		}
	}
	return nil
}

func (l *loader) loadRows(ctx context.Context, g *group) (map[string]*graft.Record, error) {
	var columns []string
	for _, c := range g.meta.PersistedColumns() {
		columns = append(columns, c.Name)
	}
	ids := make([]schema.Identifier, len(g.subjects))
	for i, s := range g.subjects {
		ids[i] = s.Identifier
	}
	ids = dataloader.Unique(ids, schema.Identifier.Key)
	keys := make([]map[string]any, len(ids))
	for i, id := range ids {
		keys[i] = id.Values()
	}
	rows, err := dataloader.Batch(ctx, keys, l.batchSize, 1, func(ctx context.Context, chunk []map[string]any) ([]map[string]any, error) {
		return l.runner.Select(ctx, l.session, g.meta.Table, columns, chunk)
	})
	if err != nil {
		return nil, err
	}
	records := make([]*graft.Record, 0, len(rows))
	for _, row := range rows {
		row = normalizeRow(g.meta, row)
		if _, ok := g.meta.IdentifierOfRow(row); ok {
			records = append(records, graft.NewRecord(row))
		}
	}
	return dataloader.IndexByKey(records, func(r *graft.Record) string {
		id, _ := g.meta.IdentifierOfRow(r.Values())
		return id.Key()
	}), nil
}

// loadRelations loads the ids related to stored subjects through junction
// tables and inverse foreign keys.
func (l *loader) loadRelations(ctx context.Context, subjects []*Subject) error {
	var groups []*group
	byRel := make(map[*schema.Relation]*group)
	for _, s := range subjects {
		if s.DatabaseEntity == nil || s.derived {
			continue
		}
		for _, rel := range s.Metadata.Relations {
			if !l.wants(s, rel) {
				continue
			}
			g, ok := byRel[rel]
			if !ok {
				g = &group{meta: s.Metadata, rel: rel}
				byRel[rel] = g
				groups = append(groups, g)
			}
			g.subjects = append(g.subjects, s)
		}
	}
	results := make([]relationResult, len(groups))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(l.concurrency)
	for i, g := range groups {
		eg.Go(func() error {
			var (
				res relationResult
				err error
			)
			if g.rel.Kind == schema.M2M {
				res, err = l.loadJunction(ctx, g)
			} else {
				res, err = l.loadInverse(ctx, g)
			}
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	for i, g := range groups {
		for _, s := range g.subjects {
			if s.relationIDs == nil {
				s.relationIDs = make(map[*schema.Relation][]schema.Identifier)
			}
			s.relationIDs[g.rel] = results[i][s]
		}
	}
	return nil
}

// wants reports whether the relation ids of the subject must be loaded.
// Removes always load junction ids; other operations only load relations
// the in-memory records define.
func (l *loader) wants(s *Subject, rel *schema.Relation) bool {
	if rel.Kind == schema.M2M && l.op == graft.OpRemove {
		return true
	}
	if l.op == graft.OpRemove || rel.Kind != schema.M2M && !inverseSide(rel) {
		return false
	}
	_, ok := s.value(rel.Name)
	return ok
}

// loadJunction loads the junction rows of a many-to-many relation.
func (l *loader) loadJunction(ctx context.Context, g *group) (relationResult, error) {
	self, other := g.rel.JunctionColumns()
	target := g.rel.TargetEntity()
	columns := append(joinNames(self), joinNames(other)...)
	owners, keys := ownerKeys(g, self)
	rows, err := dataloader.Batch(ctx, keys, l.batchSize, 1, func(ctx context.Context, chunk []map[string]any) ([]map[string]any, error) {
		return l.runner.Select(ctx, l.session, g.rel.Junction.Table, columns, chunk)
	})
	if err != nil {
		return nil, err
	}
	res := make(relationResult)
	for _, row := range rows {
		key, ok := rowKey(g.meta, self, row)
		if !ok {
			continue
		}
		id := make(schema.Identifier, len(other))
		for _, jc := range other {
			if c := target.Column(jc.Referenced); c != nil {
				id[jc.Referenced] = c.Normalize(row[jc.Name])
			}
		}
		for _, s := range owners[key] {
			res[s] = append(res[s], id)
		}
	}
	return res, nil
}

// loadInverse loads the primary keys of the target rows whose foreign key
// points to the subjects.
func (l *loader) loadInverse(ctx context.Context, g *group) (relationResult, error) {
	target := g.rel.TargetEntity()
	jcs := g.rel.JoinColumns
	columns := target.PrimaryKeyNames()
	for _, jc := range jcs {
		columns = appendUnique(columns, jc.Name)
	}
	owners, keys := ownerKeys(g, jcs)
	rows, err := dataloader.Batch(ctx, keys, l.batchSize, 1, func(ctx context.Context, chunk []map[string]any) ([]map[string]any, error) {
		return l.runner.Select(ctx, l.session, target.Table, columns, chunk)
	})
	if err != nil {
		return nil, err
	}
	res := make(relationResult)
	for _, row := range rows {
		key, ok := rowKey(g.meta, jcs, row)
		if !ok {
			continue
		}
		id, ok := target.IdentifierOfRow(normalizeRow(target, row))
		if !ok {
			continue
		}
		for _, s := range owners[key] {
			res[s] = append(res[s], id)
		}
	}
	return res, nil
}

// ownerKeys returns the lookup keys of the group subjects on the given
// join columns, whose referenced columns live on the subjects.
func ownerKeys(g *group, jcs []schema.JoinColumn) (map[string][]*Subject, []map[string]any) {
	refs := make([]string, len(jcs))
	for i, jc := range jcs {
		refs[i] = jc.Referenced
	}
	owners := make(map[string][]*Subject)
	var keys []map[string]any
	for _, s := range g.subjects {
		ref, ok := s.refValues(refs)
		if !ok {
			continue
		}
		key := make(schema.Identifier, len(jcs))
		for _, jc := range jcs {
			key[jc.Name] = ref[jc.Referenced]
		}
		k := key.Key()
		if _, ok := owners[k]; !ok {
			keys = append(keys, key.Values())
		}
		owners[k] = append(owners[k], s)
	}
	return owners, keys
}

// rowKey returns the owner key of a loaded row, normalized with the types
// of the referenced owner columns.
func rowKey(owner *schema.Entity, jcs []schema.JoinColumn, row map[string]any) (string, bool) {
	key := make(schema.Identifier, len(jcs))
	for _, jc := range jcs {
		c := owner.Column(jc.Referenced)
		if c == nil {
			return "", false
		}
		v := c.Normalize(row[jc.Name])
		if v == nil {
			return "", false
		}
		key[jc.Name] = v
	}
	return key.Key(), true
}

// normalizeRow converts the values of a stored row to their normalized form.
func normalizeRow(meta *schema.Entity, row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if c := meta.Column(k); c != nil {
			v = c.Normalize(v)
		}
		out[k] = v
	}
	return out
}

func joinNames(jcs []schema.JoinColumn) []string {
	names := make([]string, len(jcs))
	for i, jc := range jcs {
		names[i] = jc.Name
	}
	return names
}

func appendUnique(s []string, v string) []string {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}
