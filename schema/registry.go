package schema

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/syssam/graft"
)

// Registry holds the metadata of all entities known to a persister. Entities
// are resolved when registered; afterwards the registry is safe for
// concurrent readers.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]*Entity
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[string]*Entity)}
}

// Register adds the given entities and resolves their relations: targets,
// inverse sides, implicit foreign-key columns and junction tables. Entities
// may reference each other and previously registered entities. On error,
// none of the given entities is registered.
func (r *Registry) Register(entities ...*Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make(map[string]*Entity, len(r.entities)+len(entities))
	for name, e := range r.entities {
		all[name] = e
	}
	var errs []error
	for _, e := range entities {
		switch {
		case e == nil || e.Name == "":
			errs = append(errs, errors.New("graft/schema: entity without name"))
			continue
		case all[e.Name] != nil:
			errs = append(errs, fmt.Errorf("graft/schema: duplicate entity %q", e.Name))
			continue
		}
		all[e.Name] = e
		if err := e.init(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	res := &resolver{entities: all}
	// Owning sides first: non-owning sides share their join columns.
	for _, owner := range []bool{true, false} {
		for _, e := range entities {
			for _, rel := range e.Relations {
				if rel.Owner == owner {
					errs = append(errs, res.resolve(e, rel))
				}
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	for _, e := range entities {
		e.index()
		r.entities[e.Name] = e
		r.order = append(r.order, e.Name)
	}
	return nil
}

// Entity returns the metadata of the named entity.
func (r *Registry) Entity(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", graft.ErrUnknownEntity, name)
	}
	return e, nil
}

// MustEntity is like Entity but panics if the entity is not registered.
func (r *Registry) MustEntity(name string) *Entity {
	e, err := r.Entity(name)
	if err != nil {
		panic(err)
	}
	return e
}

// Entities returns all registered entities in registration order.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	es := make([]*Entity, len(r.order))
	for i, name := range r.order {
		es[i] = r.entities[name]
	}
	return es
}

// init validates the entity and fills defaults.
func (e *Entity) init() error {
	if e.Table == "" {
		e.Table = inflect.Tableize(e.Name)
	}
	seen := make(map[string]bool, len(e.Columns)+len(e.Relations))
	var pk int
	for _, c := range e.Columns {
		if seen[c.Name] {
			return fmt.Errorf("graft/schema: %s: duplicate column %q", e.Name, c.Name)
		}
		seen[c.Name] = true
		if c.Primary {
			pk++
			if c.Virtual {
				return fmt.Errorf("graft/schema: %s: primary key %q cannot be virtual", e.Name, c.Name)
			}
		}
		if c.Generated == GenerateUUID && c.Type != TypeUUID && c.Type != TypeString {
			return fmt.Errorf("graft/schema: %s: column %q: uuid generation requires a uuid or string column", e.Name, c.Name)
		}
	}
	if pk == 0 {
		return fmt.Errorf("graft/schema: %s: entity has no primary key", e.Name)
	}
	for _, rel := range e.Relations {
		if seen[rel.Name] {
			return fmt.Errorf("graft/schema: %s: relation %q collides with another property", e.Name, rel.Name)
		}
		seen[rel.Name] = true
		rel.entity = e
	}
	for _, k := range []Kind{KindCreateDate, KindUpdateDate, KindDeleteDate, KindVersion} {
		if n := countFunc(e.Columns, func(c *Column) bool { return c.Kind == k }); n > 1 {
			return fmt.Errorf("graft/schema: %s: %d columns of the same special kind", e.Name, n)
		}
	}
	return nil
}

// index builds the lookup tables of a resolved entity.
func (e *Entity) index() {
	e.columns = make(map[string]*Column, len(e.Columns))
	for _, c := range e.Columns {
		e.columns[c.Name] = c
	}
	e.relations = make(map[string]*Relation, len(e.Relations))
	for _, r := range e.Relations {
		e.relations[r.Name] = r
	}
	e.primary = nil
	for _, c := range e.Columns {
		if c.Primary {
			e.primary = append(e.primary, c)
		}
	}
}

type resolver struct {
	entities map[string]*Entity
}

func (res *resolver) resolve(e *Entity, rel *Relation) error {
	target, ok := res.entities[rel.Target]
	if !ok {
		return fmt.Errorf("graft/schema: %s: unknown target entity %q", rel, rel.Target)
	}
	rel.target = target
	if err := res.resolveInverse(e, rel); err != nil {
		return err
	}
	switch {
	case rel.Kind == M2M && rel.Owner:
		return res.junction(e, rel)
	case rel.Kind == M2M:
		if rel.inverse == nil || !rel.inverse.Owner {
			return fmt.Errorf("graft/schema: %s: inverse many-to-many relation requires an owning side on %s", rel, target.Name)
		}
		rel.Junction = rel.inverse.Junction
	case rel.HoldsForeignKey():
		return res.foreignKey(e, rel)
	default:
		if rel.inverse == nil || !rel.inverse.HoldsForeignKey() {
			return fmt.Errorf("graft/schema: %s: %s relation requires an inverse relation holding the foreign key on %s", rel, rel.Kind, target.Name)
		}
		rel.JoinColumns = rel.inverse.JoinColumns
		rel.Nullable = rel.inverse.Nullable
	}
	return nil
}

func (res *resolver) resolveInverse(e *Entity, rel *Relation) error {
	target := rel.target
	if rel.Inverse != "" {
		inv := target.Relation(rel.Inverse)
		if inv == nil {
			return fmt.Errorf("graft/schema: %s: inverse relation %q not found on %s", rel, rel.Inverse, target.Name)
		}
		if inv.Target != e.Name {
			return fmt.Errorf("graft/schema: %s: inverse relation %s does not target %s", rel, inv, e.Name)
		}
		rel.inverse, inv.inverse = inv, rel
		if inv.Inverse == "" {
			inv.Inverse = rel.Name
		}
		return nil
	}
	if rel.inverse != nil {
		return nil
	}
	for _, inv := range target.Relations {
		if inv.Target == e.Name && inv.Inverse == rel.Name && inv != rel {
			rel.inverse, inv.inverse = inv, rel
			rel.Inverse = inv.Name
			return nil
		}
	}
	return nil
}

// foreignKey resolves the join columns of an owning to-one relation and
// declares implicit foreign-key columns.
func (res *resolver) foreignKey(e *Entity, rel *Relation) error {
	pks := rel.target.PrimaryKeys()
	if len(rel.JoinColumns) == 0 {
		for _, pk := range pks {
			rel.JoinColumns = append(rel.JoinColumns, JoinColumn{
				Name:       fkName(rel.Name, pk.Name),
				Referenced: pk.Name,
			})
		}
	}
	for i, jc := range rel.JoinColumns {
		if jc.Referenced == "" {
			if i >= len(pks) {
				return fmt.Errorf("graft/schema: %s: join column %q has no referenced column", rel, jc.Name)
			}
			rel.JoinColumns[i].Referenced = pks[i].Name
			jc.Referenced = pks[i].Name
		}
		ref := rel.target.Column(jc.Referenced)
		if ref == nil {
			return fmt.Errorf("graft/schema: %s: referenced column %q not found on %s", rel, jc.Referenced, rel.target.Name)
		}
		col := e.Column(jc.Name)
		if col == nil {
			col = &Column{Name: jc.Name, Type: ref.Type}
			e.Columns = append(e.Columns, col)
		}
		if col.Relation != nil && col.Relation != rel {
			return fmt.Errorf("graft/schema: %s: column %q is already used by %s", rel, jc.Name, col.Relation)
		}
		col.Relation, col.Referenced = rel, jc.Referenced
		col.Nullable = rel.Nullable
	}
	return nil
}

// junction resolves the join table of an owning many-to-many relation.
func (res *resolver) junction(e *Entity, rel *Relation) error {
	if rel.Junction == nil {
		rel.Junction = &Junction{}
	}
	j := rel.Junction
	if j.Table == "" {
		j.Table = inflect.Underscore(e.Name) + "_" + inflect.Underscore(rel.Name)
	}
	if len(j.OwnerColumns) == 0 {
		for _, pk := range e.PrimaryKeys() {
			j.OwnerColumns = append(j.OwnerColumns, JoinColumn{Name: fkName(e.Name, pk.Name), Referenced: pk.Name})
		}
	}
	if len(j.InverseColumns) == 0 {
		for _, pk := range rel.target.PrimaryKeys() {
			j.InverseColumns = append(j.InverseColumns, JoinColumn{Name: fkName(rel.Name, pk.Name), Referenced: pk.Name})
		}
	}
	if err := referenceKeys(rel, j.OwnerColumns, e); err != nil {
		return err
	}
	if err := referenceKeys(rel, j.InverseColumns, rel.target); err != nil {
		return err
	}
	cols := j.Columns()
	for i, c := range cols {
		if slices.Contains(cols[i+1:], c) {
			return fmt.Errorf("graft/schema: %s: junction column %q is used twice in %s; name the columns explicitly", rel, c, j.Table)
		}
	}
	return nil
}

// referenceKeys fills the referenced columns of junction columns declared
// without one and checks they exist.
func referenceKeys(rel *Relation, jcs []JoinColumn, e *Entity) error {
	pks := e.PrimaryKeys()
	for i := range jcs {
		if jcs[i].Referenced == "" && i < len(pks) {
			jcs[i].Referenced = pks[i].Name
		}
		if e.Column(jcs[i].Referenced) == nil {
			return fmt.Errorf("graft/schema: %s: junction column %q references unknown column %q on %s", rel, jcs[i].Name, jcs[i].Referenced, e.Name)
		}
	}
	return nil
}

// fkName returns the default foreign-key column name for a relation or
// entity name and the referenced column, e.g. "author" and "id" give
// "author_id", "groups" and "id" give "group_id".
func fkName(name, referenced string) string {
	if referenced == "id" {
		return inflect.ForeignKey(name)
	}
	return inflect.Underscore(inflect.Singularize(name)) + "_" + referenced
}

func countFunc[T any](s []T, f func(T) bool) int {
	var n int
	for _, v := range s {
		if f(v) {
			n++
		}
	}
	return n
}
