package persist

import (
	"cmp"
	"container/heap"
	"slices"
	"strings"

	"github.com/syssam/graft"
	"github.com/syssam/graft/schema"
)

// opKind is the kind of an executed operation. The order of the constants is
// the order of the execution phases.
type opKind uint8

const (
	opInsert opKind = iota
	opUpdate
	opJunction
	opSoftRemove
	opRecover
	opRemove
)

var opKindNames = [...]string{
	opInsert:     "insert",
	opUpdate:     "update",
	opJunction:   "junction",
	opSoftRemove: "soft-remove",
	opRecover:    "recover",
	opRemove:     "remove",
}

func (k opKind) String() string { return opKindNames[k] }

// operation is a single step of the execution plan. changes is set on the
// updates written by the sorter itself (deferred foreign keys and foreign
// keys cleared to break a remove cycle); other operations write the
// changes of their subject.
type operation struct {
	kind    opKind
	subject *Subject
	changes []ChangeMap
}

// internal reports whether the operation was added by the sorter.
func (o operation) internal() bool { return o.changes != nil }

// dep is an edge of the dependency graph: from must be written before to.
// The foreign-key changes are held by holder, which is to for inserts and
// from for removes.
type dep struct {
	from, to *Subject
	holder   *Subject
	changes  []ChangeMap
	nullable bool
	broken   bool
}

func (d *dep) columns() []string {
	cols := make([]string, len(d.changes))
	for i, cm := range d.changes {
		cols[i] = d.holder.Metadata.Name + "." + cm.Column.Name
	}
	return cols
}

// graph is the dependency graph of one phase.
type graph struct {
	nodes []*Subject
	out   map[*Subject][]*dep
	in    map[*Subject][]*dep
}

func newGraph(nodes []*Subject) *graph {
	return &graph{
		nodes: nodes,
		out:   make(map[*Subject][]*dep),
		in:    make(map[*Subject][]*dep),
	}
}

func (g *graph) add(d *dep) {
	g.out[d.from] = append(g.out[d.from], d)
	g.in[d.to] = append(g.in[d.to], d)
}

// sort orders the nodes with Kahn's algorithm, taking the node with the
// lowest builder index among the ready ones. When only cycles remain, the
// first nullable edge of the cycle reached from the lowest remaining node
// is broken and returned.
func (g *graph) sort() ([]*Subject, []*dep, error) {
	var (
		order  []*Subject
		broken []*dep
		ready  subjectHeap
		done   = make(map[*Subject]bool, len(g.nodes))
		indeg  = make(map[*Subject]int, len(g.nodes))
	)
	for _, n := range g.nodes {
		indeg[n] = len(g.in[n])
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}
	heap.Init(&ready)
	for len(order) < len(g.nodes) {
		if ready.Len() == 0 {
			d, err := g.breakCycle(done)
			if err != nil {
				return nil, nil, err
			}
			d.broken = true
			broken = append(broken, d)
			if indeg[d.to]--; indeg[d.to] == 0 {
				heap.Push(&ready, d.to)
			}
			continue
		}
		n := heap.Pop(&ready).(*Subject)
		done[n] = true
		order = append(order, n)
		for _, d := range g.out[n] {
			if d.broken {
				continue
			}
			if indeg[d.to]--; indeg[d.to] == 0 {
				heap.Push(&ready, d.to)
			}
		}
	}
	return order, broken, nil
}

// breakCycle walks incoming edges backwards from the lowest remaining node
// until a node repeats, and returns the first nullable edge of the cycle.
func (g *graph) breakCycle(done map[*Subject]bool) (*dep, error) {
	var start *Subject
	for _, n := range g.nodes {
		if !done[n] {
			start = n
			break
		}
	}
	chain := []*Subject{start}
	pos := map[*Subject]int{start: 0}
	var walk []*dep
	for {
		var next *dep
		for _, d := range g.in[chain[len(chain)-1]] {
			if !d.broken && !done[d.from] {
				next = d
				break
			}
		}
		// Every remaining node has a remaining incoming edge.
		walk = append(walk, next)
		i, seen := pos[next.from]
		if !seen {
			pos[next.from] = len(chain)
			chain = append(chain, next.from)
			continue
		}
		cycle := walk[i:]
		for l, r := 0, len(cycle)-1; l < r; l, r = l+1, r-1 {
			cycle[l], cycle[r] = cycle[r], cycle[l]
		}
		for _, d := range cycle {
			if d.nullable {
				return d, nil
			}
		}
		err := &graft.DependencyCycleError{Path: []string{cycle[0].from.String()}}
		for _, d := range cycle {
			err.Path = append(err.Path, d.to.String())
			err.Columns = append(err.Columns, d.columns()...)
		}
		return nil, err
	}
}

// subjectHeap is a min-heap of subjects on builder index.
type subjectHeap []*Subject

func (h subjectHeap) Len() int           { return len(h) }
func (h subjectHeap) Less(i, j int) bool { return h[i].index < h[j].index }
func (h subjectHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *subjectHeap) Push(x any)        { *h = append(*h, x.(*Subject)) }
func (h *subjectHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	*h = old[:len(old)-1]
	return n
}

// sort returns the execution plan: inserts in dependency order, updates,
// junction maintenance, soft-removes and recovers, and removes in reverse
// dependency order.
func (p *plan) sort() ([]operation, error) {
	var inserts, removes, updates, orphans, softs []*Subject
	for _, s := range p.subjects {
		switch {
		case s.MustBeInserted:
			inserts = append(inserts, s)
		case s.MustBeUpdated && !s.noop && s.orphan:
			orphans = append(orphans, s)
		case s.MustBeUpdated && !s.noop:
			updates = append(updates, s)
		case s.MustBeSoftRemoved, s.MustBeRecovered:
			softs = append(softs, s)
		case s.MustBeRemoved:
			removes = append(removes, s)
		}
	}
	insertOrder, deferred, err := p.sortInserts(inserts)
	if err != nil {
		return nil, err
	}
	removeOrder, nullified, err := p.sortRemoves(removes)
	if err != nil {
		return nil, err
	}
	ops := make([]operation, 0, len(p.subjects)+len(deferred)+len(nullified)+1)
	for _, s := range insertOrder {
		ops = append(ops, operation{kind: opInsert, subject: s})
	}
	for _, s := range orphans {
		ops = append(ops, operation{kind: opUpdate, subject: s})
	}
	for _, s := range updates {
		ops = append(ops, operation{kind: opUpdate, subject: s})
	}
	ops = append(ops, deferred...)
	ops = append(ops, nullified...)
	if p.hasJunctions() {
		ops = append(ops, operation{kind: opJunction})
	}
	for _, s := range softs {
		kind := opSoftRemove
		if s.MustBeRecovered {
			kind = opRecover
		}
		ops = append(ops, operation{kind: kind, subject: s})
	}
	for _, s := range removeOrder {
		ops = append(ops, operation{kind: opRemove, subject: s})
	}
	return ops, nil
}

// sortInserts orders the inserts so that every row is inserted after the
// rows its foreign keys point to. Broken edges become deferred updates.
func (p *plan) sortInserts(inserts []*Subject) ([]*Subject, []operation, error) {
	g := newGraph(inserts)
	var deferred []operation
	for _, s := range inserts {
		deps := make(map[*Subject]map[*schema.Relation]*dep)
		var self []ChangeMap
		for _, cm := range s.ChangeMaps {
			switch {
			case cm.Pending == nil:
			case cm.Pending == s && s.Identifier != nil:
				// A row referencing itself by a key known before insert.
			case cm.Pending == s:
				if !cm.Column.Nullable {
					return nil, nil, &graft.DependencyCycleError{
						Path:    []string{s.String(), s.String()},
						Columns: []string{s.Metadata.Name + "." + cm.Column.Name},
					}
				}
				self = append(self, cm)
			default:
				byRel := deps[cm.Pending]
				if byRel == nil {
					byRel = make(map[*schema.Relation]*dep)
					deps[cm.Pending] = byRel
				}
				d := byRel[cm.Relation]
				if d == nil {
					d = &dep{from: cm.Pending, to: s, holder: s, nullable: true}
					byRel[cm.Relation] = d
					g.add(d)
				}
				d.changes = append(d.changes, cm)
				d.nullable = d.nullable && cm.Column.Nullable
			}
		}
		if len(self) > 0 {
			deferred = append(deferred, p.deferChanges(s, self))
		}
	}
	sortDeps(g)
	order, broken, err := g.sort()
	if err != nil {
		return nil, nil, err
	}
	for _, d := range broken {
		deferred = append(deferred, p.deferChanges(d.holder, d.changes))
	}
	return order, deferred, nil
}

// deferChanges removes foreign-key changes from an insert and returns the
// update writing them once all inserts are done.
func (p *plan) deferChanges(s *Subject, changes []ChangeMap) operation {
	if s.deferred == nil {
		s.deferred = make(map[string]bool)
	}
	for _, cm := range changes {
		s.deferred[cm.Column.Name] = true
	}
	kept := s.ChangeMaps[:0]
	for _, cm := range s.ChangeMaps {
		if !s.deferred[cm.Column.Name] {
			kept = append(kept, cm)
		}
	}
	s.ChangeMaps = kept
	return operation{kind: opUpdate, subject: s, changes: changes}
}

// sortRemoves orders the removes so that rows are deleted before the rows
// they reference. Broken edges become updates clearing the foreign key
// before any row is deleted.
func (p *plan) sortRemoves(removes []*Subject) ([]*Subject, []operation, error) {
	g := newGraph(removes)
	for _, s := range removes {
		for _, rel := range s.Metadata.Relations {
			if !rel.HoldsForeignKey() {
				continue
			}
			target := p.referenced(s, rel)
			if target == nil || target == s || !target.MustBeRemoved {
				continue
			}
			d := &dep{from: s, to: target, holder: s, nullable: rel.Nullable}
			for _, jc := range rel.JoinColumns {
				d.changes = append(d.changes, ChangeMap{Column: s.Metadata.Column(jc.Name), Relation: rel})
			}
			g.add(d)
		}
	}
	sortDeps(g)
	order, broken, err := g.sort()
	if err != nil {
		return nil, nil, err
	}
	nullified := make([]operation, 0, len(broken))
	for _, d := range broken {
		nullified = append(nullified, operation{kind: opUpdate, subject: d.holder, changes: d.changes})
	}
	return order, nullified, nil
}

// referenced returns the subject s points to through rel, by the in-memory
// relation value or by the stored foreign key.
func (p *plan) referenced(s *Subject, rel *schema.Relation) *Subject {
	target := rel.TargetEntity()
	if v, ok := s.value(rel.Name); ok {
		if rec, ok := v.(*graft.Record); ok && rec != nil {
			if ts := p.lookup(target, rec); ts != nil {
				return ts
			}
		}
	}
	if s.DatabaseEntity == nil {
		return nil
	}
	id := make(schema.Identifier, len(rel.JoinColumns))
	for _, jc := range rel.JoinColumns {
		v, ok := s.DatabaseEntity.Get(jc.Name)
		if !ok || v == nil {
			return nil
		}
		id[jc.Referenced] = v
	}
	for _, pk := range target.PrimaryKeys() {
		if _, ok := id[pk.Name]; !ok {
			return nil
		}
		id[pk.Name] = pk.Normalize(id[pk.Name])
	}
	return p.byKey[target][id.Key()]
}

// sortDeps orders the incoming edges of every node by builder index, so
// cycle detection is deterministic.
func sortDeps(g *graph) {
	for _, deps := range g.in {
		slices.SortStableFunc(deps, func(a, b *dep) int {
			return cmp.Compare(a.from.index, b.from.index)
		})
	}
}

func (p *plan) hasJunctions() bool {
	for _, s := range p.subjects {
		if len(s.junctionInserts) > 0 || len(s.junctionRemoves) > 0 {
			return true
		}
	}
	return false
}

// describe returns a readable form of the plan, used in debug logs.
func describe(ops []operation) string {
	var sb strings.Builder
	for i, op := range ops {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(op.kind.String())
		if op.subject != nil {
			sb.WriteByte(' ')
			sb.WriteString(op.subject.String())
		}
	}
	return sb.String()
}
