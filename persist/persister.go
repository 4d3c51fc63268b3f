package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syssam/graft"
	"github.com/syssam/graft/dialect"
	"github.com/syssam/graft/dialect/sql/sqlgraph"
	"github.com/syssam/graft/schema"
)

// Runner executes the statements of a persist call. Keys and values are
// column maps; id values are normalized identifiers. The default Runner is
// sqlgraph.Runner.
type Runner interface {
	Insert(ctx context.Context, s dialect.ExecQuerier, table string, values map[string]any, returning []string) (InsertResult, error)
	Update(ctx context.Context, s dialect.ExecQuerier, table string, id schema.Identifier, values map[string]any) (int64, error)
	Delete(ctx context.Context, s dialect.ExecQuerier, table string, id schema.Identifier) (int64, error)
	BulkInsert(ctx context.Context, s dialect.ExecQuerier, table string, rows []map[string]any) (int64, error)
	BulkDelete(ctx context.Context, s dialect.ExecQuerier, table string, keys []map[string]any) (int64, error)
	Select(ctx context.Context, s dialect.ExecQuerier, table string, columns []string, keys []map[string]any) ([]map[string]any, error)
}

// InsertResult holds the generated column values returned by an insert.
type InsertResult = sqlgraph.InsertResult

var _ Runner = (*sqlgraph.Runner)(nil)

// Result summarizes a persist call.
type Result struct {
	// Records are the root records of the call, with generated values
	// written back.
	Records []*graft.Record

	Inserted    int
	Updated     int
	Removed     int
	SoftRemoved int
	Recovered   int
	// Skipped counts subjects that needed no write.
	Skipped int

	JunctionInserted int64
	JunctionRemoved  int64
	// AffectedRows is the sum of the rows reported by the database for
	// every executed statement except junction maintenance.
	AffectedRows int64

	// Subjects are the planned subjects in builder order.
	Subjects []*Subject
}

// Persister plans and executes graph mutations. It is safe for concurrent
// use; every call works on its own subjects.
type Persister struct {
	driver   dialect.Driver
	registry *schema.Registry
	runner   Runner
	log      *slog.Logger
	cache    graft.Cache
	now      func() time.Time

	batchSize   int
	concurrency int
}

// New returns a persister writing through drv with the metadata of reg.
//
//	drv, err := sql.Open("sqlite", "file:app.db")
//	if err != nil {
//		return err
//	}
//	p := persist.New(drv, reg, persist.WithBatchSize(200))
//	res, err := p.Save(ctx, "User", user)
func New(drv dialect.Driver, reg *schema.Registry, opts ...Option) *Persister {
	p := &Persister{
		driver:      drv,
		registry:    reg,
		log:         slog.Default(),
		now:         time.Now,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runner == nil {
		p.runner = sqlgraph.NewRunner(drv.Dialect())
	}
	return p
}

// Save inserts the records that do not exist and updates the ones that do,
// following relations that cascade inserts or updates.
func (p *Persister) Save(ctx context.Context, entity string, records ...*graft.Record) (*Result, error) {
	return p.Persist(ctx, graft.OpSave, entity, records...)
}

// Remove deletes the records, following relations that cascade removes.
func (p *Persister) Remove(ctx context.Context, entity string, records ...*graft.Record) (*Result, error) {
	return p.Persist(ctx, graft.OpRemove, entity, records...)
}

// SoftRemove sets the delete date of the records.
func (p *Persister) SoftRemove(ctx context.Context, entity string, records ...*graft.Record) (*Result, error) {
	return p.Persist(ctx, graft.OpSoftRemove, entity, records...)
}

// Recover clears the delete date of the records.
func (p *Persister) Recover(ctx context.Context, entity string, records ...*graft.Record) (*Result, error) {
	return p.Persist(ctx, graft.OpRecover, entity, records...)
}

// Persist runs op on the records of the named entity in one transaction.
// If ctx carries a transaction (see graft.NewTxContext), the call runs in
// it and leaves commit and rollback to its owner.
func (p *Persister) Persist(ctx context.Context, op graft.Op, entity string, records ...*graft.Record) (res *Result, err error) {
	start := time.Now()
	defer func() {
		callsTotal.WithLabelValues(op.String(), status(err)).Inc()
		durationSeconds.WithLabelValues(op.String()).Observe(time.Since(start).Seconds())
	}()
	meta, err := p.registry.Entity(entity)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Result{}, nil
	}
	if tx, ok := graft.TxFromContext(ctx); ok {
		res, _, err = p.persist(ctx, tx, op, meta, records)
		return res, err
	}
	tx, err := p.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("graft: starting a transaction: %w", err)
	}
	res, tables, err := p.persist(ctx, tx, op, meta, records)
	if err != nil {
		return nil, p.rollback(ctx, tx, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("graft: committing transaction: %w", err)
	}
	p.invalidate(ctx, tables)
	return res, nil
}

// persist runs the pipeline on session and returns the written tables.
func (p *Persister) persist(ctx context.Context, session dialect.ExecQuerier, op graft.Op, meta *schema.Entity, records []*graft.Record) (*Result, []string, error) {
	pl := newPlan(op, p.now().UTC())
	if err := pl.build(meta, records); err != nil {
		return nil, nil, err
	}
	ld := &loader{
		runner:      p.runner,
		session:     session,
		op:          op,
		batchSize:   p.batchSize,
		concurrency: p.concurrency,
	}
	if err := ld.load(ctx, pl.subjects); err != nil {
		return nil, nil, err
	}
	if err := pl.resolve(); err != nil {
		return nil, nil, err
	}
	if err := pl.computeChanges(); err != nil {
		return nil, nil, err
	}
	if err := pl.authorize(ctx); err != nil {
		return nil, nil, err
	}
	ops, err := pl.sort()
	if err != nil {
		return nil, nil, err
	}
	if p.log.Enabled(ctx, slog.LevelDebug) {
		p.log.DebugContext(ctx, "graft: plan", "op", op.String(), "entity", meta.Name, "subjects", len(pl.subjects), "operations", describe(ops))
	}
	res := &Result{Records: records, Subjects: pl.subjects}
	ex := newExecutor(pl, p.runner, session, p.log, res)
	if err := ex.execute(ctx, ops); err != nil {
		return nil, nil, err
	}
	for _, s := range pl.subjects {
		if s.noop {
			res.Skipped++
		}
	}
	return res, ex.tables, nil
}

// rollback rolls the transaction back and returns the error of the call.
// A failed rollback is reported along with it.
func (p *Persister) rollback(ctx context.Context, tx dialect.Tx, err error) error {
	if rerr := tx.Rollback(); rerr != nil {
		p.log.WarnContext(ctx, "graft: rollback failed", "error", rerr, "cause", err)
		return &graft.RollbackError{Err: err, Rollback: rerr}
	}
	return err
}

// invalidate drops the cached values of the written tables. Failures are
// logged; the write is committed already.
func (p *Persister) invalidate(ctx context.Context, tables []string) {
	if p.cache == nil {
		return
	}
	for _, table := range tables {
		if err := p.cache.DeletePrefix(ctx, graft.TablePrefix(table)); err != nil {
			p.log.WarnContext(ctx, "graft: cache invalidation failed", "table", table, "error", err)
		}
	}
}

func status(err error) string {
	var rerr *graft.RollbackError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rerr):
		return "rollback_error"
	case graft.IsPlanningError(err):
		return "planning_error"
	default:
		return "error"
	}
}
