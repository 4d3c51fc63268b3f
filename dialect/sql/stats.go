package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/syssam/graft/dialect"
)

// StatementKind classifies a statement by its leading keyword.
type StatementKind uint8

// Statement kinds.
const (
	KindOther StatementKind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	numKinds
)

var kindNames = [numKinds]string{"other", "select", "insert", "update", "delete"}

func (k StatementKind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("StatementKind(%d)", k)
}

// KindOf returns the kind of the statement.
func KindOf(query string) StatementKind {
	verb, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	switch strings.ToUpper(verb) {
	case "SELECT":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	}
	return KindOther
}

// Stats is a snapshot of the counters of a StatsDriver.
type Stats struct {
	Statements [numKinds]int64
	Duration   time.Duration
	Slow       int64
	Errors     int64
	Commits    int64
	Rollbacks  int64
}

// Total returns the number of statements of all kinds.
func (s Stats) Total() int64 {
	var n int64
	for _, c := range s.Statements {
		n += c
	}
	return n
}

// Count returns the number of statements of the given kind.
func (s Stats) Count(k StatementKind) int64 {
	if k >= numKinds {
		return 0
	}
	return s.Statements[k]
}

func (s Stats) String() string {
	var sb strings.Builder
	for k, n := range s.Statements {
		if n > 0 {
			fmt.Fprintf(&sb, "%s=%d ", StatementKind(k), n)
		}
	}
	fmt.Fprintf(&sb, "duration=%s slow=%d errors=%d commits=%d rollbacks=%d",
		s.Duration, s.Slow, s.Errors, s.Commits, s.Rollbacks)
	return sb.String()
}

// SlowStatement describes a statement that ran longer than the slow
// threshold of a StatsDriver.
type SlowStatement struct {
	Kind     StatementKind
	Query    string
	Args     []any
	Duration time.Duration
}

// SlowQueryHook is called for every slow statement.
type SlowQueryHook func(context.Context, SlowStatement)

// StatsDriver counts the statements run through a driver and through the
// transactions it opens, and reports slow ones.
type StatsDriver struct {
	dialect.Driver
	statements [numKinds]atomic.Int64
	nanos      atomic.Int64
	slow       atomic.Int64
	errors     atomic.Int64
	commits    atomic.Int64
	rollbacks  atomic.Int64
	threshold  atomic.Int64
	hook       SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold.Store(int64(d))
	}
}

// WithSlowQueryHook sets the function called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements at warn level to logger, or to
// slog.Default() if it is nil.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, s SlowStatement) {
		logger.WarnContext(ctx, "graft: slow statement", "kind", s.Kind.String(), "duration", s.Duration, "sql", s.Query, "args", s.Args)
	})
}

// NewStatsDriver wraps drv with statement counters.
//
//	drv := sql.NewStatsDriver(base,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	res, err := persist.New(drv, reg).Save(ctx, "User", u)
//	logger.Info("saved", "stats", drv.Stats().String())
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv}
	s.threshold.Store(int64(100 * time.Millisecond))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stats returns a snapshot of the counters.
func (d *StatsDriver) Stats() Stats {
	var s Stats
	for k := range d.statements {
		s.Statements[k] = d.statements[k].Load()
	}
	s.Duration = time.Duration(d.nanos.Load())
	s.Slow = d.slow.Load()
	s.Errors = d.errors.Load()
	s.Commits = d.commits.Load()
	s.Rollbacks = d.rollbacks.Load()
	return s
}

// Reset sets all counters to zero.
func (d *StatsDriver) Reset() {
	for k := range d.statements {
		d.statements[k].Store(0)
	}
	for _, c := range []*atomic.Int64{&d.nanos, &d.slow, &d.errors, &d.commits, &d.rollbacks} {
		c.Store(0)
	}
}

// SlowThreshold returns the slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	return time.Duration(d.threshold.Load())
}

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.threshold.Store(int64(threshold))
}

// Query runs a query and counts it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, func() error { return d.Driver.Query(ctx, query, args, v) })
}

// Exec runs a statement and counts it.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, query, args, func() error { return d.Driver.Exec(ctx, query, args, v) })
}

// Tx starts a transaction whose statements are counted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &StatsTx{Tx: tx, driver: d}, nil
}

func (d *StatsDriver) observe(ctx context.Context, query string, args any, run func() error) error {
	kind := KindOf(query)
	start := time.Now()
	err := run()
	elapsed := time.Since(start)
	d.statements[kind].Add(1)
	d.nanos.Add(int64(elapsed))
	if err != nil {
		d.errors.Add(1)
	}
	if elapsed > d.SlowThreshold() {
		d.slow.Add(1)
		if d.hook != nil {
			argv, _ := args.([]any)
			d.hook(ctx, SlowStatement{Kind: kind, Query: query, Args: argv, Duration: elapsed})
		}
	}
	return err
}

// StatsTx is a transaction opened by a StatsDriver.
type StatsTx struct {
	dialect.Tx
	driver *StatsDriver
}

// Query runs a query in the transaction and counts it.
func (tx *StatsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, args, func() error { return tx.Tx.Query(ctx, query, args, v) })
}

// Exec runs a statement in the transaction and counts it.
func (tx *StatsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, query, args, func() error { return tx.Tx.Exec(ctx, query, args, v) })
}

// Commit commits the transaction and counts it if it succeeded.
func (tx *StatsTx) Commit() error {
	if err := tx.Tx.Commit(); err != nil {
		return err
	}
	tx.driver.commits.Add(1)
	return nil
}

// Rollback rolls the transaction back and counts it.
func (tx *StatsTx) Rollback() error {
	tx.driver.rollbacks.Add(1)
	return tx.Tx.Rollback()
}

// DebugDriver logs every statement at debug level. Statements of a
// transaction carry the sequence number of the transaction under "tx".
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewDebugDriver wraps drv with statement logging. A nil logger logs to
// slog.Default().
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "graft: query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec logs and runs a statement.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "graft: exec", "sql", query, "args", args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with statement logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	logger := d.logger.With("tx", d.seq.Add(1))
	logger.DebugContext(ctx, "graft: begin")
	return &DebugTx{Tx: tx, logger: logger}, nil
}

// DebugTx is a transaction opened by a DebugDriver.
type DebugTx struct {
	dialect.Tx
	logger *slog.Logger
}

// Query logs and runs a query in the transaction.
func (tx *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "graft: query", "sql", query, "args", args)
	return tx.Tx.Query(ctx, query, args, v)
}

// Exec logs and runs a statement in the transaction.
func (tx *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	tx.logger.DebugContext(ctx, "graft: exec", "sql", query, "args", args)
	return tx.Tx.Exec(ctx, query, args, v)
}

// Commit logs and commits the transaction.
func (tx *DebugTx) Commit() error {
	tx.logger.Debug("graft: commit")
	return tx.Tx.Commit()
}

// Rollback logs and rolls back the transaction.
func (tx *DebugTx) Rollback() error {
	tx.logger.Debug("graft: rollback")
	return tx.Tx.Rollback()
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*StatsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*DebugTx)(nil)
)
