package persist

import (
	"log/slog"
	"time"

	"github.com/syssam/graft"
)

// DefaultBatchSize is the default number of keys loaded per query.
const DefaultBatchSize = 500

// Option configures a Persister.
type Option func(*Persister)

// WithLogger sets the logger of the persister. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Persister) {
		if logger != nil {
			p.log = logger
		}
	}
}

// WithRunner replaces the statement runner. Default is sqlgraph.Runner for
// the dialect of the driver.
func WithRunner(r Runner) Option {
	return func(p *Persister) {
		p.runner = r
	}
}

// WithCache sets the cache invalidated after every committed call.
func WithCache(c graft.Cache) Option {
	return func(p *Persister) {
		p.cache = c
	}
}

// WithBatchSize sets the maximum number of keys loaded by one query.
// Non-positive values keep the default.
func WithBatchSize(n int) Option {
	return func(p *Persister) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithLoadConcurrency sets the number of load queries that may run at the
// same time. The default of 1 suits sessions that do not support
// overlapping statements, which is the case for most transactions.
func WithLoadConcurrency(n int) Option {
	return func(p *Persister) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithClock sets the clock used for create, update and delete dates.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) {
		if now != nil {
			p.now = now
		}
	}
}
