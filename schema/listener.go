package schema

import (
	"context"

	"github.com/syssam/graft"
	"github.com/syssam/graft/dialect"
)

// Event is passed to entity listeners around each executed write.
type Event struct {
	// Op is the operation being executed.
	Op graft.Op
	// Entity is the in-memory record. Listeners may modify it; changes made
	// by before-update listeners are written by the same update.
	Entity *graft.Record
	// Metadata describes the entity.
	Metadata *Entity
	// Session is the transactional session of the persist call.
	Session dialect.ExecQuerier
}

// Listener is an entity lifecycle listener. It may implement any of the
// Before*/After* interfaces below; the methods it does not implement are
// skipped.
type Listener any

type (
	// BeforeInserter is called before the row is inserted.
	BeforeInserter interface {
		BeforeInsert(context.Context, *Event) error
	}
	// AfterInserter is called after the row is inserted and generated
	// values were written back to the record.
	AfterInserter interface {
		AfterInsert(context.Context, *Event) error
	}
	// BeforeUpdater is called before the row is updated.
	BeforeUpdater interface {
		BeforeUpdate(context.Context, *Event) error
	}
	// AfterUpdater is called after the row is updated.
	AfterUpdater interface {
		AfterUpdate(context.Context, *Event) error
	}
	// BeforeRemover is called before the row is deleted.
	BeforeRemover interface {
		BeforeRemove(context.Context, *Event) error
	}
	// AfterRemover is called after the row is deleted.
	AfterRemover interface {
		AfterRemove(context.Context, *Event) error
	}
	// BeforeSoftRemover is called before the row is soft-removed.
	BeforeSoftRemover interface {
		BeforeSoftRemove(context.Context, *Event) error
	}
	// AfterSoftRemover is called after the row is soft-removed.
	AfterSoftRemover interface {
		AfterSoftRemove(context.Context, *Event) error
	}
	// BeforeRecoverer is called before the row is recovered.
	BeforeRecoverer interface {
		BeforeRecover(context.Context, *Event) error
	}
	// AfterRecoverer is called after the row is recovered.
	AfterRecoverer interface {
		AfterRecover(context.Context, *Event) error
	}
)

// ListenerFunc is a single lifecycle callback.
type ListenerFunc func(context.Context, *Event) error

// opListener dispatches a ListenerFunc for one op at one stage.
type opListener struct {
	op     graft.Op
	before bool
	fn     ListenerFunc
}

// Fire calls the listener if it is registered for the op and stage.
func (l opListener) Fire(ctx context.Context, op graft.Op, before bool, e *Event) error {
	if l.op != op || l.before != before {
		return nil
	}
	return l.fn(ctx, e)
}

// BeforeInsert returns a listener calling fn before inserts.
func BeforeInsert(fn ListenerFunc) Listener { return opListener{graft.OpInsert, true, fn} }

// AfterInsert returns a listener calling fn after inserts.
func AfterInsert(fn ListenerFunc) Listener { return opListener{graft.OpInsert, false, fn} }

// BeforeUpdate returns a listener calling fn before updates.
func BeforeUpdate(fn ListenerFunc) Listener { return opListener{graft.OpUpdate, true, fn} }

// AfterUpdate returns a listener calling fn after updates.
func AfterUpdate(fn ListenerFunc) Listener { return opListener{graft.OpUpdate, false, fn} }

// BeforeRemove returns a listener calling fn before deletes.
func BeforeRemove(fn ListenerFunc) Listener { return opListener{graft.OpRemove, true, fn} }

// AfterRemove returns a listener calling fn after deletes.
func AfterRemove(fn ListenerFunc) Listener { return opListener{graft.OpRemove, false, fn} }

// BeforeSoftRemove returns a listener calling fn before soft-removes.
func BeforeSoftRemove(fn ListenerFunc) Listener { return opListener{graft.OpSoftRemove, true, fn} }

// AfterSoftRemove returns a listener calling fn after soft-removes.
func AfterSoftRemove(fn ListenerFunc) Listener { return opListener{graft.OpSoftRemove, false, fn} }

// BeforeRecover returns a listener calling fn before recovers.
func BeforeRecover(fn ListenerFunc) Listener { return opListener{graft.OpRecover, true, fn} }

// AfterRecover returns a listener calling fn after recovers.
func AfterRecover(fn ListenerFunc) Listener { return opListener{graft.OpRecover, false, fn} }

// FireListener calls the callback of l matching op and stage, if l
// implements it.
func FireListener(ctx context.Context, l Listener, op graft.Op, before bool, e *Event) error {
	if ol, ok := l.(opListener); ok {
		return ol.Fire(ctx, op, before, e)
	}
	switch {
	case op == graft.OpInsert && before:
		if h, ok := l.(BeforeInserter); ok {
			return h.BeforeInsert(ctx, e)
		}
	case op == graft.OpInsert:
		if h, ok := l.(AfterInserter); ok {
			return h.AfterInsert(ctx, e)
		}
	case op == graft.OpUpdate && before:
		if h, ok := l.(BeforeUpdater); ok {
			return h.BeforeUpdate(ctx, e)
		}
	case op == graft.OpUpdate:
		if h, ok := l.(AfterUpdater); ok {
			return h.AfterUpdate(ctx, e)
		}
	case op == graft.OpRemove && before:
		if h, ok := l.(BeforeRemover); ok {
			return h.BeforeRemove(ctx, e)
		}
	case op == graft.OpRemove:
		if h, ok := l.(AfterRemover); ok {
			return h.AfterRemove(ctx, e)
		}
	case op == graft.OpSoftRemove && before:
		if h, ok := l.(BeforeSoftRemover); ok {
			return h.BeforeSoftRemove(ctx, e)
		}
	case op == graft.OpSoftRemove:
		if h, ok := l.(AfterSoftRemover); ok {
			return h.AfterSoftRemove(ctx, e)
		}
	case op == graft.OpRecover && before:
		if h, ok := l.(BeforeRecoverer); ok {
			return h.BeforeRecover(ctx, e)
		}
	case op == graft.OpRecover:
		if h, ok := l.(AfterRecoverer); ok {
			return h.AfterRecover(ctx, e)
		}
	}
	return nil
}

// HasListener reports whether any of the listeners handles op at the given
// stage.
func HasListener(listeners []Listener, op graft.Op, before bool) bool {
	for _, l := range listeners {
		if ol, ok := l.(opListener); ok {
			if ol.op == op && ol.before == before {
				return true
			}
			continue
		}
		var ok bool
		switch {
		case op == graft.OpInsert && before:
			_, ok = l.(BeforeInserter)
		case op == graft.OpInsert:
			_, ok = l.(AfterInserter)
		case op == graft.OpUpdate && before:
			_, ok = l.(BeforeUpdater)
		case op == graft.OpUpdate:
			_, ok = l.(AfterUpdater)
		case op == graft.OpRemove && before:
			_, ok = l.(BeforeRemover)
		case op == graft.OpRemove:
			_, ok = l.(AfterRemover)
		case op == graft.OpSoftRemove && before:
			_, ok = l.(BeforeSoftRemover)
		case op == graft.OpSoftRemove:
			_, ok = l.(AfterSoftRemover)
		case op == graft.OpRecover && before:
			_, ok = l.(BeforeRecoverer)
		case op == graft.OpRecover:
			_, ok = l.(AfterRecoverer)
		}
		if ok {
			return true
		}
	}
	return false
}
