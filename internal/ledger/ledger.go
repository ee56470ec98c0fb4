// Package ledger is the balance engine: it turns a group's expense and
// settlement history into net pairwise balances, keeps those balances
// consistent under every mutation, runs the settlement request workflow and
// archives groups once they are fully settled.
//
// Balances are a derived cache. Every mutation triggers a full recompute
// from source records followed by an atomic replace of the group's balance
// rows; nothing else ever writes a balance. Mutations on the same group are
// serialized by a per-group mutex because the recompute is a
// read-then-full-replace and is not safe under interleaving.
package ledger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/expenseshare/server/internal/storage"
)

var (
	recomputesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_recomputes_total",
		Help: "Number of group balance recomputations.",
	})
	recomputeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_recompute_failures_total",
		Help: "Number of failed group balance recomputations.",
	})
	archivesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_group_archives_total",
		Help: "Number of groups archived after reaching all-zero balances.",
	})
)

// Engine coordinates all ledger mutations and views.
type Engine struct {
	store storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger engine on top of the given store.
func New(store storage.Store) *Engine {
	return &Engine{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// groupLock returns the mutex serializing mutations for one group.
// Lock entries are never removed; groups are few and mutexes are small.
func (e *Engine) groupLock(groupID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[groupID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[groupID] = lock
	}
	return lock
}
