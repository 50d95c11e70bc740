package pagination

import (
	"sync"
	"time"

	"restocrm/internal/tenant"
)

// Factory builds a paginator for one tenant.
type Factory[T any] func(scope tenant.Scope) (*Paginator[T], error)

type registryKey struct {
	session string
	tenant  string
}

type registryEntry[T any] struct {
	paginator *Paginator[T]
	lastUsed  time.Time
}

// Registry keeps one paginator per session and tenant for a single view so
// that cursors survive between requests. Entries idle for longer than the
// idle timeout are dropped on the next Get.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[registryKey]*registryEntry[T]
	factory Factory[T]
	idle    time.Duration
	now     func() time.Time
}

func NewRegistry[T any](factory Factory[T], idle time.Duration) *Registry[T] {
	return &Registry[T]{
		entries: make(map[registryKey]*registryEntry[T]),
		factory: factory,
		idle:    idle,
		now:     time.Now,
	}
}

// Get returns the paginator of sessionID for scope, creating it on first use.
func (r *Registry[T]) Get(sessionID string, scope tenant.Scope) (*Paginator[T], error) {
	if err := tenant.Require(scope); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweep(now)

	key := registryKey{session: sessionID, tenant: scope.Segment()}
	if e, ok := r.entries[key]; ok {
		e.lastUsed = now
		return e.paginator, nil
	}

	p, err := r.factory(scope)
	if err != nil {
		return nil, err
	}
	r.entries[key] = &registryEntry[T]{paginator: p, lastUsed: now}
	return p, nil
}

// Drop forgets every paginator of sessionID.
func (r *Registry[T]) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.entries {
		if k.session == sessionID {
			delete(r.entries, k)
		}
	}
}

func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[T]) sweep(now time.Time) {
	if r.idle <= 0 {
		return
	}
	for k, e := range r.entries {
		if now.Sub(e.lastUsed) > r.idle {
			delete(r.entries, k)
		}
	}
}
