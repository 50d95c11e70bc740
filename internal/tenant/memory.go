package tenant

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

type MemorySessionStore struct {
	sessions sync.Map
	ttl      time.Duration
	now      func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{ttl: ttl, now: time.Now}
}

func (r *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	val, ok := r.sessions.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(memoryEntry)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.sessions.Delete(id)
		return nil, nil
	}
	s := entry.session
	return &s, nil
}

func (r *MemorySessionStore) Save(ctx context.Context, session *Session) error {
	entry := memoryEntry{session: *session}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.sessions.Store(session.ID, entry)
	return nil
}

func (r *MemorySessionStore) Delete(ctx context.Context, id string) error {
	r.sessions.Delete(id)
	return nil
}
