package tenant

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// FailoverSessionStore serves from primary (Redis) and switches to the
// fallback after the first primary error. Primary is retried once the
// recovery interval has passed.
type FailoverSessionStore struct {
	primary  SessionStore
	fallback SessionStore
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu        sync.Mutex
	lastCheck time.Time
	recovery  time.Duration
}

func NewFailoverSessionStore(primary, fallback SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		recovery: time.Minute,
	}
}

func (r *FailoverSessionStore) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary session store failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverSessionStore) shouldRetryPrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= r.recovery {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	if !r.isDown.Load() {
		session, err := r.primary.Get(ctx, id)
		if err == nil {
			return session, nil
		}
		r.markDown(err)
	} else if r.shouldRetryPrimary() {
		session, err := r.primary.Get(ctx, id)
		if err == nil {
			r.isDown.Store(false)
			r.logger.Info().Msg("Primary session store recovered")
			return session, nil
		}
	}

	return r.fallback.Get(ctx, id)
}

func (r *FailoverSessionStore) Save(ctx context.Context, session *Session) error {
	if !r.isDown.Load() {
		err := r.primary.Save(ctx, session)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.Save(ctx, session)
}

func (r *FailoverSessionStore) Delete(ctx context.Context, id string) error {
	// Sessions saved during an outage live only in the fallback.
	fbErr := r.fallback.Delete(ctx, id)
	if !r.isDown.Load() {
		err := r.primary.Delete(ctx, id)
		if err == nil {
			return nil
		}
		r.markDown(err)
	}
	return fbErr
}
