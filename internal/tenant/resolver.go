package tenant

import (
	"context"
	"fmt"
	"strings"
)

// Resolver maps a session id to the restaurant it is signed in to.
type Resolver struct {
	sessions SessionStore
}

func NewResolver(sessions SessionStore) *Resolver {
	return &Resolver{sessions: sessions}
}

// Session returns the stored session or ErrNoTenantSelected when there is
// none, or it carries no usable tenant.
func (r *Resolver) Session(ctx context.Context, sessionID string) (*Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrNoTenantSelected
	}
	session, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil, ErrNoTenantSelected
	}
	if err := Require(session.Tenant); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *Resolver) CurrentTenant(ctx context.Context, sessionID string) (Scope, error) {
	session, err := r.Session(ctx, sessionID)
	if err != nil {
		return Scope{}, err
	}
	return session.Tenant, nil
}
