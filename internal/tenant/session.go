package tenant

import (
	"context"
	"time"
)

// Session is what survives between requests after sign-in.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"accountId"`
	Email     string    `json:"email"`
	Tenant    Scope     `json:"tenant"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStore persists sessions. Get returns nil, nil for an unknown id.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
