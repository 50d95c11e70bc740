package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restocrm/internal/identity"
	"restocrm/internal/logging"
	"restocrm/internal/tenant"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScopeLookup resolves the restaurant an account administers.
type ScopeLookup interface {
	ScopeFor(ctx context.Context, accountID string) (tenant.Scope, error)
}

type SessionService struct {
	provider identity.Provider
	scopes   ScopeLookup
	sessions tenant.SessionStore
	logger   *zerolog.Logger
	now      func() time.Time

	// onSignOut releases per-session state such as paginators.
	onSignOut []func(sessionID string)
}

func NewSessionService(provider identity.Provider, scopes ScopeLookup, sessions tenant.SessionStore, logger *zerolog.Logger) *SessionService {
	return &SessionService{
		provider: provider,
		scopes:   scopes,
		sessions: sessions,
		logger:   logging.Component(logger, "sessions"),
		now:      time.Now,
	}
}

// OnSignOut registers fn to run after a session is deleted.
func (s *SessionService) OnSignOut(fn func(sessionID string)) {
	s.onSignOut = append(s.onSignOut, fn)
}

func (s *SessionService) SignIn(ctx context.Context, email, password string) (*tenant.Session, error) {
	account, err := s.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, err
	}

	scope, err := s.scopes.ScopeFor(ctx, account.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("sign-in without usable restaurant")
		return nil, err
	}

	session := &tenant.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		Email:     account.Email,
		Tenant:    scope,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info().Str("account_id", account.ID).Str("tenant", scope.Segment()).Msg("signed in")
	return session, nil
}

func (s *SessionService) SignOut(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	for _, fn := range s.onSignOut {
		fn(sessionID)
	}
	return nil
}
