package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_CurrentTenant(t *testing.T) {
	ctx := context.Background()
	sessions := NewMemorySessionStore(time.Hour)
	resolver := NewResolver(sessions)

	require.NoError(t, sessions.Save(ctx, testSession("ok")))
	require.NoError(t, sessions.Save(ctx, &Session{ID: "no-tenant", AccountID: "acc-2"}))

	t.Run("Resolved", func(t *testing.T) {
		scope, err := resolver.CurrentTenant(ctx, "ok")
		require.NoError(t, err)
		assert.Equal(t, Scope{ID: "r1", Name: "Lumiere"}, scope)
	})

	t.Run("EmptySessionID", func(t *testing.T) {
		_, err := resolver.CurrentTenant(ctx, "")
		assert.ErrorIs(t, err, ErrNoTenantSelected)
	})

	t.Run("UnknownSession", func(t *testing.T) {
		_, err := resolver.CurrentTenant(ctx, "nope")
		assert.ErrorIs(t, err, ErrNoTenantSelected)
	})

	t.Run("SessionWithoutTenant", func(t *testing.T) {
		_, err := resolver.CurrentTenant(ctx, "no-tenant")
		assert.ErrorIs(t, err, ErrNoTenantSelected)
	})
}

func TestResolver_StoreError(t *testing.T) {
	ctx := context.Background()
	store := new(mockSessionStore)
	store.On("Get", ctx, "x").Return(nil, errors.New("boom")).Once()

	_, err := NewResolver(store).CurrentTenant(ctx, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTenantSelected)
	store.AssertExpectations(t)
}
