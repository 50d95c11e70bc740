package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"restocrm/internal/compat"
	"restocrm/internal/config"
	"restocrm/internal/docstore"
	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/identity"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type eventLog struct {
	mu       sync.Mutex
	types    []string
	payloads []events.RecordPayload
}

func (l *eventLog) handle(e *events.Event) error {
	var p events.RecordPayload
	if err := e.Decode(&p); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.types = append(l.types, e.Type)
	l.payloads = append(l.payloads, p)
	return nil
}

func (l *eventLog) last() (string, events.RecordPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.types) == 0 {
		return "", events.RecordPayload{}
	}
	return l.types[len(l.types)-1], l.payloads[len(l.payloads)-1]
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type testClock struct {
	mu sync.Mutex
	ms int64
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms += 1000
	return time.UnixMilli(c.ms)
}

type fixture struct {
	store        *docstore.MemoryStore
	events       *eventLog
	accounts     *identity.StoreProvider
	restaurants  *RestaurantService
	clients      *ClientService
	reservations *ReservationService
	orders       *OrderService
	sessionStore *tenant.MemorySessionStore
	sessions     *SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()
	store := docstore.NewMemoryStore()

	bus := events.NewEventBus(&logger)
	log := &eventLog{}
	for _, et := range []string{
		events.EventClientCreated, events.EventClientUpdated, events.EventClientDeleted,
		events.EventReservationCreated, events.EventReservationUpdated, events.EventReservationStatus, events.EventReservationDeleted,
		events.EventOrderCreated, events.EventOrderUpdated, events.EventOrderStatus, events.EventOrderDeleted,
		events.EventRestaurantCreated, events.EventRestaurantUpdated, events.EventRestaurantDeleted,
	} {
		bus.Subscribe(et, log.handle)
	}

	clock := &testClock{ms: 1800000000000}
	legacyCfg := config.LegacyConfig{Enabled: true, SharedTenant: "shared", Owner: "Lumiere"}
	opts := []compat.Option{
		compat.WithEventBus(bus),
		compat.WithClock(clock.now),
		compat.WithRetryPolicy(compat.RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}),
	}

	clientMirror, err := compat.NewMirror[models.Client](store, compat.NewClientCodec(nil), legacyCfg, &logger, opts...)
	require.NoError(t, err)
	resMirror, err := compat.NewMirror[models.Reservation](store, compat.ReservationCodec{}, legacyCfg, &logger, opts...)
	require.NoError(t, err)
	orderMirror, err := compat.NewMirror[models.Order](store, compat.OrderCodec{}, legacyCfg, &logger, opts...)
	require.NoError(t, err)

	accounts := identity.NewStoreProvider(store, &logger, identity.WithCost(bcrypt.MinCost))
	restaurants := NewRestaurantService(store, accounts, bus, &logger)
	sessionStore := tenant.NewMemorySessionStore(time.Hour)

	f := &fixture{
		store:       store,
		events:      log,
		accounts:    accounts,
		restaurants: restaurants,
		clients: NewClientService(clientMirror,
			NewPageRegistry[models.Client](store, models.CollectionClients, ClientMatcher, time.Hour, &logger),
			restaurants, bus, &logger),
		reservations: NewReservationService(resMirror,
			NewPageRegistry[models.Reservation](store, models.CollectionReservations, ReservationMatcher, time.Hour, &logger),
			bus, &logger),
		orders: NewOrderService(orderMirror,
			NewPageRegistry[models.Order](store, models.CollectionOrders, OrderMatcher, time.Hour, &logger),
			restaurants, bus, &logger),
		sessionStore: sessionStore,
		sessions:     NewSessionService(accounts, restaurants, sessionStore, &logger),
	}
	f.reservations.now = clock.now
	return f
}

func (f *fixture) restaurant(t *testing.T, name, email string) *models.Restaurant {
	t.Helper()
	r, err := f.restaurants.Create(context.Background(), models.NewRestaurant{
		Restaurant:    models.Restaurant{Name: name, Email: email},
		AdminEmail:    email,
		AdminPassword: "secret1",
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) seedClients(t *testing.T, scope tenant.Scope, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := f.clients.Create(context.Background(), scope, models.Client{
			ContactID: fmt.Sprintf("5730000000%02d", i),
			Name:      fmt.Sprintf("Client %02d", i),
		})
		require.NoError(t, err)
	}
}

func names(clients []models.Client) []string {
	out := make([]string, len(clients))
	for i := range clients {
		out[i] = clients[i].Name
	}
	return out
}

func TestLoadPage_Navigation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	f.seedClients(t, scope, 25)

	page, err := f.clients.Page(ctx, "s1", scope, domain.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, page.State.CurrentPage)
	assert.Equal(t, 3, page.State.TotalPages)
	assert.Equal(t, "Client 25", page.Items[0].Name)
	assert.True(t, page.State.HasNext)

	page, err = f.clients.Page(ctx, "s1", scope, domain.PageRequest{Mode: "next"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.State.CurrentPage)
	assert.Equal(t, "Client 15", page.Items[0].Name)

	page, err = f.clients.Page(ctx, "s1", scope, domain.PageRequest{Page: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, page.State.CurrentPage)
	assert.Len(t, page.Items, 5)
	assert.False(t, page.State.HasNext)

	page, err = f.clients.Page(ctx, "s1", scope, domain.PageRequest{Mode: "prev"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.State.CurrentPage)

	// other sessions keep their own cursor
	page, err = f.clients.Page(ctx, "s2", scope, domain.PageRequest{Mode: "next"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.State.CurrentPage)
}

func TestLoadPage_DirectJumpOnFreshSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	f.seedClients(t, scope, 12)

	page, err := f.clients.Page(ctx, "s1", scope, domain.PageRequest{Page: 2, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, page.State.CurrentPage)
	assert.Equal(t, []string{"Client 07", "Client 06", "Client 05", "Client 04", "Client 03"}, names(page.Items))
}

func TestLoadPage_SizeChangeRestarts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	f.seedClients(t, scope, 12)

	_, err := f.clients.Page(ctx, "s1", scope, domain.PageRequest{Size: 5})
	require.NoError(t, err)
	page, err := f.clients.Page(ctx, "s1", scope, domain.PageRequest{Size: 4, Mode: "next"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.State.CurrentPage)
	assert.Equal(t, 4, page.State.PageSize)
}

func TestLoadPage_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	f.seedClients(t, scope, 15)

	page, err := f.clients.Page(ctx, "s1", scope, domain.PageRequest{Query: "CLIENT 1", Size: 3})
	require.NoError(t, err)
	// Client 10..15 match
	assert.Equal(t, 6, page.State.TotalItems)
	assert.Equal(t, []string{"Client 15", "Client 14", "Client 13"}, names(page.Items))

	page, err = f.clients.Page(ctx, "s1", scope, domain.PageRequest{Query: "client 1", Mode: "next"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Client 12", "Client 11", "Client 10"}, names(page.Items))

	page, err = f.clients.Page(ctx, "s1", scope, domain.PageRequest{Query: "573000000003"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Client 03", page.Items[0].Name)
}

func TestLoadPage_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.clients.Page(ctx, "s1", tenant.Scope{}, domain.PageRequest{})
	assert.ErrorIs(t, err, tenant.ErrNoTenantSelected)

	_, err = f.clients.Page(ctx, "s1", tenant.New("r1", "Lumiere"), domain.PageRequest{Mode: "sideways"})
	assert.ErrorIs(t, err, ErrValidation)
}
