package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"restocrm/internal/compat"
	"restocrm/internal/docstore"
	"restocrm/internal/events"
	"restocrm/internal/identity"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lumière Café", "lumiere-cafe"},
		{"  El Niño  ", "el-nino"},
		{"Pizza & Pasta #1", "pizza-pasta-1"},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
}

func TestValidateLogo(t *testing.T) {
	small := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))
	big := "data:image/png;base64," + base64.StdEncoding.EncodeToString(make([]byte, maxLogoBytes+1))

	assert.NoError(t, ValidateLogo(""))
	assert.NoError(t, ValidateLogo("https://cdn.example.com/logo.png"))
	assert.NoError(t, ValidateLogo(small))
	assert.ErrorIs(t, ValidateLogo(big), ErrValidation)
	assert.ErrorIs(t, ValidateLogo("data:text/plain;base64,aGk="), ErrValidation)
	assert.ErrorIs(t, ValidateLogo("data:image/png;base64,@@@"), ErrValidation)
	assert.ErrorIs(t, ValidateLogo("ftp://example.com/logo.png"), ErrValidation)
}

func TestRestaurantService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.restaurant(t, "Lumière Café", "admin@lumiere.co")
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "lumiere-cafe", r.Slug)
	assert.True(t, r.IsActive)
	assert.Equal(t, models.DefaultOrderTypes, r.Config.OrderTypes)
	assert.NotEmpty(t, r.AdminAccountID)

	stored, err := f.restaurants.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Name, stored.Name)

	admin, err := f.store.Get(ctx, models.CollectionUsers, r.AdminAccountID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, admin.String("restaurantId"))
	assert.Equal(t, "admin", admin.String("role"))

	cats, err := f.store.List(ctx, "tenants/Lumière Café/categories")
	require.NoError(t, err)
	assert.Len(t, cats, len(models.DefaultCategories))

	typ, payload := f.events.last()
	assert.Equal(t, events.EventRestaurantCreated, typ)
	assert.Equal(t, r.ID, payload.ID)
}

func TestRestaurantService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		r    models.Restaurant
	}{
		{"empty name", models.Restaurant{}},
		{"slash in name", models.Restaurant{Name: "a/b"}},
		{"bad slug", models.Restaurant{Name: "Ok", Slug: "Not A Slug"}},
		{"bad color", models.Restaurant{Name: "Ok", PrimaryColor: "red"}},
		{"bad email", models.Restaurant{Name: "Ok", Email: "nope"}},
		{"bad schedule", models.Restaurant{Name: "Ok", Config: models.RestaurantConfig{
			BotSchedule: models.BotSchedule{Enabled: true, OpenAt: "9am", CloseAt: "22:00"},
		}}},
		{"negative price", models.Restaurant{Name: "Ok", Config: models.RestaurantConfig{
			InteractionPricing: map[string]int64{models.ChannelWhatsApp: -1},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.restaurants.Create(ctx, models.NewRestaurant{
				Restaurant: tt.r, AdminEmail: "x@y.co", AdminPassword: "secret1",
			})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	// nothing was provisioned
	accounts, err := f.store.List(ctx, models.CollectionAccounts)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestRestaurantService_CreateUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.restaurant(t, "Lumiere", "a@lumiere.co")

	_, err := f.restaurants.Create(ctx, models.NewRestaurant{
		Restaurant: models.Restaurant{Name: "Lumiere Two", Slug: "lumiere"}, AdminEmail: "b@lumiere.co", AdminPassword: "secret1",
	})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = f.restaurants.Create(ctx, models.NewRestaurant{
		Restaurant: models.Restaurant{Name: "LUMIERE", Slug: "lumiere-2"}, AdminEmail: "b@lumiere.co", AdminPassword: "secret1",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.restaurants.Create(ctx, models.NewRestaurant{
		Restaurant: models.Restaurant{Name: "Other"}, AdminEmail: "a@lumiere.co", AdminPassword: "secret1",
	})
	assert.ErrorIs(t, err, identity.ErrAccountExists)
}

// failingBatchStore rejects every batch.
type failingBatchStore struct {
	*docstore.MemoryStore
}

func (failingBatchStore) Batch(context.Context, []docstore.Write) error {
	return assert.AnError
}

func TestRestaurantService_CreateRollsBackAccount(t *testing.T) {
	store := failingBatchStore{docstore.NewMemoryStore()}
	accounts := identity.NewStoreProvider(store, nil, identity.WithCost(bcrypt.MinCost))
	svc := NewRestaurantService(store, accounts, nil, nil)

	_, err := svc.Create(context.Background(), models.NewRestaurant{
		Restaurant: models.Restaurant{Name: "Lumiere"}, AdminEmail: "a@lumiere.co", AdminPassword: "secret1",
	})
	require.Error(t, err)

	docs, err := store.List(context.Background(), models.CollectionAccounts)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestRestaurantService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Lumiere", "a@lumiere.co")
	f.restaurant(t, "Brasa", "a@brasa.co")

	updated, err := f.restaurants.Update(ctx, r.ID, map[string]any{
		"phone":  "+57 300",
		"config": map[string]any{"interactionPricing": map[string]any{"whatsapp": 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, "+57 300", updated.Phone)
	assert.Equal(t, int64(50), updated.Config.InteractionPricing["whatsapp"])
	// deep merge keeps sibling config keys
	assert.Equal(t, models.DefaultOrderTypes, updated.Config.OrderTypes)

	_, err = f.restaurants.Update(ctx, r.ID, map[string]any{"name": "Renamed"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.restaurants.Update(ctx, r.ID, map[string]any{"slug": "brasa"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = f.restaurants.Update(ctx, r.ID, map[string]any{"logo": "data:image/png;base64,@@"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.restaurants.Update(ctx, "missing", map[string]any{"phone": "1"})
	assert.ErrorIs(t, err, compat.ErrRecordNotFound)
}

func TestRestaurantService_SoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Lumiere", "a@lumiere.co")

	require.NoError(t, f.restaurants.Delete(ctx, r.ID, false))

	stored, err := f.restaurants.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotZero(t, stored.DeletedAt)

	active, err := f.restaurants.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.restaurants.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.restaurants.ScopeFor(ctx, r.AdminAccountID)
	assert.ErrorIs(t, err, ErrRestaurantInactive)

	_, payload := f.events.last()
	assert.Equal(t, "soft", payload.Status)
}

func TestRestaurantService_HardDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Lumiere", "a@lumiere.co")

	require.NoError(t, f.restaurants.Delete(ctx, r.ID, true))

	_, err := f.restaurants.Get(ctx, r.ID)
	assert.ErrorIs(t, err, ErrRestaurantNotFound)
	_, err = f.store.Get(ctx, models.CollectionUsers, r.AdminAccountID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	cats, err := f.store.List(ctx, "tenants/Lumiere/categories")
	require.NoError(t, err)
	assert.Empty(t, cats)

	_, err = f.accounts.SignIn(ctx, "a@lumiere.co", "secret1")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	assert.ErrorIs(t, f.restaurants.Delete(ctx, r.ID, true), compat.ErrRecordNotFound)
}

func TestRestaurantService_GetBySlugAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.restaurant(t, "Zeta", "a@zeta.co")
	b := f.restaurant(t, "alpha", "a@alpha.co")

	got, err := f.restaurants.GetBySlug(ctx, " ALPHA ")
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.restaurants.GetBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrRestaurantNotFound)

	list, err := f.restaurants.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
}

func TestRestaurantService_ScopeFor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Lumiere", "a@lumiere.co")

	scope, err := f.restaurants.ScopeFor(ctx, r.AdminAccountID)
	require.NoError(t, err)
	assert.Equal(t, tenant.New(r.ID, "Lumiere"), scope)

	_, err = f.restaurants.ScopeFor(ctx, "unknown")
	assert.ErrorIs(t, err, tenant.ErrNoTenantSelected)
	assert.True(t, strings.Contains(scope.String(), r.ID))
}
