package service

import (
	"context"
	"testing"

	"restocrm/internal/compat"
	"restocrm/internal/events"
	"restocrm/internal/legacy"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")

	o, err := f.orders.Create(ctx, scope, models.Order{
		Contact:     "573001112233",
		ContactName: "Juan",
		OrderType:   "Domicilio",
		Address:     "Calle 10 # 5-20",
		Summary:     "2 hamburguesas",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, models.OrderDelivery, o.OrderType)
	assert.Equal(t, models.OrderPending, o.Status)

	typ, payload := f.events.last()
	assert.Equal(t, events.EventOrderCreated, typ)
	assert.Equal(t, "2 hamburguesas", payload.Details)
}

func TestOrderService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")

	tests := []struct {
		name string
		o    models.Order
	}{
		{"no contact", models.Order{OrderType: models.OrderPickup}},
		{"no type", models.Order{Contact: "1"}},
		{"unknown type", models.Order{Contact: "1", OrderType: "drone"}},
		{"delivery without address", models.Order{Contact: "1", OrderType: models.OrderDelivery}},
		{"pickup with address", models.Order{Contact: "1", OrderType: models.OrderPickup, Address: "Calle 1"}},
		{"unknown status", models.Order{Contact: "1", OrderType: models.OrderPickup, Status: "lost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.Create(ctx, scope, tt.o)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestOrderService_RestaurantAllowList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.restaurant(t, "Lumiere", "a@lumiere.co")
	_, err := f.restaurants.Update(ctx, r.ID, map[string]any{
		"config": map[string]any{
			"orderTypes":    []any{models.OrderPickup},
			"orderStatuses": []any{models.OrderPending, "ready"},
		},
	})
	require.NoError(t, err)
	scope := tenant.New(r.ID, r.Name)

	_, err = f.orders.Create(ctx, scope, models.Order{Contact: "1", OrderType: models.OrderDelivery, Address: "Calle 1"})
	assert.ErrorIs(t, err, ErrValidation)

	o, err := f.orders.Create(ctx, scope, models.Order{Contact: "1", OrderType: "para recoger"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderPickup, o.OrderType)

	o, err = f.orders.SetStatus(ctx, scope, o.ID, "ready")
	require.NoError(t, err)
	assert.Equal(t, "ready", o.Status)

	_, err = f.orders.SetStatus(ctx, scope, o.ID, models.OrderDelivered)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestOrderService_Update(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	o, err := f.orders.Create(ctx, scope, models.Order{Contact: "1", OrderType: models.OrderDelivery, Address: "Calle 1"})
	require.NoError(t, err)

	// switching away from delivery clears the address
	updated, err := f.orders.Update(ctx, scope, o.ID, map[string]any{"orderType": "mesa"})
	require.NoError(t, err)
	assert.Equal(t, models.OrderEatIn, updated.OrderType)
	assert.Empty(t, updated.Address)

	_, err = f.orders.Update(ctx, scope, o.ID, map[string]any{"orderType": models.OrderDelivery})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err = f.orders.Update(ctx, scope, o.ID, map[string]any{"orderType": models.OrderDelivery, "address": "Calle 2"})
	require.NoError(t, err)
	assert.Equal(t, "Calle 2", updated.Address)

	_, err = f.orders.Update(ctx, scope, o.ID, map[string]any{"status": "lost"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.orders.Update(ctx, scope, o.ID, map[string]any{"createdAt": 1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.orders.Update(ctx, scope, "missing", map[string]any{"summary": "x"})
	assert.ErrorIs(t, err, compat.ErrRecordNotFound)
}

func TestOrderService_ContactIsFixed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	o, err := f.orders.Create(ctx, scope, models.Order{Contact: "5701", ContactName: "Ana", OrderType: models.OrderPickup, Summary: "pan"})
	require.NoError(t, err)

	_, err = f.orders.Update(ctx, scope, o.ID, map[string]any{"contact": "5702"})
	assert.ErrorIs(t, err, ErrValidation)

	forms, err := f.store.List(ctx, "tenants/shared/forms")
	require.NoError(t, err)
	rebuilt, _ := legacy.ReconstructOrders(forms)
	require.Len(t, rebuilt, 1)
	assert.Equal(t, "5701", rebuilt[0].Contact)

	got, err := f.orders.Get(ctx, scope, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "5701", got.Contact)
}

func TestOrderService_UpdateKeepsForeignStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	o, err := f.orders.Create(ctx, scope, models.Order{Contact: "1", OrderType: models.OrderPickup})
	require.NoError(t, err)

	// a status written outside the panel does not block unrelated edits
	require.NoError(t, f.store.Update(ctx, "tenants/Lumiere/orders", o.ID, map[string]any{"status": "bot-hold"}))
	updated, err := f.orders.Update(ctx, scope, o.ID, map[string]any{"summary": "1 café"})
	require.NoError(t, err)
	assert.Equal(t, "bot-hold", updated.Status)
	assert.Equal(t, "1 café", updated.Summary)
}

func TestOrderService_DeleteAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := tenant.New("r1", "Lumiere")
	o, err := f.orders.Create(ctx, scope, models.Order{Contact: "1", OrderType: models.OrderPickup})
	require.NoError(t, err)

	list, err := f.orders.List(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, f.orders.Delete(ctx, scope, o.ID))
	list, err = f.orders.List(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 1, f.events.count(events.EventOrderDeleted))
}
