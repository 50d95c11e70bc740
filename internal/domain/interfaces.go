package domain

import (
	"context"
	"io"

	"restocrm/internal/identity"
	"restocrm/internal/legacy"
	"restocrm/internal/models"
	"restocrm/internal/pagination"
	"restocrm/internal/tenant"
)

// Records is the tenant-scoped record store; *compat.Mirror implements it.
type Records[T any] interface {
	Create(ctx context.Context, scope tenant.Scope, rec T) (T, error)
	Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (T, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
	GetByID(ctx context.Context, scope tenant.Scope, id string) (T, error)
	ListAll(ctx context.Context, scope tenant.Scope) ([]T, error)
	Reconcile(ctx context.Context, scope tenant.Scope) (legacy.Report, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type AccountProvider interface {
	identity.Provider
	Delete(ctx context.Context, id string) error
}

type ClientSheetsWriter interface {
	ReplaceClients(ctx context.Context, tenantName string, clients []models.Client) error
}

// RestaurantLookup resolves the restaurant behind a tenant scope.
type RestaurantLookup interface {
	Get(ctx context.Context, id string) (*models.Restaurant, error)
}

// PageRequest selects a page of a listing. Mode "next" and "prev" move
// relative to the session's current page; otherwise Page is loaded.
type PageRequest struct {
	Page  int
	Size  int
	Query string
	Mode  string
}

type ClientService interface {
	Create(ctx context.Context, scope tenant.Scope, client models.Client) (models.Client, error)
	Update(ctx context.Context, scope tenant.Scope, contact string, patch map[string]any) (models.Client, error)
	Delete(ctx context.Context, scope tenant.Scope, contact string) error
	Get(ctx context.Context, scope tenant.Scope, contact string) (models.Client, error)
	List(ctx context.Context, scope tenant.Scope) ([]models.Client, error)
	Page(ctx context.Context, sessionID string, scope tenant.Scope, req PageRequest) (pagination.Page[models.Client], error)
	RecordInteraction(ctx context.Context, scope tenant.Scope, contact, channel string) (models.Client, error)
	ExportWorkbook(ctx context.Context, scope tenant.Scope, w io.Writer) error
	SaveWorkbook(ctx context.Context, scope tenant.Scope, dir string) (string, error)
	SyncSheet(ctx context.Context, scope tenant.Scope) error
	LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error)
}

type ReservationService interface {
	Create(ctx context.Context, scope tenant.Scope, r models.Reservation) (models.Reservation, error)
	Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (models.Reservation, error)
	SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (models.Reservation, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
	Get(ctx context.Context, scope tenant.Scope, id string) (models.Reservation, error)
	List(ctx context.Context, scope tenant.Scope) ([]models.Reservation, error)
	Page(ctx context.Context, sessionID string, scope tenant.Scope, req PageRequest) (pagination.Page[models.Reservation], error)
	LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error)
}

type OrderService interface {
	Create(ctx context.Context, scope tenant.Scope, o models.Order) (models.Order, error)
	Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (models.Order, error)
	SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (models.Order, error)
	Delete(ctx context.Context, scope tenant.Scope, id string) error
	Get(ctx context.Context, scope tenant.Scope, id string) (models.Order, error)
	List(ctx context.Context, scope tenant.Scope) ([]models.Order, error)
	Page(ctx context.Context, sessionID string, scope tenant.Scope, req PageRequest) (pagination.Page[models.Order], error)
	LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error)
}

type RestaurantService interface {
	Create(ctx context.Context, in models.NewRestaurant) (*models.Restaurant, error)
	Update(ctx context.Context, id string, patch map[string]any) (*models.Restaurant, error)
	Delete(ctx context.Context, id string, hard bool) error
	Get(ctx context.Context, id string) (*models.Restaurant, error)
	GetBySlug(ctx context.Context, slug string) (*models.Restaurant, error)
	List(ctx context.Context, includeInactive bool) ([]models.Restaurant, error)
}

type SessionService interface {
	SignIn(ctx context.Context, email, password string) (*tenant.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}
