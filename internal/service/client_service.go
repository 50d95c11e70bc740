package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/export"
	"restocrm/internal/legacy"
	"restocrm/internal/logging"
	"restocrm/internal/models"
	"restocrm/internal/pagination"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
)

// Client fields the panel may patch. Contact and timestamps are owned by
// the store.
var clientPatchFields = map[string]bool{
	"name":         true,
	"whatsAppName": true,
	"email":        true,
	"isWAContact":  true,
	"isMyContact":  true,
	"isEnterprise": true,
	"isBusiness":   true,
	"source":       true,
	"labels":       true,
	"fee":          true,
}

// ClientMatcher searches name, email, phone and WhatsApp name.
var ClientMatcher = pagination.MatchFields(func(c models.Client) []string {
	return []string{c.Name, c.Email, c.ContactID, c.WhatsAppName}
})

type ClientService struct {
	records     domain.Records[models.Client]
	pages       *pagination.Registry[models.Client]
	restaurants domain.RestaurantLookup
	sheets      domain.ClientSheetsWriter
	events      publisher
	logger      *zerolog.Logger
}

type ClientServiceOption func(*ClientService)

// WithClientSheets keeps a Google Sheet of the tenant's clients in sync
// after every change.
func WithClientSheets(w domain.ClientSheetsWriter) ClientServiceOption {
	return func(s *ClientService) { s.sheets = w }
}

func NewClientService(
	records domain.Records[models.Client],
	pages *pagination.Registry[models.Client],
	restaurants domain.RestaurantLookup,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
	opts ...ClientServiceOption,
) *ClientService {
	l := logging.Component(logger, "clients")
	s := &ClientService{
		records:     records,
		pages:       pages,
		restaurants: restaurants,
		events:      publisher{bus: eventBus, logger: l},
		logger:      l,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateClient(c *models.Client) error {
	c.ContactID = strings.TrimSpace(c.ContactID)
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)

	if c.ContactID == "" {
		return validationError("contact is required")
	}
	if strings.ContainsAny(c.ContactID, "_/") {
		return validationError("contact must not contain '_' or '/'")
	}
	if c.Name == "" {
		return validationError("name is required")
	}
	if c.Email != "" && !validEmail(c.Email) {
		return validationError("invalid email %q", c.Email)
	}
	if c.Fee < 0 {
		return validationError("fee must not be negative")
	}
	return nil
}

func (s *ClientService) Create(ctx context.Context, scope tenant.Scope, c models.Client) (models.Client, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Client{}, err
	}
	if err := validateClient(&c); err != nil {
		return models.Client{}, err
	}
	if c.Source == "" {
		c.Source = models.SourceManual
	}
	if c.Labels == "" {
		c.Labels = models.LabelRegular
	}

	created, err := s.records.Create(ctx, scope, c)
	if err != nil {
		return models.Client{}, err
	}
	s.changed(ctx, scope, events.EventClientCreated, created)
	return created, nil
}

func (s *ClientService) Update(ctx context.Context, scope tenant.Scope, contact string, patch map[string]any) (models.Client, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Client{}, err
	}
	for k := range patch {
		if !clientPatchFields[k] {
			return models.Client{}, validationError("field %s cannot be changed", k)
		}
	}
	if name, ok := patch["name"].(string); ok && strings.TrimSpace(name) == "" {
		return models.Client{}, validationError("name is required")
	}
	if email, ok := patch["email"].(string); ok && email != "" && !validEmail(email) {
		return models.Client{}, validationError("invalid email %q", email)
	}

	updated, err := s.records.Update(ctx, scope, contact, patch)
	if err != nil {
		return models.Client{}, err
	}
	s.changed(ctx, scope, events.EventClientUpdated, updated)
	return updated, nil
}

func (s *ClientService) Delete(ctx context.Context, scope tenant.Scope, contact string) error {
	if err := s.records.Delete(ctx, scope, contact); err != nil {
		return err
	}
	s.changed(ctx, scope, events.EventClientDeleted, models.Client{ContactID: contact})
	return nil
}

func (s *ClientService) Get(ctx context.Context, scope tenant.Scope, contact string) (models.Client, error) {
	return s.records.GetByID(ctx, scope, contact)
}

// List returns current and legacy clients, newest first.
func (s *ClientService) List(ctx context.Context, scope tenant.Scope) ([]models.Client, error) {
	return s.records.ListAll(ctx, scope)
}

// ListByClassification filters List by vip, corporate or regular.
func (s *ClientService) ListByClassification(ctx context.Context, scope tenant.Scope, class string) ([]models.Client, error) {
	all, err := s.List(ctx, scope)
	if err != nil {
		return nil, err
	}
	class = strings.ToLower(class)
	out := make([]models.Client, 0, len(all))
	for i := range all {
		if all[i].Classification() == class {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (s *ClientService) Page(ctx context.Context, sessionID string, scope tenant.Scope, req domain.PageRequest) (pagination.Page[models.Client], error) {
	return loadPage(ctx, s.pages, sessionID, scope, req)
}

// RecordInteraction counts one contact on channel and reprices the client
// with the restaurant's pricing table.
func (s *ClientService) RecordInteraction(ctx context.Context, scope tenant.Scope, contact, channel string) (models.Client, error) {
	c, err := s.records.GetByID(ctx, scope, contact)
	if err != nil {
		return models.Client{}, err
	}
	c.Interactions.Add(channel, 1)

	patch := map[string]any{"interactions": c.Interactions}
	pricing, err := s.pricing(ctx, scope)
	if err != nil {
		return models.Client{}, err
	}
	if pricing != nil {
		patch["fee"] = c.Interactions.Fee(pricing)
	}

	updated, err := s.records.Update(ctx, scope, contact, patch)
	if err != nil {
		return models.Client{}, err
	}
	s.changed(ctx, scope, events.EventClientUpdated, updated)
	return updated, nil
}

// pricing returns the tenant's interaction pricing, nil when it has none.
func (s *ClientService) pricing(ctx context.Context, scope tenant.Scope) (map[string]int64, error) {
	if s.restaurants == nil || scope.ID == "" {
		return nil, nil
	}
	r, err := s.restaurants.Get(ctx, scope.ID)
	if errors.Is(err, ErrRestaurantNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(r.Config.InteractionPricing) == 0 {
		return nil, nil
	}
	return r.Config.InteractionPricing, nil
}

func (s *ClientService) ExportWorkbook(ctx context.Context, scope tenant.Scope, w io.Writer) error {
	clients, err := s.List(ctx, scope)
	if err != nil {
		return err
	}
	return export.WriteClientsWorkbook(w, clients)
}

// SaveWorkbook writes the export under dir and returns the file path.
func (s *ClientService) SaveWorkbook(ctx context.Context, scope tenant.Scope, dir string) (string, error) {
	clients, err := s.List(ctx, scope)
	if err != nil {
		return "", err
	}
	return export.SaveClientsWorkbook(dir, scope.Segment(), clients, time.Now())
}

func (s *ClientService) LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error) {
	return s.records.Reconcile(ctx, scope)
}

// SyncSheet replaces the tenant's sheet with the full client list.
func (s *ClientService) SyncSheet(ctx context.Context, scope tenant.Scope) error {
	if s.sheets == nil {
		return nil
	}
	clients, err := s.List(ctx, scope)
	if err != nil {
		return err
	}
	if err := s.sheets.ReplaceClients(ctx, scope.Segment(), clients); err != nil {
		return fmt.Errorf("sync clients sheet: %w", err)
	}
	return nil
}

func (s *ClientService) changed(ctx context.Context, scope tenant.Scope, eventType string, c models.Client) {
	s.events.publish(eventType, events.RecordPayload{
		Tenant: scope.Segment(),
		Entity: models.CollectionClients,
		ID:     c.ContactID,
		Name:   c.Name,
		Status: c.Classification(),
	})
	if s.sheets != nil {
		if err := s.SyncSheet(ctx, scope); err != nil {
			s.logger.Warn().Err(err).Str("tenant", scope.Segment()).Msg("clients sheet is stale")
		}
	}
}
