package service

import (
	"context"
	"errors"
	"strings"

	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/legacy"
	"restocrm/internal/logging"
	"restocrm/internal/models"
	"restocrm/internal/pagination"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
)

// contact is part of the legacy document key and cannot be patched.
var orderPatchFields = map[string]bool{
	"contactName": true,
	"orderType":   true,
	"summary":     true,
	"address":     true,
	"status":      true,
}

var OrderMatcher = pagination.MatchFields(func(o models.Order) []string {
	return []string{o.ContactName, o.Contact, o.Summary, o.Address, o.Status}
})

type OrderService struct {
	records     domain.Records[models.Order]
	pages       *pagination.Registry[models.Order]
	restaurants domain.RestaurantLookup
	events      publisher
	logger      *zerolog.Logger
}

func NewOrderService(
	records domain.Records[models.Order],
	pages *pagination.Registry[models.Order],
	restaurants domain.RestaurantLookup,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *OrderService {
	l := logging.Component(logger, "orders")
	return &OrderService{
		records:     records,
		pages:       pages,
		restaurants: restaurants,
		events:      publisher{bus: eventBus, logger: l},
		logger:      l,
	}
}

// config returns the tenant's restaurant config; the zero config allows the
// default order types and statuses.
func (s *OrderService) config(ctx context.Context, scope tenant.Scope) (models.RestaurantConfig, error) {
	if s.restaurants == nil || scope.ID == "" {
		return models.RestaurantConfig{}, nil
	}
	r, err := s.restaurants.Get(ctx, scope.ID)
	if errors.Is(err, ErrRestaurantNotFound) {
		return models.RestaurantConfig{}, nil
	}
	if err != nil {
		return models.RestaurantConfig{}, err
	}
	return r.Config, nil
}

// validateOrder checks o against cfg. Stored statuses written by the bot are
// only checked when checkStatus is set.
func validateOrder(o *models.Order, cfg models.RestaurantConfig, checkStatus bool) error {
	o.Contact = strings.TrimSpace(o.Contact)
	o.Address = strings.TrimSpace(o.Address)
	o.OrderType = legacy.NormalizeOrderType(o.OrderType)
	o.Status = strings.TrimSpace(o.Status)

	if o.Contact == "" {
		return validationError("contact is required")
	}
	if o.OrderType == "" {
		return validationError("orderType is required")
	}
	if !cfg.AllowsOrderType(o.OrderType) {
		return validationError("order type %q is not offered", o.OrderType)
	}
	// адрес обязателен только для доставки
	if o.OrderType == models.OrderDelivery && o.Address == "" {
		return validationError("address is required for delivery")
	}
	if o.OrderType != models.OrderDelivery && o.Address != "" {
		return validationError("address is only accepted for delivery")
	}
	if checkStatus && !cfg.AllowsOrderStatus(o.Status) {
		return validationError("unknown order status %q", o.Status)
	}
	return nil
}

func (s *OrderService) Create(ctx context.Context, scope tenant.Scope, o models.Order) (models.Order, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Order{}, err
	}
	cfg, err := s.config(ctx, scope)
	if err != nil {
		return models.Order{}, err
	}
	if strings.TrimSpace(o.Status) == "" {
		o.Status = models.OrderPending
	}
	if err := validateOrder(&o, cfg, true); err != nil {
		return models.Order{}, err
	}
	o.ID = ""
	o.LegacyID = ""

	created, err := s.records.Create(ctx, scope, o)
	if err != nil {
		return models.Order{}, err
	}
	s.publish(scope, events.EventOrderCreated, created)
	return created, nil
}

// Update validates the merged order before anything is written.
func (s *OrderService) Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (models.Order, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Order{}, err
	}
	for k := range patch {
		if !orderPatchFields[k] {
			return models.Order{}, validationError("field %s cannot be changed", k)
		}
	}

	prev, err := s.records.GetByID(ctx, scope, id)
	if err != nil {
		return models.Order{}, err
	}
	merged := prev
	if v, ok := patch["orderType"].(string); ok {
		merged.OrderType = v
		if _, set := patch["address"]; !set && legacy.NormalizeOrderType(v) != models.OrderDelivery {
			merged.Address = ""
		}
	}
	if v, ok := patch["address"].(string); ok {
		merged.Address = v
	}
	if v, ok := patch["status"].(string); ok {
		merged.Status = v
	}
	cfg, err := s.config(ctx, scope)
	if err != nil {
		return models.Order{}, err
	}
	_, statusChanged := patch["status"]
	if err := validateOrder(&merged, cfg, statusChanged); err != nil {
		return models.Order{}, err
	}
	if _, ok := patch["orderType"]; ok {
		patch["orderType"] = merged.OrderType
	}
	if merged.OrderType != models.OrderDelivery {
		patch["address"] = ""
	}

	updated, err := s.records.Update(ctx, scope, id, patch)
	if err != nil {
		return models.Order{}, err
	}
	s.publish(scope, events.EventOrderUpdated, updated)
	return updated, nil
}

func (s *OrderService) SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (models.Order, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Order{}, err
	}
	cfg, err := s.config(ctx, scope)
	if err != nil {
		return models.Order{}, err
	}
	status = strings.TrimSpace(status)
	if !cfg.AllowsOrderStatus(status) {
		return models.Order{}, validationError("unknown order status %q", status)
	}
	updated, err := s.records.Update(ctx, scope, id, map[string]any{"status": status})
	if err != nil {
		return models.Order{}, err
	}
	s.publish(scope, events.EventOrderStatus, updated)
	return updated, nil
}

func (s *OrderService) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := s.records.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.publish(scope, events.EventOrderDeleted, models.Order{ID: id})
	return nil
}

func (s *OrderService) Get(ctx context.Context, scope tenant.Scope, id string) (models.Order, error) {
	return s.records.GetByID(ctx, scope, id)
}

func (s *OrderService) List(ctx context.Context, scope tenant.Scope) ([]models.Order, error) {
	return s.records.ListAll(ctx, scope)
}

func (s *OrderService) Page(ctx context.Context, sessionID string, scope tenant.Scope, req domain.PageRequest) (pagination.Page[models.Order], error) {
	return loadPage(ctx, s.pages, sessionID, scope, req)
}

func (s *OrderService) LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error) {
	return s.records.Reconcile(ctx, scope)
}

func (s *OrderService) publish(scope tenant.Scope, eventType string, o models.Order) {
	s.events.publish(eventType, events.RecordPayload{
		Tenant:  scope.Segment(),
		Entity:  models.CollectionOrders,
		ID:      o.ID,
		Name:    o.ContactName,
		Status:  o.Status,
		Details: o.Summary,
	})
}
