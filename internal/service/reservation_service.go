package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/legacy"
	"restocrm/internal/logging"
	"restocrm/internal/models"
	"restocrm/internal/pagination"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
)

// contact keys the legacy document, so it is fixed at creation.
var reservationPatchFields = map[string]bool{
	"contactNameBooking": true,
	"peopleBooking":      true,
	"finalPeopleBooking": true,
	"dateBooking":        true,
	"statusBooking":      true,
	"detailsBooking":     true,
	"reconfirmDate":      true,
	"reconfirmStatus":    true,
}

var ReservationMatcher = pagination.MatchFields(func(r models.Reservation) []string {
	return []string{r.ContactNameBooking, r.Contact, r.StatusBooking, r.DetailsBooking}
})

type ReservationService struct {
	records domain.Records[models.Reservation]
	pages   *pagination.Registry[models.Reservation]
	events  publisher
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewReservationService(
	records domain.Records[models.Reservation],
	pages *pagination.Registry[models.Reservation],
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReservationService {
	l := logging.Component(logger, "reservations")
	return &ReservationService{
		records: records,
		pages:   pages,
		events:  publisher{bus: eventBus, logger: l},
		logger:  l,
		now:     time.Now,
	}
}

// normalizeReservation fills the party size and renders the date as RFC3339.
func (s *ReservationService) normalizeReservation(r *models.Reservation) error {
	r.Contact = strings.TrimSpace(r.Contact)
	r.ContactNameBooking = strings.TrimSpace(r.ContactNameBooking)
	if r.Contact == "" {
		return validationError("contact is required")
	}
	if r.ContactNameBooking == "" {
		return validationError("contactNameBooking is required")
	}
	if r.FinalPeopleBooking <= 0 {
		r.FinalPeopleBooking = legacy.LeadingInt(r.PeopleBooking)
	}
	if r.FinalPeopleBooking < 0 {
		return validationError("finalPeopleBooking must not be negative")
	}
	if r.PeopleBooking == "" && r.FinalPeopleBooking > 0 {
		r.PeopleBooking = fmt.Sprint(r.FinalPeopleBooking)
	}
	if strings.TrimSpace(r.DateBooking) == "" {
		return validationError("dateBooking is required")
	}
	r.DateBooking = legacy.CoerceDate(r.DateBooking, "", s.now().UnixMilli())
	return nil
}

func (s *ReservationService) Create(ctx context.Context, scope tenant.Scope, r models.Reservation) (models.Reservation, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Reservation{}, err
	}
	if err := s.normalizeReservation(&r); err != nil {
		return models.Reservation{}, err
	}
	if strings.TrimSpace(r.StatusBooking) == "" {
		r.StatusBooking = models.ReservationPending
	}
	r.ID = ""
	r.LegacyID = ""

	created, err := s.records.Create(ctx, scope, r)
	if err != nil {
		return models.Reservation{}, err
	}
	s.publish(scope, events.EventReservationCreated, created)
	return created, nil
}

func (s *ReservationService) Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (models.Reservation, error) {
	if err := tenant.Require(scope); err != nil {
		return models.Reservation{}, err
	}
	for k := range patch {
		if !reservationPatchFields[k] {
			return models.Reservation{}, validationError("field %s cannot be changed", k)
		}
	}
	if date, ok := patch["dateBooking"].(string); ok {
		if strings.TrimSpace(date) == "" {
			return models.Reservation{}, validationError("dateBooking is required")
		}
		patch["dateBooking"] = legacy.CoerceDate(date, "", s.now().UnixMilli())
	}
	if people, ok := patch["peopleBooking"].(string); ok {
		if _, set := patch["finalPeopleBooking"]; !set {
			patch["finalPeopleBooking"] = legacy.LeadingInt(people)
		}
	}

	updated, err := s.records.Update(ctx, scope, id, patch)
	if err != nil {
		return models.Reservation{}, err
	}
	s.publish(scope, events.EventReservationUpdated, updated)
	return updated, nil
}

// SetStatus stores any non-empty status; the panel reads pending, accepted
// and rejected but the bot writes its own values too.
func (s *ReservationService) SetStatus(ctx context.Context, scope tenant.Scope, id, status string) (models.Reservation, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		return models.Reservation{}, validationError("status is required")
	}
	updated, err := s.records.Update(ctx, scope, id, map[string]any{"statusBooking": status})
	if err != nil {
		return models.Reservation{}, err
	}
	s.publish(scope, events.EventReservationStatus, updated)
	return updated, nil
}

func (s *ReservationService) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	if err := s.records.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.publish(scope, events.EventReservationDeleted, models.Reservation{ID: id})
	return nil
}

func (s *ReservationService) Get(ctx context.Context, scope tenant.Scope, id string) (models.Reservation, error) {
	return s.records.GetByID(ctx, scope, id)
}

func (s *ReservationService) List(ctx context.Context, scope tenant.Scope) ([]models.Reservation, error) {
	return s.records.ListAll(ctx, scope)
}

func (s *ReservationService) Page(ctx context.Context, sessionID string, scope tenant.Scope, req domain.PageRequest) (pagination.Page[models.Reservation], error) {
	return loadPage(ctx, s.pages, sessionID, scope, req)
}

func (s *ReservationService) LegacyReport(ctx context.Context, scope tenant.Scope) (legacy.Report, error) {
	return s.records.Reconcile(ctx, scope)
}

func (s *ReservationService) publish(scope tenant.Scope, eventType string, r models.Reservation) {
	details := ""
	if r.DateBooking != "" {
		details = fmt.Sprintf("%s · %d personas", r.DateBooking, r.FinalPeopleBooking)
	}
	s.events.publish(eventType, events.RecordPayload{
		Tenant:  scope.Segment(),
		Entity:  models.CollectionReservations,
		ID:      r.ID,
		Name:    r.ContactNameBooking,
		Status:  r.StatusBooking,
		Details: details,
	})
}
