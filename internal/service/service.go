package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"restocrm/internal/docstore"
	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/pagination"
	"restocrm/internal/tenant"

	"github.com/rs/zerolog"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrSlugTaken  = errors.New("slug already taken")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// publisher sends record events; a nil bus drops them.
type publisher struct {
	bus    domain.EventPublisher
	logger *zerolog.Logger
}

func (p publisher) publish(eventType string, payload events.RecordPayload) {
	if p.bus == nil {
		return
	}
	if err := p.bus.PublishJSON(eventType, payload); err != nil {
		p.logger.Error().Err(err).Str("event_type", eventType).Str("id", payload.ID).Msg("publish event error")
	}
}

// loadPage applies req to the session's paginator. Relative moves and
// page jumps reuse the paginator's cursors while the term and page size are
// unchanged; anything else starts over from page 1.
func loadPage[T any](ctx context.Context, reg *pagination.Registry[T], sessionID string, scope tenant.Scope, req domain.PageRequest) (pagination.Page[T], error) {
	p, err := reg.Get(sessionID, scope)
	if err != nil {
		return pagination.Page[T]{}, err
	}

	term := strings.ToLower(strings.TrimSpace(req.Query))
	state := p.State()
	same := state.CurrentPage > 0 && p.SearchTerm() == term && (req.Size <= 0 || req.Size == state.PageSize)
	size := req.Size
	if size <= 0 {
		size = state.PageSize
	}

	switch req.Mode {
	case "next":
		if same {
			return p.LoadNextPage(ctx)
		}
	case "prev":
		if same {
			return p.LoadPreviousPage(ctx)
		}
	case "":
		if same && req.Page > 1 {
			return p.GoToPage(ctx, req.Page)
		}
	default:
		return pagination.Page[T]{}, validationError("unknown paging mode %q", req.Mode)
	}

	var page pagination.Page[T]
	if term != "" {
		page, err = p.Search(ctx, term, size)
	} else {
		page, err = p.LoadFirstPage(ctx, size)
	}
	if err != nil || req.Page <= 1 || req.Mode != "" {
		return page, err
	}
	return p.GoToPage(ctx, req.Page)
}

// NewPageRegistry keeps per-session paginators over a tenant collection.
func NewPageRegistry[T any](store docstore.Store, collection string, match pagination.Matcher[T], idle time.Duration, logger *zerolog.Logger, opts ...pagination.Option[T]) *pagination.Registry[T] {
	opts = append([]pagination.Option[T]{
		pagination.WithView[T](collection),
		pagination.WithLogger[T](logger),
	}, opts...)
	return pagination.NewRegistry[T](func(scope tenant.Scope) (*pagination.Paginator[T], error) {
		return pagination.New[T](store, scope, collection, nil, match, opts...)
	}, idle)
}
