package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"restocrm/internal/compat"
	"restocrm/internal/docstore"
	"restocrm/internal/domain"
	"restocrm/internal/events"
	"restocrm/internal/logging"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrRestaurantNotFound = fmt.Errorf("restaurant %w", compat.ErrRecordNotFound)
	ErrRestaurantInactive = errors.New("restaurant is inactive")
)

const (
	maxLogoBytes = 512 << 10
	roleAdmin    = "admin"
)

var (
	slugRe  = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	clockRe = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)
	logoRe  = regexp.MustCompile(`^data:image/(png|jpeg|jpg|gif|webp|svg\+xml);base64,(.+)$`)
)

// Fields the admin panel may not patch.
var frozenRestaurantFields = []string{"id", "createdAt", "adminAccountId", "deletedAt", "name"}

type RestaurantService struct {
	store    docstore.Store
	accounts domain.AccountProvider
	events   publisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewRestaurantService(store docstore.Store, accounts domain.AccountProvider, eventBus domain.EventPublisher, logger *zerolog.Logger) *RestaurantService {
	l := logging.Component(logger, "restaurants")
	return &RestaurantService{
		store:    store,
		accounts: accounts,
		events:   publisher{bus: eventBus, logger: l},
		logger:   l,
		now:      time.Now,
	}
}

var slugReplacer = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"í", "i", "ì", "i", "î", "i", "ï", "i",
	"ó", "o", "ò", "o", "ô", "o", "ö", "o",
	"ú", "u", "ù", "u", "û", "u", "ü", "u",
	"ñ", "n", "ç", "c",
)

// Slugify derives a URL slug from a restaurant name.
func Slugify(name string) string {
	s := slugReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ValidateLogo accepts an empty value, an http(s) URL or a base64 image
// data URL.
func ValidateLogo(logo string) error {
	if logo == "" {
		return nil
	}
	if strings.HasPrefix(logo, "data:") {
		m := logoRe.FindStringSubmatch(logo)
		if m == nil {
			return validationError("logo must be a base64 image data URL")
		}
		raw, err := base64.StdEncoding.DecodeString(m[2])
		if err != nil {
			return validationError("logo is not valid base64")
		}
		if len(raw) > maxLogoBytes {
			return validationError("logo exceeds %d bytes", maxLogoBytes)
		}
		return nil
	}
	u, err := url.Parse(logo)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationError("logo must be an http(s) URL or a data URL")
	}
	return nil
}

func validateRestaurant(r *models.Restaurant) error {
	if strings.TrimSpace(r.Name) == "" {
		return validationError("name is required")
	}
	if strings.Contains(r.Name, "/") {
		return validationError("name must not contain '/'")
	}
	if !slugRe.MatchString(r.Slug) {
		return validationError("invalid slug %q", r.Slug)
	}
	if r.Email != "" && !validEmail(r.Email) {
		return validationError("invalid email %q", r.Email)
	}
	for _, c := range []string{r.PrimaryColor, r.SecondaryColor} {
		if c != "" && !colorRe.MatchString(c) {
			return validationError("invalid color %q", c)
		}
	}
	if err := ValidateLogo(r.Logo); err != nil {
		return err
	}

	s := r.Config.BotSchedule
	if s.Enabled && (!clockRe.MatchString(s.OpenAt) || !clockRe.MatchString(s.CloseAt)) {
		return validationError("bot schedule needs HH:MM opening and closing times")
	}
	for channel, price := range r.Config.InteractionPricing {
		if price < 0 {
			return validationError("negative price for channel %s", channel)
		}
	}
	return nil
}

func applyRestaurantDefaults(r *models.Restaurant) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Slug == "" {
		r.Slug = Slugify(r.Name)
	}
	if len(r.Config.OrderTypes) == 0 {
		r.Config.OrderTypes = append([]string(nil), models.DefaultOrderTypes...)
	}
	if len(r.Config.OrderStatuses) == 0 {
		r.Config.OrderStatuses = append([]string(nil), models.DefaultOrderStatuses...)
	}
}

func (s *RestaurantService) findBy(ctx context.Context, field, value string) ([]models.Restaurant, error) {
	docs, err := s.store.Query(ctx, docstore.Query{
		Collection: models.CollectionRestaurants,
		Where:      []docstore.Filter{{Field: field, Value: value}},
	})
	if err != nil {
		return nil, fmt.Errorf("query restaurants by %s: %w", field, err)
	}
	out := make([]models.Restaurant, 0, len(docs))
	for _, doc := range docs {
		var r models.Restaurant
		if err := docstore.Decode(doc, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *RestaurantService) checkUnique(ctx context.Context, r *models.Restaurant) error {
	same, err := s.findBy(ctx, "slug", r.Slug)
	if err != nil {
		return err
	}
	for _, other := range same {
		if other.ID != r.ID {
			return fmt.Errorf("%w: %s", ErrSlugTaken, r.Slug)
		}
	}

	all, err := s.List(ctx, true)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID != r.ID && strings.EqualFold(other.Name, r.Name) {
			return validationError("restaurant name %q is already used", r.Name)
		}
	}
	return nil
}

// Create provisions a restaurant with its admin account and default menu
// categories. The restaurant, admin link and categories are written in one
// batch; the account is removed again when the batch fails.
func (s *RestaurantService) Create(ctx context.Context, in models.NewRestaurant) (*models.Restaurant, error) {
	r := in.Restaurant
	applyRestaurantDefaults(&r)
	r.ID = ""
	if err := validateRestaurant(&r); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, &r); err != nil {
		return nil, err
	}

	account, err := s.accounts.CreateAccount(ctx, in.AdminEmail, in.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("create admin account: %w", err)
	}

	now := s.now().UnixMilli()
	r.ID = uuid.NewString()
	r.IsActive = true
	r.AdminAccountID = account.ID
	r.CreatedAt, r.UpdatedAt = now, now
	r.DeletedAt = 0

	writes, err := s.provisionWrites(&r, account.Email, now)
	if err == nil {
		err = s.store.Batch(ctx, writes)
	}
	if err != nil {
		if delErr := s.accounts.Delete(ctx, account.ID); delErr != nil {
			s.logger.Error().Err(delErr).Str("account_id", account.ID).Msg("failed to remove orphaned admin account")
		}
		return nil, fmt.Errorf("provision restaurant: %w", err)
	}

	s.logger.Info().Str("restaurant_id", r.ID).Str("slug", r.Slug).Msg("restaurant created")
	s.events.publish(events.EventRestaurantCreated, events.RecordPayload{
		Tenant: r.Name, Entity: models.CollectionRestaurants, ID: r.ID, Name: r.Name, Details: r.Slug,
	})
	return &r, nil
}

func (s *RestaurantService) provisionWrites(r *models.Restaurant, adminEmail string, now int64) ([]docstore.Write, error) {
	data, err := docstore.Encode(r)
	if err != nil {
		return nil, err
	}
	admin, err := docstore.Encode(models.AdminUser{
		AccountID:    r.AdminAccountID,
		Email:        adminEmail,
		RestaurantID: r.ID,
		Role:         roleAdmin,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	writes := []docstore.Write{
		{Op: docstore.OpSet, Collection: models.CollectionRestaurants, ID: r.ID, Data: data},
		{Op: docstore.OpSet, Collection: models.CollectionUsers, ID: r.AdminAccountID, Data: admin},
	}

	categories, err := tenant.New(r.ID, r.Name).Collection(models.CollectionCategories)
	if err != nil {
		return nil, err
	}
	for i, name := range models.DefaultCategories {
		cat := models.Category{ID: uuid.NewString(), Name: name, SortOrder: i + 1, CreatedAt: now}
		c, err := docstore.Encode(cat)
		if err != nil {
			return nil, err
		}
		writes = append(writes, docstore.Write{Op: docstore.OpSet, Collection: categories, ID: cat.ID, Data: c})
	}
	return writes, nil
}

// Update merges patch into the restaurant. Nested objects such as config
// are merged key by key.
func (s *RestaurantService) Update(ctx context.Context, id string, patch map[string]any) (*models.Restaurant, error) {
	for _, f := range frozenRestaurantFields {
		if _, ok := patch[f]; ok {
			return nil, validationError("field %s cannot be changed", f)
		}
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := docstore.Encode(current)
	if err != nil {
		return nil, err
	}
	var r models.Restaurant
	if err := docstore.DecodeMap(deepMerge(data, patch), &r); err != nil {
		return nil, validationError("%v", err)
	}

	if err := validateRestaurant(&r); err != nil {
		return nil, err
	}
	if r.Slug != current.Slug {
		if err := s.checkUnique(ctx, &r); err != nil {
			return nil, err
		}
	}
	r.UpdatedAt = s.now().UnixMilli()

	if err := s.put(ctx, &r); err != nil {
		return nil, err
	}
	s.events.publish(events.EventRestaurantUpdated, events.RecordPayload{
		Tenant: r.Name, Entity: models.CollectionRestaurants, ID: r.ID, Name: r.Name,
	})
	return &r, nil
}

func deepMerge(dst, patch map[string]any) map[string]any {
	for k, v := range patch {
		if pm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dm, pm)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// Delete deactivates the restaurant, or with hard removes it together with
// its admin link, categories and admin account. Tenant records are left
// in place.
func (s *RestaurantService) Delete(ctx context.Context, id string, hard bool) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	mode := "soft"
	if !hard {
		r.IsActive = false
		r.DeletedAt = s.now().UnixMilli()
		r.UpdatedAt = r.DeletedAt
		if err := s.put(ctx, r); err != nil {
			return err
		}
	} else {
		mode = "hard"
		if err := s.purge(ctx, r); err != nil {
			return err
		}
	}

	s.logger.Info().Str("restaurant_id", id).Str("mode", mode).Msg("restaurant deleted")
	s.events.publish(events.EventRestaurantDeleted, events.RecordPayload{
		Tenant: r.Name, Entity: models.CollectionRestaurants, ID: r.ID, Name: r.Name, Status: mode,
	})
	return nil
}

func (s *RestaurantService) purge(ctx context.Context, r *models.Restaurant) error {
	writes := []docstore.Write{{Op: docstore.OpDelete, Collection: models.CollectionRestaurants, ID: r.ID}}
	if r.AdminAccountID != "" {
		writes = append(writes, docstore.Write{Op: docstore.OpDelete, Collection: models.CollectionUsers, ID: r.AdminAccountID})
	}

	categories, err := tenant.New(r.ID, r.Name).Collection(models.CollectionCategories)
	if err != nil {
		return err
	}
	docs, err := s.store.List(ctx, categories)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, doc := range docs {
		writes = append(writes, docstore.Write{Op: docstore.OpDelete, Collection: categories, ID: doc.ID})
	}

	if err := s.store.Batch(ctx, writes); err != nil {
		return fmt.Errorf("delete restaurant: %w", err)
	}
	if r.AdminAccountID != "" {
		if err := s.accounts.Delete(ctx, r.AdminAccountID); err != nil {
			s.logger.Error().Err(err).Str("account_id", r.AdminAccountID).Msg("failed to delete admin account")
		}
	}
	return nil
}

func (s *RestaurantService) put(ctx context.Context, r *models.Restaurant) error {
	data, err := docstore.Encode(r)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, models.CollectionRestaurants, r.ID, data); err != nil {
		return fmt.Errorf("save restaurant: %w", err)
	}
	return nil
}

func (s *RestaurantService) Get(ctx context.Context, id string) (*models.Restaurant, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrRestaurantNotFound
	}
	doc, err := s.store.Get(ctx, models.CollectionRestaurants, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRestaurantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant: %w", err)
	}
	var r models.Restaurant
	if err := docstore.Decode(*doc, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RestaurantService) GetBySlug(ctx context.Context, slug string) (*models.Restaurant, error) {
	found, err := s.findBy(ctx, "slug", strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: slug %s", ErrRestaurantNotFound, slug)
	}
	return &found[0], nil
}

// List returns restaurants sorted by name.
func (s *RestaurantService) List(ctx context.Context, includeInactive bool) ([]models.Restaurant, error) {
	docs, err := s.store.List(ctx, models.CollectionRestaurants)
	if err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	out := make([]models.Restaurant, 0, len(docs))
	for _, doc := range docs {
		var r models.Restaurant
		if err := docstore.Decode(doc, &r); err != nil {
			s.logger.Warn().Err(err).Str("id", doc.ID).Msg("skipping undecodable restaurant")
			continue
		}
		if r.IsActive || includeInactive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// ScopeFor returns the tenant an admin account manages.
func (s *RestaurantService) ScopeFor(ctx context.Context, accountID string) (tenant.Scope, error) {
	doc, err := s.store.Get(ctx, models.CollectionUsers, accountID)
	if errors.Is(err, docstore.ErrNotFound) {
		return tenant.Scope{}, tenant.ErrNoTenantSelected
	}
	if err != nil {
		return tenant.Scope{}, fmt.Errorf("get admin user: %w", err)
	}

	r, err := s.Get(ctx, doc.String("restaurantId"))
	if err != nil {
		return tenant.Scope{}, err
	}
	if !r.IsActive {
		return tenant.Scope{}, fmt.Errorf("%w: %s", ErrRestaurantInactive, r.Name)
	}
	return tenant.New(r.ID, r.Name), nil
}
