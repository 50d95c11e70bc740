// Package compat keeps the per-tenant collections and the shared legacy
// forms collection in step. Writes go to both paths without a transaction:
// a write succeeds when at least one path accepts it.
package compat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"restocrm/internal/config"
	"restocrm/internal/docstore"
	"restocrm/internal/events"
	"restocrm/internal/legacy"
	"restocrm/internal/logging"
	"restocrm/internal/metrics"
	"restocrm/internal/models"
	"restocrm/internal/tenant"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrInvalidRecord        = errors.New("invalid record")
	ErrRecordExists         = errors.New("record already exists")
)

const (
	PathCurrent = "current"
	PathLegacy  = "legacy"
)

type Mirror[T any] struct {
	store  docstore.Store
	codec  Codec[T]
	cfg    config.LegacyConfig
	forms  string
	retry  RetryPolicy
	logger *zerolog.Logger
	bus    *events.EventBus
	now    func() time.Time
	newID  func() string
}

type Option func(*options)

type options struct {
	bus   *events.EventBus
	retry *RetryPolicy
	now   func() time.Time
	newID func() string
}

// WithEventBus publishes mirror_degraded events on bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(o *options) { o.bus = bus }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) { o.retry = &p }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func NewMirror[T any](store docstore.Store, codec Codec[T], cfg config.LegacyConfig, logger *zerolog.Logger, opts ...Option) (*Mirror[T], error) {
	forms, err := docstore.Path(models.CollectionTenants, cfg.SharedTenant, models.CollectionForms)
	if cfg.Enabled && err != nil {
		return nil, fmt.Errorf("legacy collection: %w", err)
	}
	if cfg.Enabled && strings.TrimSpace(cfg.Owner) == "" {
		return nil, errors.New("legacy collection: owner tenant is required")
	}

	o := options{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	retry := RetryPolicy{MaxRetries: cfg.RetryCount, InitialDelay: cfg.RetryBackoff, MaxDelay: 5 * time.Second}
	if o.retry != nil {
		retry = *o.retry
	}
	l := logging.Component(logger, "mirror").With().Str("entity", codec.Entity()).Logger()

	return &Mirror[T]{
		store:  store,
		codec:  codec,
		cfg:    cfg,
		forms:  forms,
		retry:  retry,
		logger: &l,
		bus:    o.bus,
		now:    o.now,
		newID:  o.newID,
	}, nil
}

func (m *Mirror[T]) mirrors(scope tenant.Scope) bool {
	return m.cfg.Mirrors(scope.Segment())
}

// Create writes rec to both paths. A missing id is generated when the
// codec allows it; timestamps are always set here. Caller-chosen ids must
// be new on either path.
func (m *Mirror[T]) Create(ctx context.Context, scope tenant.Scope, rec T) (T, error) {
	var zero T
	current, err := scope.Collection(m.codec.Entity())
	if err != nil {
		return zero, err
	}

	if m.codec.ID(rec) == "" {
		if !m.codec.GeneratesID() {
			return zero, fmt.Errorf("%w: %s without id", ErrInvalidRecord, m.codec.Entity())
		}
		rec = m.codec.WithID(rec, m.newID())
	} else if !m.codec.GeneratesID() {
		id := m.codec.ID(rec)
		_, err := m.load(ctx, scope, current, id)
		switch {
		case err == nil:
			return zero, fmt.Errorf("%s %s: %w", m.codec.Entity(), id, ErrRecordExists)
		case !errors.Is(err, ErrRecordNotFound):
			return zero, err
		}
	}
	now := m.now().UnixMilli()
	rec = m.codec.WithTimestamps(rec, now, now)

	mirrored := m.mirrors(scope)
	var legacyID string
	var legacyErr error
	if mirrored {
		legacyID, legacyErr = m.codec.CreateForm(rec).ID(now)
		if legacyErr == nil {
			rec = m.codec.WithLegacyID(rec, legacyID)
		}
	}

	currentErr := m.put(ctx, current, rec)
	if mirrored && legacyErr == nil {
		form := m.codec.CreateForm(rec)
		legacyErr = m.retry.Do(ctx, func() error {
			return m.store.Set(ctx, m.forms, legacyID, form.Fields)
		})
	}

	if err := m.settle(scope, "create", currentErr, legacyErr, mirrored); err != nil {
		return zero, err
	}
	return rec, nil
}

// Update merges patch (keyed by the record's JSON field names) into the
// stored record. Id, creation time and legacy reference are kept.
func (m *Mirror[T]) Update(ctx context.Context, scope tenant.Scope, id string, patch map[string]any) (T, error) {
	var zero T
	current, err := scope.Collection(m.codec.Entity())
	if err != nil {
		return zero, err
	}

	prev, err := m.load(ctx, scope, current, id)
	if err != nil {
		return zero, err
	}

	rec, err := applyPatch(prev, patch)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	now := m.now().UnixMilli()
	rec = m.codec.WithID(rec, id)
	rec = m.codec.WithTimestamps(rec, m.codec.CreatedAt(prev), now)
	rec = m.codec.WithLegacyID(rec, m.codec.LegacyID(prev))

	mirrored := m.mirrors(scope)
	legacyID := m.codec.LegacyID(rec)
	var legacyErr error
	if mirrored && (m.codec.AppendOnUpdate() || legacyID == "") {
		form := m.codec.UpdateForm(rec)
		if legacyID, legacyErr = form.ID(now); legacyErr == nil && !m.codec.AppendOnUpdate() {
			rec = m.codec.WithLegacyID(rec, legacyID)
		}
	}

	currentErr := m.put(ctx, current, rec)
	if mirrored && legacyErr == nil {
		form := m.codec.UpdateForm(rec)
		legacyErr = m.retry.Do(ctx, func() error {
			if m.codec.AppendOnUpdate() {
				return m.store.Set(ctx, m.forms, legacyID, form.Fields)
			}
			err := m.store.Update(ctx, m.forms, legacyID, form.Fields)
			if errors.Is(err, docstore.ErrNotFound) {
				return m.store.Set(ctx, m.forms, legacyID, form.Fields)
			}
			return err
		})
	}

	if err := m.settle(scope, "update", currentErr, legacyErr, mirrored); err != nil {
		return zero, err
	}
	return rec, nil
}

// Delete removes the record from the current path and its documents from
// the legacy path.
func (m *Mirror[T]) Delete(ctx context.Context, scope tenant.Scope, id string) error {
	current, err := scope.Collection(m.codec.Entity())
	if err != nil {
		return err
	}

	rec, err := m.load(ctx, scope, current, id)
	if err != nil {
		return err
	}

	currentErr := m.store.Delete(ctx, current, id)

	mirrored := m.mirrors(scope)
	var legacyErr error
	if mirrored {
		legacyErr = m.retry.Do(ctx, func() error {
			ids, err := m.legacyIDsOf(ctx, rec)
			if err != nil || len(ids) == 0 {
				return err
			}
			writes := make([]docstore.Write, len(ids))
			for i, lid := range ids {
				writes[i] = docstore.Write{Op: docstore.OpDelete, Collection: m.forms, ID: lid}
			}
			return m.store.Batch(ctx, writes)
		})
	}

	return m.settle(scope, "delete", currentErr, legacyErr, mirrored)
}

func (m *Mirror[T]) legacyIDsOf(ctx context.Context, rec T) ([]string, error) {
	if !m.codec.ScansOnDelete() {
		if lid := m.codec.LegacyID(rec); lid != "" {
			return []string{lid}, nil
		}
		return nil, nil
	}

	docs, err := m.store.List(ctx, m.forms)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, doc := range docs {
		lid, err := legacy.ParseID(doc.ID)
		if err != nil {
			continue
		}
		if m.codec.OwnsLegacy(rec, lid) {
			ids = append(ids, doc.ID)
		}
	}
	return ids, nil
}

// GetByID reads the current path first and falls back to reconstructing
// the legacy collection.
func (m *Mirror[T]) GetByID(ctx context.Context, scope tenant.Scope, id string) (T, error) {
	current, err := scope.Collection(m.codec.Entity())
	if err != nil {
		var zero T
		return zero, err
	}
	return m.load(ctx, scope, current, id)
}

func (m *Mirror[T]) load(ctx context.Context, scope tenant.Scope, current, id string) (T, error) {
	var zero T

	doc, currentErr := m.store.Get(ctx, current, id)
	if currentErr == nil {
		var rec T
		if err := docstore.Decode(*doc, &rec); err != nil {
			return zero, fmt.Errorf("decode %s/%s: %w", current, id, err)
		}
		return rec, nil
	}
	if errors.Is(currentErr, docstore.ErrNotFound) {
		currentErr = nil
	} else {
		m.logger.Warn().Err(currentErr).Str("id", id).Msg("current path read failed, trying legacy")
	}

	if m.mirrors(scope) {
		recs, legacyErr := m.legacyRecords(ctx)
		if legacyErr == nil {
			for _, rec := range recs {
				if m.codec.ID(rec) == id {
					return rec, nil
				}
			}
		} else if currentErr != nil {
			return zero, fmt.Errorf("%s %s: %w: current: %w; legacy: %w", m.codec.Entity(), id, ErrStoreOperationFailed, currentErr, legacyErr)
		}
	}

	if currentErr != nil {
		return zero, fmt.Errorf("%s %s: %w: %w", m.codec.Entity(), id, ErrStoreOperationFailed, currentErr)
	}
	return zero, fmt.Errorf("%s %s: %w", m.codec.Entity(), id, ErrRecordNotFound)
}

// ListAll returns the union of both paths, newest first. The current path
// wins when both hold the same id.
func (m *Mirror[T]) ListAll(ctx context.Context, scope tenant.Scope) ([]T, error) {
	current, err := scope.Collection(m.codec.Entity())
	if err != nil {
		return nil, err
	}

	var out []T
	seen := make(map[string]bool)

	docs, currentErr := m.store.List(ctx, current)
	if currentErr == nil {
		for _, doc := range docs {
			var rec T
			if err := docstore.Decode(doc, &rec); err != nil {
				m.logger.Warn().Err(err).Str("id", doc.ID).Msg("skipping undecodable document")
				continue
			}
			seen[m.codec.ID(rec)] = true
			out = append(out, rec)
		}
	} else {
		m.logger.Warn().Err(currentErr).Msg("current path list failed")
	}

	if m.mirrors(scope) {
		recs, legacyErr := m.legacyRecords(ctx)
		switch {
		case legacyErr != nil && currentErr != nil:
			return nil, fmt.Errorf("list %s: %w: current: %w; legacy: %w", m.codec.Entity(), ErrStoreOperationFailed, currentErr, legacyErr)
		case legacyErr != nil:
			m.logger.Warn().Err(legacyErr).Msg("legacy path list failed")
		}
		for _, rec := range recs {
			if id := m.codec.ID(rec); !seen[id] {
				seen[id] = true
				out = append(out, rec)
			}
		}
	} else if currentErr != nil {
		return nil, fmt.Errorf("list %s: %w: %w", m.codec.Entity(), ErrStoreOperationFailed, currentErr)
	}

	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := m.codec.CreatedAt(out[i]), m.codec.CreatedAt(out[j])
		if ci != cj {
			return ci > cj
		}
		return m.codec.ID(out[i]) > m.codec.ID(out[j])
	})
	return out, nil
}

// Reconcile reconstructs the legacy collection and reports what was
// parsed and dropped. Nothing is written.
func (m *Mirror[T]) Reconcile(ctx context.Context, scope tenant.Scope) (legacy.Report, error) {
	if err := tenant.Require(scope); err != nil {
		return legacy.Report{}, err
	}
	if !m.mirrors(scope) {
		return legacy.Report{Reasons: map[legacy.SkipReason]int{}}, nil
	}
	docs, err := m.store.List(ctx, m.forms)
	if err != nil {
		return legacy.Report{}, fmt.Errorf("%w: %w", ErrStoreOperationFailed, err)
	}
	_, report := m.codec.Reconstruct(docs)
	report.Log(m.logger, m.codec.Entity())
	return report, nil
}

func (m *Mirror[T]) legacyRecords(ctx context.Context) ([]T, error) {
	docs, err := m.store.List(ctx, m.forms)
	if err != nil {
		return nil, err
	}
	recs, report := m.codec.Reconstruct(docs)

	reasons := make(map[string]int, len(report.Reasons))
	for r, n := range report.Reasons {
		reasons[string(r)] = n
	}
	metrics.ObserveLegacyReport(m.codec.Entity(), report.Parsed, report.Skipped, report.Ignored, reasons)
	if report.Skipped > 0 {
		m.logger.Debug().Int("skipped", report.Skipped).Int("parsed", report.Parsed).Msg("legacy documents dropped during reconstruction")
	}
	return recs, nil
}

func (m *Mirror[T]) put(ctx context.Context, collection string, rec T) error {
	data, err := docstore.Encode(rec)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, collection, m.codec.ID(rec), data)
}

// settle applies the at-least-one-path rule to the outcome of a write.
func (m *Mirror[T]) settle(scope tenant.Scope, op string, currentErr, legacyErr error, mirrored bool) error {
	entity := m.codec.Entity()
	metrics.ObserveMirrorWrite(entity, PathCurrent, op, currentErr)
	if mirrored {
		metrics.ObserveMirrorWrite(entity, PathLegacy, op, legacyErr)
	} else {
		legacyErr = nil
	}

	switch {
	case currentErr == nil && legacyErr == nil:
		return nil
	case !mirrored:
		return fmt.Errorf("%s %s: %w: %w", entity, op, ErrStoreOperationFailed, currentErr)
	case currentErr != nil && legacyErr != nil:
		return fmt.Errorf("%s %s: %w: current: %w; legacy: %w", entity, op, ErrStoreOperationFailed, currentErr, legacyErr)
	}

	failedPath, cause := PathLegacy, legacyErr
	if currentErr != nil {
		failedPath, cause = PathCurrent, currentErr
	}
	m.logger.Warn().
		Err(cause).
		Str("tenant", scope.Segment()).
		Str("op", op).
		Str("failed_path", failedPath).
		Msg("mirrored write reached one path only")
	metrics.IncMirrorDegraded(entity, op)
	_ = m.bus.PublishJSON(events.EventMirrorDegraded, events.MirrorPayload{
		Tenant:     scope.Segment(),
		Entity:     entity,
		Op:         op,
		FailedPath: failedPath,
		Error:      cause.Error(),
	})
	return nil
}

func applyPatch[T any](rec T, patch map[string]any) (T, error) {
	var out T
	data, err := docstore.Encode(rec)
	if err != nil {
		return out, err
	}
	for k, v := range patch {
		data[k] = v
	}
	if err := docstore.DecodeMap(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
