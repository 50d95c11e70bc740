package compat

import (
	"restocrm/internal/docstore"
	"restocrm/internal/legacy"
	"restocrm/internal/models"
)

// Codec adapts one record type to both storage layouts.
type Codec[T any] interface {
	// Entity is the current-path collection name.
	Entity() string
	ID(rec T) string
	WithID(rec T, id string) T
	// GeneratesID reports whether a missing id may be filled with a new one.
	GeneratesID() bool
	CreatedAt(rec T) int64
	WithTimestamps(rec T, created, updated int64) T
	LegacyID(rec T) string
	WithLegacyID(rec T, id string) T

	CreateForm(rec T) legacy.Form
	UpdateForm(rec T) legacy.Form
	// AppendOnUpdate writes updates as new legacy documents instead of
	// patching the one referenced by LegacyID.
	AppendOnUpdate() bool
	// ScansOnDelete makes deletes remove every legacy document OwnsLegacy
	// accepts. Otherwise only the document at LegacyID is removed.
	ScansOnDelete() bool
	OwnsLegacy(rec T, id legacy.ID) bool

	Reconstruct(docs []docstore.Document) ([]T, legacy.Report)
}

type ClientCodec struct {
	Extractor *legacy.Extractor
}

func NewClientCodec(ex *legacy.Extractor) ClientCodec {
	if ex == nil {
		ex = legacy.NewExtractor()
	}
	return ClientCodec{Extractor: ex}
}

func (ClientCodec) Entity() string                  { return models.CollectionClients }
func (ClientCodec) ID(c models.Client) string       { return c.ContactID }
func (ClientCodec) GeneratesID() bool               { return false }
func (ClientCodec) CreatedAt(c models.Client) int64 { return c.CreatedAt }
func (ClientCodec) LegacyID(models.Client) string   { return "" }
func (ClientCodec) AppendOnUpdate() bool            { return true }
func (ClientCodec) ScansOnDelete() bool             { return true }

func (ClientCodec) WithID(c models.Client, id string) models.Client {
	c.ContactID = id
	return c
}

func (ClientCodec) WithTimestamps(c models.Client, created, updated int64) models.Client {
	c.CreatedAt, c.UpdatedAt = created, updated
	return c
}

func (ClientCodec) WithLegacyID(c models.Client, _ string) models.Client { return c }

func (ClientCodec) CreateForm(c models.Client) legacy.Form { return legacy.ClientForm(c) }
func (ClientCodec) UpdateForm(c models.Client) legacy.Form { return legacy.ClientOverrideForm(c) }

// OwnsLegacy matches every client-bearing form of the same contact.
func (ClientCodec) OwnsLegacy(c models.Client, id legacy.ID) bool {
	return id.Contact == c.ContactID && legacy.Classify(id.FormTag).BearsClient()
}

func (cc ClientCodec) Reconstruct(docs []docstore.Document) ([]models.Client, legacy.Report) {
	return cc.Extractor.Clients(docs)
}

type ReservationCodec struct{}

func (ReservationCodec) Entity() string                                { return models.CollectionReservations }
func (ReservationCodec) ID(r models.Reservation) string                { return r.ID }
func (ReservationCodec) GeneratesID() bool                             { return true }
func (ReservationCodec) CreatedAt(r models.Reservation) int64          { return r.CreatedAt }
func (ReservationCodec) LegacyID(r models.Reservation) string          { return r.LegacyID }
func (ReservationCodec) AppendOnUpdate() bool                          { return false }
func (ReservationCodec) ScansOnDelete() bool                           { return false }
func (ReservationCodec) OwnsLegacy(models.Reservation, legacy.ID) bool { return false }

func (ReservationCodec) WithID(r models.Reservation, id string) models.Reservation {
	r.ID = id
	return r
}

func (ReservationCodec) WithTimestamps(r models.Reservation, created, updated int64) models.Reservation {
	r.CreatedAt, r.UpdatedAt = created, updated
	return r
}

func (ReservationCodec) WithLegacyID(r models.Reservation, id string) models.Reservation {
	r.LegacyID = id
	return r
}

func (ReservationCodec) CreateForm(r models.Reservation) legacy.Form {
	return legacy.ReservationForm(r)
}
func (ReservationCodec) UpdateForm(r models.Reservation) legacy.Form {
	return legacy.ReservationForm(r)
}

func (ReservationCodec) Reconstruct(docs []docstore.Document) ([]models.Reservation, legacy.Report) {
	return legacy.ReconstructReservations(docs)
}

type OrderCodec struct{}

func (OrderCodec) Entity() string                          { return models.CollectionOrders }
func (OrderCodec) ID(o models.Order) string                { return o.ID }
func (OrderCodec) GeneratesID() bool                       { return true }
func (OrderCodec) CreatedAt(o models.Order) int64          { return o.CreatedAt }
func (OrderCodec) LegacyID(o models.Order) string          { return o.LegacyID }
func (OrderCodec) AppendOnUpdate() bool                    { return false }
func (OrderCodec) ScansOnDelete() bool                     { return false }
func (OrderCodec) OwnsLegacy(models.Order, legacy.ID) bool { return false }

func (OrderCodec) WithID(o models.Order, id string) models.Order {
	o.ID = id
	return o
}

func (OrderCodec) WithTimestamps(o models.Order, created, updated int64) models.Order {
	o.CreatedAt, o.UpdatedAt = created, updated
	return o
}

func (OrderCodec) WithLegacyID(o models.Order, id string) models.Order {
	o.LegacyID = id
	return o
}

func (OrderCodec) CreateForm(o models.Order) legacy.Form { return legacy.OrderForm(o) }
func (OrderCodec) UpdateForm(o models.Order) legacy.Form { return legacy.OrderForm(o) }

func (OrderCodec) Reconstruct(docs []docstore.Document) ([]models.Order, legacy.Report) {
	return legacy.ReconstructOrders(docs)
}
