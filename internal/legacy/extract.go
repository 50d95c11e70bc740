// Package legacy rebuilds typed records from the flat legacy "forms"
// collection, whose document ids encode {timestamp}_{formTag}_{contact}.
// Unusable documents are dropped and accounted for in a Report.
package legacy

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"restocrm/internal/docstore"
	"restocrm/internal/models"
)

type Extractor struct {
	rnd Source
}

type Option func(*Extractor)

// WithRand sets the random source used for fee estimates.
func WithRand(src Source) Option {
	return func(e *Extractor) {
		e.rnd = src
	}
}

func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{rnd: globalSource{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExtractor = NewExtractor()

func ReconstructClients(docs []docstore.Document) ([]models.Client, Report) {
	return defaultExtractor.Clients(docs)
}

func ReconstructReservations(docs []docstore.Document) ([]models.Reservation, Report) {
	return defaultExtractor.Reservations(docs)
}

func ReconstructOrders(docs []docstore.Document) ([]models.Order, Report) {
	return defaultExtractor.Orders(docs)
}

// scan parses and classifies docs, keeping those accept takes and that
// resolve a name.
func (e *Extractor) scan(docs []docstore.Document, report *Report, accept func(FormKind) bool, named func(formDoc) bool) []formDoc {
	out := make([]formDoc, 0, len(docs))
	for _, doc := range docs {
		id, err := ParseID(doc.ID)
		if err != nil {
			reason := ReasonMalformedID
			if errors.Is(err, ErrBadTimestamp) {
				reason = ReasonBadTimestamp
			}
			report.skip(doc.ID, reason)
			continue
		}

		kind := Classify(id.FormTag)
		if kind == FormUnknown {
			report.skip(doc.ID, ReasonUnknownFormType)
			continue
		}
		if !accept(kind) {
			report.Ignored++
			continue
		}

		fd := newFormDoc(id, kind, doc)
		if !named(fd) {
			report.skip(doc.ID, ReasonMissingName)
			continue
		}
		report.Parsed++
		out = append(out, fd)
	}
	return out
}

func hasFormName(d formDoc) bool {
	return d.lookup(FieldName) != ""
}

// Clients merges client-bearing documents by contact. Later documents
// overwrite earlier non-empty values; override fields win over form values.
func (e *Extractor) Clients(docs []docstore.Document) ([]models.Client, Report) {
	report := newReport()
	forms := e.scan(docs, &report, FormKind.BearsClient, func(d formDoc) bool {
		return hasFormName(d) || d.meta(KeyNameOverride) != ""
	})

	byContact := make(map[string][]formDoc)
	for _, fd := range forms {
		byContact[fd.id.Contact] = append(byContact[fd.id.Contact], fd)
	}

	clients := make([]models.Client, 0, len(byContact))
	for contact, group := range byContact {
		clients = append(clients, e.mergeClient(contact, group))
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].CreatedAt != clients[j].CreatedAt {
			return clients[i].CreatedAt > clients[j].CreatedAt
		}
		return clients[i].ContactID > clients[j].ContactID
	})
	return clients, report
}

type clientOverrides struct {
	name, email, whatsApp, labels string
}

func (e *Extractor) mergeClient(contact string, group []formDoc) models.Client {
	sort.Slice(group, func(i, j int) bool {
		if group[i].id.Timestamp != group[j].id.Timestamp {
			return group[i].id.Timestamp < group[j].id.Timestamp
		}
		return group[i].id.Raw < group[j].id.Raw
	})

	c := models.Client{ContactID: contact}
	var over clientOverrides
	var labels string

	for i, fd := range group {
		if i == 0 {
			c.CreatedAt = fd.id.Timestamp
			c.Source = fd.kind.Source()
			if src := fd.meta(KeySource); src != "" {
				c.Source = src
			}
		}
		c.UpdatedAt = fd.id.Timestamp

		overwrite(&c.Name, fd.lookup(FieldName))
		overwrite(&c.Email, fd.lookup(FieldEmail))
		overwrite(&c.WhatsAppName, fd.lookup(FieldWhatsAppName))
		overwrite(&labels, fd.meta(KeyLabels))

		overwrite(&over.name, fd.meta(KeyNameOverride))
		overwrite(&over.email, fd.meta(KeyEmailOverride))
		overwrite(&over.whatsApp, fd.meta(KeyWhatsAppOverride))
		overwrite(&over.labels, fd.meta(KeyLabelsOverride))

		if fd.kind.Source() == models.SourceChatbot {
			c.IsWhatsAppContact = true
		}
		applyFlag(&c.IsWhatsAppContact, fd, KeyIsWAContact)
		applyFlag(&c.IsSavedContact, fd, KeyIsMyContact)
		applyFlag(&c.IsEnterprise, fd, KeyIsEnterprise)
		applyFlag(&c.IsBusiness, fd, KeyIsBusiness)

		if !fd.overrideOnly() {
			c.Interactions.Add(fd.kind.Channel(), 1)
		}
	}

	overwrite(&c.Name, over.name)
	overwrite(&c.Email, over.email)
	overwrite(&c.WhatsAppName, over.whatsApp)

	latest := group[len(group)-1].kind
	switch {
	case over.labels != "":
		c.Labels = over.labels
	case labels != "":
		c.Labels = labels
	default:
		c.Labels = latest.Label()
	}
	c.Fee = estimateFee(e.rnd, latest)
	return c
}

func overwrite(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyFlag(dst *bool, fd formDoc, key string) {
	if b, ok := fd.flag(key); ok {
		*dst = b
	}
}

// Reservations turns every reservation form into one Reservation.
func (e *Extractor) Reservations(docs []docstore.Document) ([]models.Reservation, Report) {
	report := newReport()
	forms := e.scan(docs, &report, FormKind.IsReservation, hasFormName)

	out := make([]models.Reservation, 0, len(forms))
	for _, fd := range forms {
		people := fd.lookup(FieldPeople)
		status := fd.lookup(FieldStatus)
		if status == "" {
			status = models.ReservationPending
		}
		out = append(out, models.Reservation{
			ID:                 recordID(fd),
			Contact:            fd.id.Contact,
			ContactNameBooking: fd.lookup(FieldName),
			PeopleBooking:      people,
			FinalPeopleBooking: LeadingInt(people),
			DateBooking:        CoerceDate(fd.lookup(FieldDate), fd.lookup(FieldTime), fd.id.Timestamp),
			StatusBooking:      status,
			DetailsBooking:     fd.lookup(FieldDetails),
			ReconfirmDate:      fd.lookup(FieldReconfirmDate),
			ReconfirmStatus:    fd.lookup(FieldReconfirmStatus),
			CreatedAt:          fd.id.Timestamp,
			UpdatedAt:          fd.id.Timestamp,
			LegacyID:           fd.id.Raw,
		})
	}
	sortNewestFirst(out, func(r models.Reservation) (int64, string) { return r.CreatedAt, r.ID })
	return out, report
}

// Orders turns every order form into one Order.
func (e *Extractor) Orders(docs []docstore.Document) ([]models.Order, Report) {
	report := newReport()
	forms := e.scan(docs, &report, func(k FormKind) bool { return k == FormOrder }, hasFormName)

	out := make([]models.Order, 0, len(forms))
	for _, fd := range forms {
		status := strings.ToLower(fd.lookup(FieldStatus))
		if status == "" {
			status = models.OrderPending
		}
		out = append(out, models.Order{
			ID:          recordID(fd),
			Contact:     fd.id.Contact,
			ContactName: fd.lookup(FieldName),
			OrderType:   NormalizeOrderType(fd.lookup(FieldOrderType)),
			Summary:     fd.lookup(FieldSummary),
			Address:     fd.lookup(FieldAddress),
			Status:      status,
			CreatedAt:   fd.id.Timestamp,
			UpdatedAt:   fd.id.Timestamp,
			LegacyID:    fd.id.Raw,
		})
	}
	sortNewestFirst(out, func(o models.Order) (int64, string) { return o.CreatedAt, o.ID })
	return out, report
}

// recordID prefers the id of the mirrored current-path record.
func recordID(fd formDoc) string {
	if id := fd.meta(KeyRecordID); id != "" {
		return id
	}
	return fd.id.Raw
}

func sortNewestFirst[T any](items []T, key func(T) (int64, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti != tj {
			return ti > tj
		}
		return idi > idj
	})
}

// LeadingInt parses the digits a party size starts with: "4 personas" is 4,
// "cuatro" is 0.
func LeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && unicode.IsDigit(rune(s[end])) {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

var (
	dateLayouts = []string{"2006-01-02", "02/01/2006"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM", "3PM"}
)

// CoerceDate renders a booking date as RFC3339. A date-only value is
// combined with hour when that parses; with no usable date the embedded
// timestamp is used.
func CoerceDate(date, hour string, ts int64) string {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.Format(time.RFC3339)
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, date)
		if err != nil {
			continue
		}
		if clock, ok := parseClock(hour); ok {
			t = t.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
		}
		return t.Format(time.RFC3339)
	}
	return time.UnixMilli(ts).UTC().Format(time.RFC3339)
}

func parseClock(s string) (time.Time, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, ".", "")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeOrderType maps free-text order types onto delivery, pickup or
// eat-in. Anything else is returned lowercased.
func NormalizeOrderType(v string) string {
	l := strings.ToLower(strings.TrimSpace(v))
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "delivery") || strings.Contains(l, "domicilio"):
		return models.OrderDelivery
	case strings.Contains(l, "pickup") || strings.Contains(l, "recoger"):
		return models.OrderPickup
	case strings.Contains(l, "eat-in") || strings.Contains(l, "mesa") || strings.Contains(l, "local"):
		return models.OrderEatIn
	}
	return l
}
