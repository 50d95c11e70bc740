package legacy

import (
	"sort"
	"strings"

	"restocrm/internal/docstore"
	"restocrm/internal/models"
)

// FormKind is the legacy form type a document was submitted through.
type FormKind int

const (
	FormUnknown FormKind = iota
	FormParticularReservation
	FormEventReservation
	FormAdvisory
	FormManualClient
	FormOrder
)

// Tag fragments, matched case-sensitively inside the id's form tag.
const (
	TagParticularReservation = "reservas particulares"
	TagEventReservation      = "reservas eventos"
	TagAdvisory              = "hablar con una asesora"
	TagManualClient          = "cliente manual"
	TagOrder                 = "pedido"
)

var kindByFragment = []struct {
	fragment string
	kind     FormKind
}{
	{TagParticularReservation, FormParticularReservation},
	{TagEventReservation, FormEventReservation},
	{TagAdvisory, FormAdvisory},
	{TagManualClient, FormManualClient},
	{TagOrder, FormOrder},
}

// Classify returns the first kind whose fragment the tag contains.
func Classify(tag string) FormKind {
	for _, k := range kindByFragment {
		if strings.Contains(tag, k.fragment) {
			return k.kind
		}
	}
	return FormUnknown
}

func (k FormKind) String() string {
	switch k {
	case FormParticularReservation:
		return "particular_reservation"
	case FormEventReservation:
		return "event_reservation"
	case FormAdvisory:
		return "advisory"
	case FormManualClient:
		return "manual_client"
	case FormOrder:
		return "order"
	}
	return "unknown"
}

// Tag is the form tag written when a record is mirrored.
func (k FormKind) Tag() string {
	for _, f := range kindByFragment {
		if f.kind == k {
			return f.fragment
		}
	}
	return ""
}

// Channel is the interaction counter a document of this kind feeds.
func (k FormKind) Channel() string {
	if k == FormManualClient {
		return models.ChannelController
	}
	return models.ChannelChatbot
}

func (k FormKind) Source() string {
	if k == FormManualClient {
		return models.SourceManual
	}
	return models.SourceChatbot
}

// BearsClient reports whether documents of this kind feed client reconstruction.
func (k FormKind) BearsClient() bool {
	switch k {
	case FormParticularReservation, FormEventReservation, FormAdvisory, FormManualClient:
		return true
	}
	return false
}

func (k FormKind) IsReservation() bool {
	return k == FormParticularReservation || k == FormEventReservation
}

// Label is the classification used when a client carries no explicit labels.
func (k FormKind) Label() string {
	switch k {
	case FormEventReservation:
		return models.LabelCorporate
	case FormParticularReservation:
		return models.LabelVIP
	}
	return models.LabelRegular
}

// Field is a typed output slot filled from a legacy document.
type Field int

const (
	FieldName Field = iota
	FieldEmail
	FieldWhatsAppName
	FieldPeople
	FieldDate
	FieldTime
	FieldDetails
	FieldStatus
	FieldReconfirmDate
	FieldReconfirmStatus
	FieldOrderType
	FieldSummary
	FieldAddress
)

// Pattern matches a lowercased field name containing every All substring
// and none of the None substrings.
type Pattern struct {
	All  []string
	None []string
}

func has(all ...string) Pattern {
	return Pattern{All: all}
}

func (p Pattern) except(none ...string) Pattern {
	p.None = none
	return p
}

func (p Pattern) Match(key string) bool {
	for _, s := range p.All {
		if !strings.Contains(key, s) {
			return false
		}
	}
	for _, s := range p.None {
		if strings.Contains(key, s) {
			return false
		}
	}
	return true
}

// Schema declares, per output field, the candidate key patterns in
// priority order.
type Schema struct {
	Kind   FormKind
	Fields map[Field][]Pattern
}

var (
	namePatterns = []Pattern{
		has("nombre", "apellido"),
		has("nombre").except("whatsapp", "evento", "restaurante"),
		has("name").except("whatsapp"),
	}
	emailPatterns     = []Pattern{has("correo"), has("email")}
	whatsAppPatterns  = []Pattern{has("whatsapp", "nombre"), has("whatsapp", "name")}
	peoplePatterns    = []Pattern{has("cuántas", "personas"), has("cuantas", "personas"), has("personas")}
	datePatterns      = []Pattern{has("fecha").except("reconfirm")}
	timePatterns      = []Pattern{has("hora")}
	detailsPatterns   = []Pattern{has("detalle"), has("comentario"), has("observaci")}
	statusPatterns    = []Pattern{has("estado").except("reconfirm")}
	reconfirmDate     = []Pattern{has("fecha", "reconfirm")}
	reconfirmStatus   = []Pattern{has("estado", "reconfirm")}
	reservationFields = map[Field][]Pattern{
		FieldName:            namePatterns,
		FieldEmail:           emailPatterns,
		FieldWhatsAppName:    whatsAppPatterns,
		FieldPeople:          peoplePatterns,
		FieldDate:            datePatterns,
		FieldTime:            timePatterns,
		FieldDetails:         detailsPatterns,
		FieldStatus:          statusPatterns,
		FieldReconfirmDate:   reconfirmDate,
		FieldReconfirmStatus: reconfirmStatus,
	}
)

var schemas = map[FormKind]Schema{
	FormParticularReservation: {Kind: FormParticularReservation, Fields: reservationFields},
	FormEventReservation: {Kind: FormEventReservation, Fields: withFields(reservationFields, map[Field][]Pattern{
		FieldDetails: append([]Pattern{has("tipo", "evento")}, detailsPatterns...),
	})},
	FormAdvisory: {Kind: FormAdvisory, Fields: map[Field][]Pattern{
		FieldName:         namePatterns,
		FieldEmail:        emailPatterns,
		FieldWhatsAppName: whatsAppPatterns,
		FieldDetails:      {has("consulta"), has("mensaje"), has("motivo")},
	}},
	FormManualClient: {Kind: FormManualClient, Fields: map[Field][]Pattern{
		FieldName:         namePatterns,
		FieldEmail:        emailPatterns,
		FieldWhatsAppName: whatsAppPatterns,
	}},
	FormOrder: {Kind: FormOrder, Fields: map[Field][]Pattern{
		FieldName:      namePatterns,
		FieldOrderType: {has("tipo", "pedido"), has("modalidad"), has("tipo", "entrega")},
		FieldSummary:   {has("resumen"), has("pedido").except("tipo", "estado", "direcci")},
		FieldAddress:   {has("direcci")},
		FieldStatus:    {has("estado")},
	}},
}

func withFields(base, extra map[Field][]Pattern) map[Field][]Pattern {
	out := make(map[Field][]Pattern, len(base)+len(extra))
	for f, p := range base {
		out[f] = p
	}
	for f, p := range extra {
		out[f] = p
	}
	return out
}

// Keys written by the compatibility layer and overrides; never fuzzy-matched.
const (
	KeyLabels           = "labels"
	KeySource           = "source"
	KeyRecordID         = "registro_id"
	KeyIsWAContact      = "isWAContact"
	KeyIsMyContact      = "isMyContact"
	KeyIsEnterprise     = "isEnterprise"
	KeyIsBusiness       = "isBusiness"
	KeyNameOverride     = "cliente_nombre_actualizado"
	KeyEmailOverride    = "cliente_email_actualizado"
	KeyWhatsAppOverride = "cliente_whatsapp_actualizado"
	KeyLabelsOverride   = "cliente_etiquetas_actualizado"
)

var metaKeys = map[string]bool{
	KeyLabels:       true,
	KeySource:       true,
	KeyRecordID:     true,
	KeyIsWAContact:  true,
	KeyIsMyContact:  true,
	KeyIsEnterprise: true,
	KeyIsBusiness:   true,
}

type fieldKey struct {
	lower string
	key   string
}

// formDoc is a document prepared for schema lookups: its free-form keys
// sorted, lowercased once.
type formDoc struct {
	id     ID
	kind   FormKind
	schema Schema
	doc    docstore.Document
	keys   []fieldKey
}

func newFormDoc(id ID, kind FormKind, doc docstore.Document) formDoc {
	keys := make([]string, 0, len(doc.Data))
	for k := range doc.Data {
		if metaKeys[k] || strings.HasSuffix(k, "_actualizado") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fk := make([]fieldKey, len(keys))
	for i, k := range keys {
		fk[i] = fieldKey{lower: strings.ToLower(k), key: k}
	}
	return formDoc{id: id, kind: kind, schema: schemas[kind], doc: doc, keys: fk}
}

// lookup returns the value of the first key matching f, "" when none does.
func (d formDoc) lookup(f Field) string {
	for _, p := range d.schema.Fields[f] {
		for _, k := range d.keys {
			if p.Match(k.lower) {
				return strings.TrimSpace(d.doc.String(k.key))
			}
		}
	}
	return ""
}

// overrideOnly reports a document that carries nothing but override and
// meta fields: an edit record, not a customer contact.
func (d formDoc) overrideOnly() bool {
	if len(d.keys) > 0 {
		return false
	}
	for k := range d.doc.Data {
		if strings.HasSuffix(k, "_actualizado") {
			return true
		}
	}
	return false
}

func (d formDoc) meta(key string) string {
	return strings.TrimSpace(d.doc.String(key))
}

func (d formDoc) flag(key string) (bool, bool) {
	b, ok := d.doc.Data[key].(bool)
	return b, ok
}
