package legacy

import (
	"strings"

	"restocrm/internal/models"
)

// Keys the compatibility layer writes. Each is found again by the
// matching schema pattern.
const (
	FieldKeyName            = "nombre y apellido"
	FieldKeyEmail           = "correo electrónico"
	FieldKeyWhatsAppName    = "nombre de whatsapp"
	FieldKeyPeople          = "cuántas personas"
	FieldKeyDate            = "fecha"
	FieldKeyDetails         = "detalles"
	FieldKeyStatus          = "estado"
	FieldKeyReconfirmDate   = "fecha_reconfirmacion"
	FieldKeyReconfirmStatus = "estado_reconfirmacion"
	FieldKeyOrderType       = "tipo de pedido"
	FieldKeySummary         = "resumen del pedido"
	FieldKeyAddress         = "dirección de entrega"
	FieldKeyOrderStatus     = "estado del pedido"
)

// Form is a legacy document ready to be written: its kind and contact
// make up the id together with a timestamp.
type Form struct {
	Kind    FormKind
	Contact string
	Fields  map[string]any
}

func (f Form) ID(ts int64) (string, error) {
	return EncodeID(ts, f.Kind.Tag(), f.Contact)
}

func putString(m map[string]any, key, v string) {
	if strings.TrimSpace(v) != "" {
		m[key] = v
	}
}

func clientFlags(m map[string]any, c models.Client) {
	m[KeyIsWAContact] = c.IsWhatsAppContact
	m[KeyIsMyContact] = c.IsSavedContact
	m[KeyIsEnterprise] = c.IsEnterprise
	m[KeyIsBusiness] = c.IsBusiness
}

// ClientForm is the manual-client document for a newly created client.
func ClientForm(c models.Client) Form {
	fields := map[string]any{}
	putString(fields, FieldKeyName, c.Name)
	putString(fields, FieldKeyEmail, c.Email)
	putString(fields, FieldKeyWhatsAppName, c.WhatsAppName)
	putString(fields, KeyLabels, c.Labels)
	putString(fields, KeySource, c.Source)
	clientFlags(fields, c)
	return Form{Kind: FormManualClient, Contact: c.ContactID, Fields: fields}
}

// ClientOverrideForm carries the client's current values as override
// fields. Appended after earlier forms it wins the most-recent merge.
func ClientOverrideForm(c models.Client) Form {
	fields := map[string]any{}
	putString(fields, KeyNameOverride, c.Name)
	putString(fields, KeyEmailOverride, c.Email)
	putString(fields, KeyWhatsAppOverride, c.WhatsAppName)
	putString(fields, KeyLabelsOverride, c.Labels)
	clientFlags(fields, c)
	return Form{Kind: FormManualClient, Contact: c.ContactID, Fields: fields}
}

func ReservationForm(r models.Reservation) Form {
	fields := map[string]any{KeyRecordID: r.ID}
	putString(fields, FieldKeyName, r.ContactNameBooking)
	putString(fields, FieldKeyPeople, r.PeopleBooking)
	putString(fields, FieldKeyDate, r.DateBooking)
	putString(fields, FieldKeyDetails, r.DetailsBooking)
	putString(fields, FieldKeyStatus, r.StatusBooking)
	putString(fields, FieldKeyReconfirmDate, r.ReconfirmDate)
	putString(fields, FieldKeyReconfirmStatus, r.ReconfirmStatus)
	return Form{Kind: FormParticularReservation, Contact: r.Contact, Fields: fields}
}

func OrderForm(o models.Order) Form {
	fields := map[string]any{KeyRecordID: o.ID}
	putString(fields, FieldKeyName, o.ContactName)
	putString(fields, FieldKeyOrderType, o.OrderType)
	putString(fields, FieldKeySummary, o.Summary)
	putString(fields, FieldKeyAddress, o.Address)
	putString(fields, FieldKeyOrderStatus, o.Status)
	return Form{Kind: FormOrder, Contact: o.Contact, Fields: fields}
}
