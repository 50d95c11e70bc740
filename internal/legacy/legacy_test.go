package legacy

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"restocrm/internal/docstore"
	"restocrm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct{ n int64 }

func (f fixedSource) Int64N(n int64) int64 {
	if f.n >= n {
		return n - 1
	}
	return f.n
}

func form(id string, data map[string]any) docstore.Document {
	return docstore.Document{ID: id, Collection: "tenants/shared/forms", Data: data}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw     string
		ts      int64
		tag     string
		contact string
		wantErr error
	}{
		{raw: "1700000000000_reservas particulares_573001112222", ts: 1700000000000, tag: "reservas particulares", contact: "573001112222"},
		{raw: "1_cliente manual_x", ts: 1, tag: "cliente manual", contact: "x"},
		{raw: "42_form_with_underscores_c9", ts: 42, tag: "form_with_underscores", contact: "c9"},
		{raw: "1700000000000_pedido_", ts: 1700000000000, tag: "pedido", contact: ""},
		{raw: "1700000000000_only", wantErr: ErrMalformedID},
		{raw: "noid", wantErr: ErrMalformedID},
		{raw: "abc_reservas eventos_573", wantErr: ErrBadTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			id, err := ParseID(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ts, id.Timestamp)
			assert.Equal(t, tt.tag, id.FormTag)
			assert.Equal(t, tt.contact, id.Contact)
		})
	}
}

func TestEncodeIDRoundTrip(t *testing.T) {
	for i := 0; i < 50; i++ {
		ts := rand.Int64N(1 << 42)
		contact := fmt.Sprintf("57300%07d", rand.IntN(10_000_000))
		raw, err := EncodeID(ts, TagEventReservation, contact)
		require.NoError(t, err)

		id, err := ParseID(raw)
		require.NoError(t, err)
		assert.Equal(t, ts, id.Timestamp)
		assert.Equal(t, contact, id.Contact)
		assert.Equal(t, FormEventReservation, Classify(id.FormTag))
	}

	_, err := EncodeID(1, TagOrder, "has_underscore")
	assert.ErrorIs(t, err, ErrInvalidPart)
	_, err = EncodeID(1, "", "c")
	assert.ErrorIs(t, err, ErrInvalidPart)
	_, err = EncodeID(-1, TagOrder, "c")
	assert.ErrorIs(t, err, ErrInvalidPart)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FormParticularReservation, Classify("formulario reservas particulares"))
	assert.Equal(t, FormEventReservation, Classify("reservas eventos"))
	assert.Equal(t, FormAdvisory, Classify("hablar con una asesora"))
	assert.Equal(t, FormManualClient, Classify("cliente manual"))
	assert.Equal(t, FormOrder, Classify("pedido"))
	assert.Equal(t, FormUnknown, Classify("Reservas Particulares"))
	assert.Equal(t, FormUnknown, Classify("encuesta"))
}

func TestReconstructReservations_JuanPerez(t *testing.T) {
	docs := []docstore.Document{
		form("1700000000000_reservas particulares_573001112222", map[string]any{
			"nombre y apellido":                "Juan Pérez",
			"¿Para cuántas personas reservas?": "4",
		}),
	}

	res, report := ReconstructReservations(docs)
	require.Len(t, res, 1)
	r := res[0]
	assert.Equal(t, "573001112222", r.Contact)
	assert.Equal(t, "Juan Pérez", r.ContactNameBooking)
	assert.Equal(t, "4", r.PeopleBooking)
	assert.Equal(t, 4, r.FinalPeopleBooking)
	assert.Equal(t, models.ReservationPending, r.StatusBooking)
	assert.Equal(t, "2023-11-14T22:13:20Z", r.DateBooking)
	assert.Equal(t, "1700000000000_reservas particulares_573001112222", r.LegacyID)
	assert.Equal(t, 1, report.Parsed)
	assert.Zero(t, report.Skipped)
}

func TestReconstructReservations_Fields(t *testing.T) {
	docs := []docstore.Document{
		form("1700000000000_reservas eventos_5731", map[string]any{
			"Nombre completo":       "Empresa Andes",
			"Cuantas personas":      "120 aprox",
			"Fecha del evento":      "15/06/2024",
			"Hora":                  "7:30 pm",
			"Tipo de evento":        "Cena de fin de año",
			"Comentarios":           "menú vegetariano",
			"estado":                "accepted",
			"fecha_reconfirmacion":  "2024-06-10",
			"estado_reconfirmacion": "confirmed",
		}),
		form("1700000000001_cliente manual_5731", map[string]any{"nombre": "Empresa Andes"}),
	}

	res, report := ReconstructReservations(docs)
	require.Len(t, res, 1)
	r := res[0]
	assert.Equal(t, "Empresa Andes", r.ContactNameBooking)
	assert.Equal(t, 120, r.FinalPeopleBooking)
	assert.Equal(t, "2024-06-15T19:30:00Z", r.DateBooking)
	assert.Equal(t, "Cena de fin de año", r.DetailsBooking)
	assert.Equal(t, "accepted", r.StatusBooking)
	assert.Equal(t, "2024-06-10", r.ReconfirmDate)
	assert.Equal(t, "confirmed", r.ReconfirmStatus)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 1, report.Ignored)
}

func TestReconstructClients_MostRecentWins(t *testing.T) {
	docs := []docstore.Document{
		form("1700000002000_hablar con una asesora_573009998877", map[string]any{
			"Nombre y apellido":  "Ana María Gómez",
			"Correo electrónico": "ana.new@example.com",
		}),
		form("1700000001000_reservas particulares_573009998877", map[string]any{
			"Nombre y apellido":  "Ana Gomez",
			"Correo electrónico": "ana@example.com",
			"Nombre de WhatsApp": "Anita",
		}),
	}

	clients, report := NewExtractor(WithRand(fixedSource{0})).Clients(docs)
	require.Len(t, clients, 1)
	c := clients[0]
	assert.Equal(t, "573009998877", c.ContactID)
	assert.Equal(t, "Ana María Gómez", c.Name)
	assert.Equal(t, "ana.new@example.com", c.Email)
	assert.Equal(t, "Anita", c.WhatsAppName, "empty later values keep earlier ones")
	assert.Equal(t, int64(1700000001000), c.CreatedAt)
	assert.Equal(t, int64(1700000002000), c.UpdatedAt)
	assert.Equal(t, int64(2), c.Interactions.Chatbot)
	assert.True(t, c.IsWhatsAppContact)
	assert.Equal(t, models.SourceChatbot, c.Source)
	assert.Equal(t, models.LabelRegular, c.Labels)
	assert.Equal(t, int64(500), c.Fee)
	assert.Equal(t, 2, report.Parsed)
}

func TestReconstructClients_Overrides(t *testing.T) {
	docs := []docstore.Document{
		form("1700000001000_reservas eventos_5701", map[string]any{
			"nombre y apellido": "Carlos",
			"labels":            "frequent",
		}),
		form("1700000003000_cliente manual_5701", map[string]any{
			KeyNameOverride:   "Carlos Ruiz",
			KeyLabelsOverride: "vip,corporate",
		}),
		form("1700000004000_reservas particulares_5701", map[string]any{
			"nombre y apellido": "carlitos",
		}),
	}

	clients, _ := NewExtractor(WithRand(fixedSource{1 << 40})).Clients(docs)
	require.Len(t, clients, 1)
	c := clients[0]
	assert.Equal(t, "Carlos Ruiz", c.Name)
	assert.Equal(t, "vip,corporate", c.Labels)
	assert.Zero(t, c.Interactions.Controller, "override documents are edits, not contacts")
	assert.Equal(t, int64(2), c.Interactions.Chatbot)
	assert.Equal(t, int64(5000), c.Fee)
}

func TestReconstructClients_EditsDoNotCount(t *testing.T) {
	in := models.Client{ContactID: "5702", Name: "Lucía", Labels: models.LabelRegular, IsSavedContact: true}
	created := ClientForm(in)
	id, err := created.ID(1700000000000)
	require.NoError(t, err)
	docs := []docstore.Document{form(id, created.Fields)}

	for i, name := range []string{"Lucía M", "Lucía Mora", "Lucía Mora V"} {
		in.Name = name
		over := ClientOverrideForm(in)
		overID, err := over.ID(int64(1700000001000 + i*1000))
		require.NoError(t, err)
		docs = append(docs, form(overID, over.Fields))
	}

	clients, report := ReconstructClients(docs)
	require.Len(t, clients, 1)
	assert.Equal(t, "Lucía Mora V", clients[0].Name)
	assert.Equal(t, int64(1), clients[0].Interactions.Controller)
	assert.Equal(t, int64(1), clients[0].Interactions.Total())
	assert.Equal(t, 4, report.Parsed)
}

func TestReconstructClients_LabelPriority(t *testing.T) {
	tests := []struct {
		name string
		docs []docstore.Document
		want string
	}{
		{
			name: "explicit labels",
			docs: []docstore.Document{form("1_reservas eventos_1", map[string]any{"nombre": "A", "labels": "vip"})},
			want: "vip",
		},
		{
			name: "event heuristic",
			docs: []docstore.Document{form("1_reservas eventos_1", map[string]any{"nombre": "A"})},
			want: models.LabelCorporate,
		},
		{
			name: "particular heuristic",
			docs: []docstore.Document{form("1_reservas particulares_1", map[string]any{"nombre": "A"})},
			want: models.LabelVIP,
		},
		{
			name: "manual default",
			docs: []docstore.Document{form("1_cliente manual_1", map[string]any{"nombre": "A"})},
			want: models.LabelRegular,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clients, _ := ReconstructClients(tt.docs)
			require.Len(t, clients, 1)
			assert.Equal(t, tt.want, clients[0].Labels)
		})
	}
}

func TestReconstructClients_FeeRanges(t *testing.T) {
	kinds := []FormKind{FormEventReservation, FormParticularReservation, FormAdvisory, FormManualClient}
	for _, kind := range kinds {
		lo, hi := FeeRange(kind)
		for i := 0; i < 20; i++ {
			id, err := EncodeID(int64(1000+i), kind.Tag(), "c1")
			require.NoError(t, err)
			clients, _ := ReconstructClients([]docstore.Document{form(id, map[string]any{"nombre": "X"})})
			require.Len(t, clients, 1)
			assert.GreaterOrEqual(t, clients[0].Fee, lo)
			assert.LessOrEqual(t, clients[0].Fee, hi)
		}
	}
}

func TestReport_SkipReasons(t *testing.T) {
	docs := []docstore.Document{
		form("bad", map[string]any{"nombre": "x"}),
		form("abc_reservas particulares_1", map[string]any{"nombre": "x"}),
		form("1700000000000_encuesta_1", map[string]any{"nombre": "x"}),
		form("1700000000000_reservas particulares_2", map[string]any{"telefono": "123"}),
		form("1700000000000_reservas particulares_3", map[string]any{"nombre": "ok"}),
		form("1700000000000_pedido_4", map[string]any{"nombre": "orders are not clients"}),
	}

	clients, report := ReconstructClients(docs)
	assert.Len(t, clients, 1)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 4, report.Skipped)
	assert.Equal(t, 1, report.Ignored)
	assert.Equal(t, 6, report.Total())
	assert.Equal(t, map[SkipReason]int{
		ReasonMalformedID:     1,
		ReasonBadTimestamp:    1,
		ReasonUnknownFormType: 1,
		ReasonMissingName:     1,
	}, report.Reasons)
	require.Len(t, report.Skips, 4)
	assert.Equal(t, Skip{ID: "bad", Reason: ReasonMalformedID}, report.Skips[0])
}

func TestReconstructOrders(t *testing.T) {
	docs := []docstore.Document{
		form("1700000000000_pedido_5733", map[string]any{
			"Nombre":               "Luis",
			"Tipo de pedido":       "A domicilio",
			"Pedido":               "2 hamburguesas, 1 limonada",
			"Dirección de entrega": "Cra 7 # 45-10",
		}),
		form("1700000005000_pedido whatsapp_5734", map[string]any{
			"Nombre":             "Marta",
			"Modalidad":          "Recoger en tienda",
			"resumen del pedido": "1 pizza",
			"estado del pedido":  "Delivered",
		}),
	}

	orders, report := ReconstructOrders(docs)
	require.Len(t, orders, 2)
	assert.Equal(t, 2, report.Parsed)

	assert.Equal(t, "Marta", orders[0].ContactName)
	assert.Equal(t, models.OrderPickup, orders[0].OrderType)
	assert.Equal(t, "1 pizza", orders[0].Summary)
	assert.Equal(t, models.OrderDelivered, orders[0].Status)

	assert.Equal(t, "Luis", orders[1].ContactName)
	assert.Equal(t, models.OrderDelivery, orders[1].OrderType)
	assert.Equal(t, "2 hamburguesas, 1 limonada", orders[1].Summary)
	assert.Equal(t, "Cra 7 # 45-10", orders[1].Address)
	assert.Equal(t, models.OrderPending, orders[1].Status)
}

func TestFormsRoundTrip(t *testing.T) {
	t.Run("Client", func(t *testing.T) {
		in := models.Client{
			ContactID:      "573001234567",
			Name:           "Valentina Ríos",
			Email:          "vale@example.com",
			WhatsAppName:   "Vale",
			Labels:         "vip",
			Source:         models.SourceChatbot,
			IsSavedContact: true,
			IsBusiness:     true,
		}
		f := ClientForm(in)
		id, err := f.ID(1700000000000)
		require.NoError(t, err)

		clients, _ := ReconstructClients([]docstore.Document{form(id, f.Fields)})
		require.Len(t, clients, 1)
		got := clients[0]
		assert.Equal(t, in.ContactID, got.ContactID)
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, in.Email, got.Email)
		assert.Equal(t, in.WhatsAppName, got.WhatsAppName)
		assert.Equal(t, in.Labels, got.Labels)
		assert.Equal(t, in.Source, got.Source)
		assert.False(t, got.IsWhatsAppContact)
		assert.True(t, got.IsSavedContact)
		assert.True(t, got.IsBusiness)

		in.Name = "Valentina Ríos Mejía"
		over := ClientOverrideForm(in)
		overID, err := over.ID(1700000009000)
		require.NoError(t, err)

		clients, _ = ReconstructClients([]docstore.Document{form(id, f.Fields), form(overID, over.Fields)})
		require.Len(t, clients, 1)
		assert.Equal(t, "Valentina Ríos Mejía", clients[0].Name)
	})

	t.Run("Reservation", func(t *testing.T) {
		in := models.Reservation{
			ID:                 "res-1",
			Contact:            "573001234567",
			ContactNameBooking: "Valentina",
			PeopleBooking:      "6",
			DateBooking:        "2024-12-24T20:00:00-05:00",
			StatusBooking:      models.ReservationAccepted,
			DetailsBooking:     "mesa en terraza",
			ReconfirmStatus:    "pending",
		}
		f := ReservationForm(in)
		id, err := f.ID(1700000000000)
		require.NoError(t, err)

		res, _ := ReconstructReservations([]docstore.Document{form(id, f.Fields)})
		require.Len(t, res, 1)
		got := res[0]
		assert.Equal(t, "res-1", got.ID)
		assert.Equal(t, id, got.LegacyID)
		assert.Equal(t, in.ContactNameBooking, got.ContactNameBooking)
		assert.Equal(t, 6, got.FinalPeopleBooking)
		assert.Equal(t, in.DateBooking, got.DateBooking)
		assert.Equal(t, in.StatusBooking, got.StatusBooking)
		assert.Equal(t, in.DetailsBooking, got.DetailsBooking)
		assert.Equal(t, in.ReconfirmStatus, got.ReconfirmStatus)
	})

	t.Run("Order", func(t *testing.T) {
		in := models.Order{
			ID:          "ord-1",
			Contact:     "573001234567",
			ContactName: "Valentina",
			OrderType:   models.OrderDelivery,
			Summary:     "1 ajiaco",
			Address:     "Calle 10 # 5-20",
			Status:      models.OrderInDelivery,
		}
		f := OrderForm(in)
		id, err := f.ID(1700000000000)
		require.NoError(t, err)

		orders, _ := ReconstructOrders([]docstore.Document{form(id, f.Fields)})
		require.Len(t, orders, 1)
		got := orders[0]
		assert.Equal(t, "ord-1", got.ID)
		assert.Equal(t, in.OrderType, got.OrderType)
		assert.Equal(t, in.Summary, got.Summary)
		assert.Equal(t, in.Address, got.Address)
		assert.Equal(t, in.Status, got.Status)
	})
}

func TestCoerceHelpers(t *testing.T) {
	assert.Equal(t, 4, LeadingInt(" 4 personas"))
	assert.Equal(t, 0, LeadingInt("cuatro"))
	assert.Equal(t, 12, LeadingInt("12"))

	assert.Equal(t, "2024-03-01T00:00:00Z", CoerceDate("2024-03-01", "", 0))
	assert.Equal(t, "2024-03-01T21:15:00Z", CoerceDate("01/03/2024", "21:15", 0))
	assert.Equal(t, "2024-03-01T09:00:00Z", CoerceDate("2024-03-01", "9 a.m.", 0))
	assert.Equal(t, "1970-01-01T00:00:01Z", CoerceDate("mañana", "8pm", 1000))

	assert.Equal(t, models.OrderEatIn, NormalizeOrderType("Comer en el local"))
	assert.Equal(t, "drive", NormalizeOrderType(" Drive "))
	assert.Equal(t, "", NormalizeOrderType(""))
}
