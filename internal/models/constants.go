package models

import "time"

const (
	SourceChatbot = "chatbot"
	SourceManual  = "manual"
)

const (
	LabelVIP       = "vip"
	LabelRegular   = "regular"
	LabelCorporate = "corporate"
)

// Reservation statuses read by the panel. Any other string is stored as-is.
const (
	ReservationPending  = "pending"
	ReservationAccepted = "accepted"
	ReservationRejected = "rejected"
)

const (
	OrderPending    = "pending"
	OrderAccepted   = "accepted"
	OrderRejected   = "rejected"
	OrderInProcess  = "in-process"
	OrderInDelivery = "in-delivery"
	OrderDelivered  = "delivered"
)

const (
	OrderDelivery = "delivery"
	OrderPickup   = "pickup"
	OrderEatIn    = "eat-in"
)

// Interaction channels.
const (
	ChannelWhatsApp           = "whatsapp"
	ChannelController         = "controller"
	ChannelChatbot            = "chatbot"
	ChannelAPI                = "api"
	ChannelCampaign           = "campaign"
	ChannelClient             = "client"
	ChannelOther              = "other"
	ChannelWhatsAppController = "whatsappController"
	ChannelAI                 = "ai"
)

// Collection names under tenants/{tenant}/.
const (
	CollectionTenants      = "tenants"
	CollectionClients      = "clients"
	CollectionReservations = "reservations"
	CollectionOrders       = "orders"
	CollectionCategories   = "categories"
	CollectionForms        = "forms"
	CollectionRestaurants  = "restaurants"
	CollectionUsers        = "users"
	CollectionAccounts     = "accounts"
)

const (
	// DefaultPageSize размер страницы по умолчанию
	DefaultPageSize = 10

	// MaxPageSize upper bound accepted from API callers
	MaxPageSize = 100

	// DefaultSessionTTL время жизни сессии
	DefaultSessionTTL = 7 * 24 * time.Hour
)

var DefaultOrderTypes = []string{OrderDelivery, OrderPickup, OrderEatIn}

var DefaultOrderStatuses = []string{
	OrderPending, OrderAccepted, OrderRejected, OrderInProcess, OrderInDelivery, OrderDelivered,
}

var DefaultCategories = []string{"Entradas", "Platos fuertes", "Bebidas", "Postres"}
