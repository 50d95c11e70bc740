package events

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier forwards selected events to admin chats.
type TelegramNotifier struct {
	sender Sender
	chats  []int64
	logger *zerolog.Logger
}

func NewTelegramNotifier(sender Sender, chats []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chats: chats, logger: logger}
}

// NewTelegramSender connects to the Bot API.
func NewTelegramSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// Attach subscribes the notifier to the events admins care about.
func (n *TelegramNotifier) Attach(bus *EventBus) {
	for _, t := range []string{
		EventReservationCreated,
		EventReservationStatus,
		EventOrderCreated,
		EventOrderStatus,
		EventRestaurantCreated,
		EventRestaurantDeleted,
	} {
		bus.Subscribe(t, n.handleRecord)
	}
	bus.Subscribe(EventMirrorDegraded, n.handleMirror)
}

func (n *TelegramNotifier) handleRecord(event *Event) error {
	var p RecordPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return n.broadcast(FormatRecord(event.Type, p))
}

func (n *TelegramNotifier) handleMirror(event *Event) error {
	var p MirrorPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}
	return n.broadcast(fmt.Sprintf("⚠️ %s/%s: %s write reached one path only (%s failed): %s",
		p.Tenant, p.Entity, p.Op, p.FailedPath, p.Error))
}

func (n *TelegramNotifier) broadcast(text string) error {
	var firstErr error
	for _, chatID := range n.chats {
		if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send telegram notification")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// FormatRecord renders a record event as a short chat message.
func FormatRecord(eventType string, p RecordPayload) string {
	var sb strings.Builder
	switch eventType {
	case EventReservationCreated:
		sb.WriteString("📅 Nueva reserva")
	case EventReservationStatus:
		sb.WriteString("📅 Reserva actualizada")
	case EventOrderCreated:
		sb.WriteString("🛵 Nuevo pedido")
	case EventOrderStatus:
		sb.WriteString("🛵 Pedido actualizado")
	case EventRestaurantCreated:
		sb.WriteString("🏪 Restaurante creado")
	case EventRestaurantDeleted:
		sb.WriteString("🏪 Restaurante eliminado")
	default:
		sb.WriteString(eventType)
	}
	fmt.Fprintf(&sb, " [%s]", p.Tenant)
	if p.Name != "" {
		fmt.Fprintf(&sb, "\n%s", p.Name)
	}
	if p.Status != "" {
		fmt.Fprintf(&sb, "\nEstado: %s", p.Status)
	}
	if p.Details != "" {
		fmt.Fprintf(&sb, "\n%s", p.Details)
	}
	return sb.String()
}
