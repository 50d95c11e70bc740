package events

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func TestTelegramNotifier(t *testing.T) {
	logger := zerolog.Nop()

	t.Run("ForwardsToEveryChat", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg, ok := c.(tgbotapi.MessageConfig)
			return ok && (msg.ChatID == 10 || msg.ChatID == 20)
		})).Return(nil).Twice()

		bus := NewEventBus(&logger)
		NewTelegramNotifier(sender, []int64{10, 20}, &logger).Attach(bus)

		require.NoError(t, bus.PublishJSON(EventReservationCreated, RecordPayload{
			Tenant: "Lumiere", Entity: "reservations", Name: "Juan Pérez", Status: "pending",
		}))
		sender.AssertExpectations(t)
	})

	t.Run("IgnoresUnsubscribedEvents", func(t *testing.T) {
		sender := new(mockSender)
		bus := NewEventBus(&logger)
		NewTelegramNotifier(sender, []int64{10}, &logger).Attach(bus)

		require.NoError(t, bus.PublishJSON(EventClientUpdated, RecordPayload{}))
		sender.AssertNotCalled(t, "Send", mock.Anything)
	})

	t.Run("ReturnsFirstSendError", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.Anything).Return(errors.New("forbidden")).Once()
		sender.On("Send", mock.Anything).Return(nil).Once()

		n := NewTelegramNotifier(sender, []int64{1, 2}, &logger)
		err := n.broadcast("hola")
		assert.EqualError(t, err, "forbidden")
		sender.AssertExpectations(t)
	})

	t.Run("MirrorDegraded", func(t *testing.T) {
		sender := new(mockSender)
		sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
			msg := c.(tgbotapi.MessageConfig)
			return assert.Contains(t, msg.Text, "legacy failed")
		})).Return(nil).Once()

		bus := NewEventBus(&logger)
		NewTelegramNotifier(sender, []int64{1}, &logger).Attach(bus)
		require.NoError(t, bus.PublishJSON(EventMirrorDegraded, MirrorPayload{
			Tenant: "Lumiere", Entity: "clients", Op: "create", FailedPath: "legacy", Error: "timeout",
		}))
		sender.AssertExpectations(t)
	})
}

func TestFormatRecord(t *testing.T) {
	text := FormatRecord(EventOrderCreated, RecordPayload{Tenant: "Lumiere", Name: "Luis", Status: "pending", Details: "1 pizza"})
	assert.Equal(t, "🛵 Nuevo pedido [Lumiere]\nLuis\nEstado: pending\n1 pizza", text)
	assert.Equal(t, "custom [x]", FormatRecord("custom", RecordPayload{Tenant: "x"}))
}
