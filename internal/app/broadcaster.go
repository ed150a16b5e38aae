package app

import (
	"log/slog"

	"live-quiz-service/internal/domain"
)

// Transport delivers one event to one connection. Implementations must not block on slow clients.
type Transport interface {
	Deliver(conn domain.ConnID, event domain.Event) error
}

type discardTransport struct{}

func (discardTransport) Deliver(domain.ConnID, domain.Event) error { return nil }

// RoomBroadcaster fans events out to the connections bound to a room.
type RoomBroadcaster struct {
	bindings  *Bindings
	transport Transport
	logger    *slog.Logger
}

func NewRoomBroadcaster(bindings *Bindings, transport Transport, logger *slog.Logger) *RoomBroadcaster {
	if transport == nil {
		transport = discardTransport{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomBroadcaster{bindings: bindings, transport: transport, logger: logger}
}

// Publish sends event to every connection currently bound to the room.
func (b *RoomBroadcaster) Publish(code string, event domain.Event) {
	for _, conn := range b.bindings.Connections(code) {
		b.Send(conn, event)
	}
}

// Send delivers to a single connection; failures are logged and otherwise ignored.
func (b *RoomBroadcaster) Send(conn domain.ConnID, event domain.Event) {
	if err := b.transport.Deliver(conn, event); err != nil {
		b.logger.Debug("event delivery failed", "conn", conn, "event", event.Type, "error", err)
	}
}
