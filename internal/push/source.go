// Package push delivers server-initiated message events into the bus.
package push

import (
	"context"
	"time"

	"github.com/omjaiswal45/Chat-App/internal/bus"
)

// MessageEvent is a push-delivered message. There is no acknowledgement
// channel; delivery order is assumed server-ordered.
type MessageEvent struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Source is a live event feed. Implementations publish bus.KindPushMessage
// events plus push.connected / push.disconnected lifecycle events.
type Source interface {
	Start(ctx context.Context) error
	Stop()
}

// ManualSource is a Source driven by explicit Emit calls, for tests and
// for frontends that own their transport.
type ManualSource struct {
	bus *bus.Bus
}

// NewManualSource creates a manually-driven source.
func NewManualSource(b *bus.Bus) *ManualSource {
	return &ManualSource{bus: b}
}

// Start implements Source. A manual source is immediately connected.
func (s *ManualSource) Start(context.Context) error {
	s.bus.Emit(bus.KindPushConnected, nil)
	return nil
}

// Stop implements Source.
func (s *ManualSource) Stop() {
	s.bus.Emit(bus.KindPushDisconnected, nil)
}

// Emit publishes a message event as if it arrived from the server.
func (s *ManualSource) Emit(evt MessageEvent) {
	s.bus.Emit(bus.KindPushMessage, evt)
}
