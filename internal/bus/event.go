package bus

import "time"

// Event kinds published by the engine. Subscribers filter by namespace
// prefix, e.g. "push." receives every push source event.
const (
	KindPushMessage      = "push.message"
	KindPushConnected    = "push.connected"
	KindPushDisconnected = "push.disconnected"

	KindViewUpdated   = "view.updated"
	KindLoadChanged   = "load.state_changed"
	KindMessageSent   = "message.sent"
	KindMessageQueued = "message.queued"
	KindMessageSynced = "message.synced"

	KindSurfaceFocus = "surface.focus"
	KindSurfaceBlur  = "surface.blur"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
