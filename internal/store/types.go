package store

// DeliveryState describes whether a message has been confirmed by the
// remote store of record.
type DeliveryState string

const (
	Confirmed      DeliveryState = "confirmed"
	PendingOffline DeliveryState = "pending_offline"
)

// Message represents a cached message record.
type Message struct {
	Key            string // internally-assigned storage key
	ConversationID string // counterpart user this message belongs to
	MsgID          string // server id, or offline_<millis> placeholder
	SenderID       string
	ReceiverID     string
	Body           string
	Attachment     string
	IsOffline      bool
	CreatedAt      int64 // unix millis, client-assigned for offline messages
	InsertedAt     int64 // unix millis, set by the store on insert
}

// DeliveryState derives the delivery state from the offline flag.
func (m *Message) DeliveryState() DeliveryState {
	if m.IsOffline {
		return PendingOffline
	}
	return Confirmed
}

// Stats summarizes cache contents for diagnostics.
type Stats struct {
	TotalMessages       int
	UniqueConversations int
	PerConversation     map[string]int
}
