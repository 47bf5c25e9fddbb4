// Package remote talks to the message API, the store of record for
// confirmed messages.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks any remote failure. The engine does not distinguish
// authentication errors from network errors for retry purposes.
var ErrUnavailable = errors.New("remote message API unavailable")

// User is a chat counterpart known to the server.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// Message is a server-confirmed message record.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// SendPayload is the outgoing message body.
type SendPayload struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

// Client is the remote message API consumed by the engine.
type Client interface {
	// ListUsers returns the chat counterparts for the sidebar.
	ListUsers(ctx context.Context) ([]User, error)
	// ListMessages returns the authoritative message list for a conversation.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// SendMessage submits a message and returns the server-assigned record.
	SendMessage(ctx context.Context, conversationID string, p SendPayload) (*Message, error)
}
