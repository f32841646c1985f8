package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessageDelivered is emitted after a conversation message is
	// delivered by a follower.
	EventTypeMessageDelivered = "chainchat.message.delivered"
)

// MessageDeliveredEvent is a transport-neutral event payload for a delivered
// conversation message.
type MessageDeliveredEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	Conversation  ConversationRef `json:"conversation"`
	Pointer       uint64          `json:"pointer"`
	Index         uint            `json:"index"`
	Prev          uint64          `json:"prev"`
	Message       string          `json:"message"`
}

// ConversationRef identifies the conversation a message belongs to.
type ConversationRef struct {
	Name string `json:"name,omitempty"`
	ID   string `json:"id"`
}

// NewMessageDeliveredEvent builds an event for msg with a fresh event ID.
func NewMessageDeliveredEvent(name string, msg conversation.Message, now time.Time) *MessageDeliveredEvent {
	return &MessageDeliveredEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeMessageDelivered,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
		Conversation: ConversationRef{
			Name: name,
			ID:   msg.ConversationID.String(),
		},
		Pointer: uint64(msg.Pointer),
		Index:   msg.Index,
		Prev:    uint64(msg.Prev),
		Message: msg.Text,
	}
}
