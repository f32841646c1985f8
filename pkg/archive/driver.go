// Package archive persists delivered conversation messages so a follower can
// resume after a restart and the API can serve history without the chain.
package archive

import (
	"context"
	"time"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Record is an archived conversation message.
type Record struct {
	ConversationID conversation.ID      `json:"conversation_id"`
	Pointer        conversation.Pointer `json:"pointer"`
	Index          uint                 `json:"index"`
	Prev           conversation.Pointer `json:"prev"`
	Message        string               `json:"message"`
	ArchivedAt     time.Time            `json:"archived_at"`
}

// NewRecord builds a Record for a delivered message. ArchivedAt is left for the
// Driver to stamp.
func NewRecord(msg conversation.Message) Record {
	return Record{
		ConversationID: msg.ConversationID,
		Pointer:        msg.Pointer,
		Index:          msg.Index,
		Prev:           msg.Prev,
		Message:        msg.Text,
	}
}

// ToMessage converts the Record back to the message it was built from.
func (r Record) ToMessage() conversation.Message {
	return conversation.Message{
		ConversationID: r.ConversationID,
		Pointer:        r.Pointer,
		Index:          r.Index,
		Prev:           r.Prev,
		Text:           r.Message,
	}
}

// Driver defines the interface for persisting and retrieving archived
// messages. Records are keyed by (conversation, pointer, index).
type Driver interface {
	// Put stores a record. Returns true if the record was newly inserted,
	// false if a record with the same key already exists, in which case this is
	// a no-op.
	Put(ctx context.Context, rec Record) (bool, error)

	// Get retrieves a single record by its key.
	Get(ctx context.Context, id conversation.ID, pointer conversation.Pointer, index uint) (Record, error)

	// List returns the newest limit records for the conversation, oldest first.
	// A limit of 0 returns every record.
	List(ctx context.Context, id conversation.ID, limit uint) ([]Record, error)

	// Checkpoint returns the Pointer of the newest archived record, or
	// NoPointer when nothing was archived for the conversation.
	Checkpoint(ctx context.Context, id conversation.ID) (conversation.Pointer, error)

	// Close closes the store and releases any resources.
	Close() error
}
