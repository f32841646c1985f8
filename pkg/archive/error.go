package archive

import (
	"fmt"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// ErrNotFound is returned when a record doesn't exist in the archive.
type ErrNotFound struct {
	ConversationID conversation.ID
	Pointer        conversation.Pointer
	Index          uint
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("record not found: %s at %d/%d", e.ConversationID, e.Pointer, e.Index)
}
