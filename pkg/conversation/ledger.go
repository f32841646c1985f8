package conversation

import (
	"context"
	"strconv"
)

// Pointer addresses a position in a conversation's event chain: the height of
// the block the event was recorded in.
type Pointer uint64

// NoPointer is the sentinel Pointer meaning "no earlier event exists".
const NoPointer Pointer = 0

// IsNone reports whether p is the NoPointer sentinel.
func (p Pointer) IsNone() bool {
	return p == NoPointer
}

func (p Pointer) String() string {
	return strconv.FormatUint(uint64(p), 10)
}

// Log is a raw PayloadSent event as returned by a Ledger, already filtered by
// conversation ID.
type Log struct {
	// Pointer is the block height the event was recorded at.
	Pointer Pointer

	// Index is the position of the log within its block.
	Index uint

	// TxHash is the hex encoded hash of the transaction that emitted the log.
	TxHash string

	// Data is the ABI encoded (string, uint256) payload.
	Data []byte
}

// Ledger is the narrow query surface the traversal engine needs from a chain.
// Implementations must filter every result by conversation ID.
type Ledger interface {
	// LastPointer returns the Pointer of the newest event recorded for the
	// conversation, or NoPointer if the conversation is empty.
	LastPointer(ctx context.Context, id ID) (Pointer, error)

	// LogsAt returns every event for the conversation recorded at the given
	// Pointer, in ledger order.
	LogsAt(ctx context.Context, id ID, at Pointer) ([]Log, error)

	// Subscribe streams events for the conversation recorded at or after from.
	// A from of NoPointer only streams events mined after the call.
	Subscribe(ctx context.Context, id ID, from Pointer) (Subscription, error)
}

// Subscription is a live stream of conversation events.
type Subscription interface {
	// Logs delivers events in ledger append order. It is closed when the
	// subscription ends.
	Logs() <-chan Log

	// Err delivers at most one terminal subscription error.
	Err() <-chan error

	// Close tears the subscription down. It is safe to call more than once.
	Close()
}

// Sender is the write path: it records a message for a conversation and
// returns the Pointer the resulting event was recorded at.
type Sender interface {
	Send(ctx context.Context, id ID, message string) (Pointer, error)
}
