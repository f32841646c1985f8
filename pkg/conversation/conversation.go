package conversation

import (
	"context"
	"fmt"
	"log/slog"
)

// Conversation binds a named conversation to a Ledger.
type Conversation struct {
	// Name is the human-readable conversation name.
	Name string

	// ID is derived from Name with NewID.
	ID ID

	rewinder *Rewinder
	follower *Follower
}

// New creates a Conversation for name over the given Ledger.
func New(name string, ledger Ledger, logger *slog.Logger) *Conversation {
	if logger != nil {
		logger = logger.With("conversation", name)
	}

	return &Conversation{
		Name:     name,
		ID:       NewID(name),
		rewinder: NewRewinder(ledger, logger),
		follower: NewFollower(ledger, logger),
	}
}

// Rewind returns up to limit of the most recent messages, oldest first.
func (c *Conversation) Rewind(ctx context.Context, limit uint) (*RewindResult, error) {
	return c.rewinder.Rewind(ctx, c.ID, limit)
}

// RewindFrom pages further back from a previous result's Cursor.
func (c *Conversation) RewindFrom(ctx context.Context, from Pointer, limit uint) (*RewindResult, error) {
	return c.rewinder.RewindFrom(ctx, c.ID, from, limit)
}

// Follow delivers events recorded at or after from to sink until the
// subscription ends, fails, or ctx is cancelled.
func (c *Conversation) Follow(ctx context.Context, from Pointer, sink Sink) error {
	return c.follower.Follow(ctx, c.ID, from, sink)
}

// Replay rewinds up to limit messages, delivers them to sink oldest first, then
// follows live from the block after the rewound head. The sink sees every
// message exactly once and in append order, provided no event for this
// conversation is mined into the head's block after the head lookup.
func (c *Conversation) Replay(ctx context.Context, limit uint, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	result, err := c.Rewind(ctx, limit)
	if err != nil {
		return err
	}

	for _, msg := range result.Messages {
		if err := sink.Deliver(ctx, msg); err != nil {
			return fmt.Errorf("delivering message at %d: %w", msg.Pointer, err)
		}
	}

	return c.Follow(ctx, result.FollowFrom(), sink)
}
