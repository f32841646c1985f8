package relay

import (
	"context"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Sink adapts the pool to a conversation.Sink. Delivery blocks while the
// conversation's queue is full, which throttles the follower.
func Sink(p *Pool, name string) conversation.Sink {
	return conversation.SinkFunc(func(ctx context.Context, msg conversation.Message) error {
		return p.Enqueue(ctx, Job{Conversation: name, Message: msg})
	})
}
