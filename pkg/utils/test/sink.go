package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Collector is a conversation.Sink that records every delivered message.
type Collector struct {
	mu       sync.Mutex
	messages []conversation.Message

	// FailAfter makes Deliver return Err once this many messages were
	// collected. Zero disables it.
	FailAfter int
	Err       error
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Deliver(_ context.Context, msg conversation.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailAfter > 0 && len(c.messages) >= c.FailAfter {
		return c.Err
	}

	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the collected messages.
func (c *Collector) Messages() []conversation.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]conversation.Message(nil), c.messages...)
}

// Texts returns the collected message texts in delivery order.
func (c *Collector) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	texts := make([]string, len(c.messages))
	for i, m := range c.messages {
		texts[i] = m.Text
	}
	return texts
}
