// Package api provides an HTTP API server for reading, following and writing
// ledger-backed conversations.
package api

import (
	"time"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

const (
	// DefaultLimit is the number of messages returned when ?limit is absent.
	DefaultLimit uint = 10

	// MaxLimit caps ?limit so a single request cannot walk an entire chain.
	MaxLimit uint = 1000

	// DefaultKeepAlive is the interval between keep-alive comments on idle
	// follow streams.
	DefaultKeepAlive = 15 * time.Second
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// Sender enables POST /conversations/:name/messages and the send_message
	// MCP tool. Optional.
	Sender conversation.Sender

	// Archive enables GET /conversations/:name/archive. Optional.
	Archive archive.Driver

	// DefaultLimit and MaxLimit bound ?limit on rewind and archive reads.
	DefaultLimit uint
	MaxLimit     uint

	// KeepAlive is the SSE keep-alive interval on follow streams.
	KeepAlive time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxLimit == 0 {
		c.MaxLimit = MaxLimit
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = DefaultLimit
	}
	c.DefaultLimit = min(c.DefaultLimit, c.MaxLimit)
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
}
