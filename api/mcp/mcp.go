// Package mcp provides an MCP (Model Context Protocol) server exposing
// chainchat conversations as tools.
package mcp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/utils"
)

// DefaultMaxLimit caps the limit argument of rewind_conversation.
const DefaultMaxLimit uint = 1000

type Config struct {
	// Ledger is queried by rewind_conversation.
	Ledger conversation.Ledger

	// Sender enables the send_message tool. Optional.
	Sender conversation.Sender

	// MaxLimit caps how many messages one rewind may return.
	MaxLimit uint

	// Noop for empty MCP server
	Noop bool

	// Logger is the configured slog logger
	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the conversation tools.
func NewServer(c Config) (*Server, error) {
	if c.MaxLimit == 0 {
		c.MaxLimit = DefaultMaxLimit
	}

	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "chainchat",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Ledger == nil {
			return nil, errors.New("ledger is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        rewindToolName,
			Description: rewindDescription,
		}, s.handleRewind)

		if c.Sender != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        sendToolName,
				Description: sendDescription,
			}, s.handleSend)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// MCPServer returns the underlying server, e.g. to connect it over a
// transport other than HTTP.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
