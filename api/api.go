package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chainchat/api/mcp"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Server is the API server for querying, following and writing conversations.
type Server struct {
	config Config
	ledger conversation.Ledger
	logger *slog.Logger
	app    *fiber.App

	// ctx outlives individual requests so Shutdown can end open follow streams.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new API server over the given Ledger. The ledger is
// injected to allow sharing with other components (e.g., a follower running
// in the same process).
func NewServer(config Config, ledger conversation.Ledger, logger *slog.Logger) (*Server, error) {
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	config.applyDefaults()

	mcpServer, err := mcp.NewServer(mcp.Config{
		Ledger:   ledger,
		Sender:   config.Sender,
		MaxLimit: config.MaxLimit,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: config,
		ledger: ledger,
		logger: logger,
		app:    app,
		ctx:    ctx,
		cancel: cancel,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/conversations/:name", s.handleGetConversation)
	app.Get("/conversations/:name/messages", s.handleRewind)
	app.Post("/conversations/:name/messages", s.handleSend)
	app.Get("/conversations/:name/follow", s.handleFollow)
	app.Get("/conversations/:name/archive", s.handleArchive)
	app.All("/mcp", adaptor.HTTPHandler(mcpServer.Handler()))

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
		"send", s.config.Sender != nil,
		"archive", s.config.Archive != nil,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown ends open follow streams and gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	s.cancel()
	return s.app.Shutdown()
}
