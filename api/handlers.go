package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ConversationResponse describes a conversation and its current head.
type ConversationResponse struct {
	Name string               `json:"name"`
	ID   conversation.ID      `json:"id"`
	Head conversation.Pointer `json:"head"`
}

// RewindResponse contains the most recent messages of a conversation.
type RewindResponse struct {
	Name string          `json:"name"`
	ID   conversation.ID `json:"id"`

	// Messages in chronological order (oldest first)
	Messages []conversation.Message `json:"messages"`

	// Cursor is passed back as ?before= to page further back. Zero once the
	// start of the conversation was reached.
	Cursor conversation.Pointer `json:"cursor"`

	// Head is the Pointer the rewind started from.
	Head conversation.Pointer `json:"head"`

	// FollowFrom is the ?from= value that continues right after this window.
	FollowFrom conversation.Pointer `json:"follow_from"`
}

// SendRequest is the body of POST /conversations/:name/messages.
type SendRequest struct {
	Message string `json:"message"`
}

// SendResponse reports where a sent message was recorded.
type SendResponse struct {
	Name    string               `json:"name"`
	ID      conversation.ID      `json:"id"`
	Pointer conversation.Pointer `json:"pointer"`
}

// ArchiveResponse lists archived messages of a conversation.
type ArchiveResponse struct {
	Name       string               `json:"name"`
	ID         conversation.ID      `json:"id"`
	Checkpoint conversation.Pointer `json:"checkpoint"`
	Records    []archive.Record     `json:"records"`
}

// errBadRequest marks errors caused by the request itself.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetConversation returns the conversation's ID and head Pointer.
func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, err := s.conversation(c)
	if err != nil {
		return s.fail(c, err)
	}

	head, err := s.ledger.LastPointer(c.Context(), conv.ID)
	if err != nil {
		return s.fail(c, &conversation.ChainQueryError{Op: "last pointer", Err: err})
	}

	return c.JSON(ConversationResponse{
		Name: conv.Name,
		ID:   conv.ID,
		Head: head,
	})
}

// handleRewind returns up to ?limit of the most recent messages, or the ones
// recorded at and before ?before when paging.
func (s *Server) handleRewind(c *fiber.Ctx) error {
	conv, err := s.conversation(c)
	if err != nil {
		return s.fail(c, err)
	}

	limit, err := s.limit(c)
	if err != nil {
		return s.fail(c, err)
	}

	var result *conversation.RewindResult
	if raw := c.Query("before"); raw != "" {
		before, err := parsePointer("before", raw)
		if err != nil {
			return s.fail(c, err)
		}
		result, err = conv.RewindFrom(c.Context(), before, limit)
		if err != nil {
			return s.fail(c, err)
		}
	} else {
		result, err = conv.Rewind(c.Context(), limit)
		if err != nil {
			return s.fail(c, err)
		}
	}

	messages := result.Messages
	if messages == nil {
		messages = []conversation.Message{}
	}

	return c.JSON(RewindResponse{
		Name:       conv.Name,
		ID:         conv.ID,
		Messages:   messages,
		Cursor:     result.Cursor,
		Head:       result.Head,
		FollowFrom: result.FollowFrom(),
	})
}

// handleSend records a message on the ledger and waits for it to be mined.
func (s *Server) handleSend(c *fiber.Ctx) error {
	if s.config.Sender == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "sending is not configured"})
	}

	conv, err := s.conversation(c)
	if err != nil {
		return s.fail(c, err)
	}

	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, badRequest("invalid request body"))
	}
	if req.Message == "" {
		return s.fail(c, badRequest("message is required"))
	}

	pointer, err := s.config.Sender.Send(c.Context(), conv.ID, req.Message)
	if err != nil {
		return s.fail(c, err)
	}

	s.logger.Info("message sent",
		"conversation", conv.Name,
		"pointer", uint64(pointer),
		"bytes", len(req.Message),
	)

	return c.Status(fiber.StatusCreated).JSON(SendResponse{
		Name:    conv.Name,
		ID:      conv.ID,
		Pointer: pointer,
	})
}

// handleArchive lists the newest ?limit archived messages.
func (s *Server) handleArchive(c *fiber.Ctx) error {
	if s.config.Archive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "archive is not configured"})
	}

	conv, err := s.conversation(c)
	if err != nil {
		return s.fail(c, err)
	}

	limit, err := s.limit(c)
	if err != nil {
		return s.fail(c, err)
	}

	records, err := s.config.Archive.List(c.Context(), conv.ID, limit)
	if err != nil {
		return s.fail(c, fmt.Errorf("listing archive: %w", err))
	}
	if records == nil {
		records = []archive.Record{}
	}

	checkpoint, err := s.config.Archive.Checkpoint(c.Context(), conv.ID)
	if err != nil {
		return s.fail(c, fmt.Errorf("reading checkpoint: %w", err))
	}

	return c.JSON(ArchiveResponse{
		Name:       conv.Name,
		ID:         conv.ID,
		Checkpoint: checkpoint,
		Records:    records,
	})
}

// conversation resolves the :name route parameter.
func (s *Server) conversation(c *fiber.Ctx) (*conversation.Conversation, error) {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return nil, badRequest("invalid conversation name")
	}
	if strings.TrimSpace(name) == "" {
		return nil, badRequest("conversation name is required")
	}

	return conversation.New(name, s.ledger, s.logger), nil
}

// limit parses ?limit, falling back to the configured default and clamping
// to the configured maximum.
func (s *Server) limit(c *fiber.Ctx) (uint, error) {
	raw := c.Query("limit")
	if raw == "" {
		return s.config.DefaultLimit, nil
	}

	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid limit %q", raw)
	}

	return uint(min(n, uint64(s.config.MaxLimit))), nil
}

func parsePointer(param, raw string) (conversation.Pointer, error) {
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return conversation.NoPointer, badRequest("invalid %s %q", param, raw)
	}
	return conversation.Pointer(n), nil
}

// fail writes err with the status errorStatus maps it to.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"error", err,
		)
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// errorStatus maps ledger failures to 502 (the chain is upstream of this
// server), malformed input to 400 and everything else to 500.
func errorStatus(err error) int {
	var (
		decodeErr *conversation.DecodeError
		queryErr  *conversation.ChainQueryError
		connErr   *conversation.ConnectionError
		txErr     *conversation.TransactionError
	)

	switch {
	case errors.Is(err, errBadRequest):
		return fiber.StatusBadRequest
	case errors.As(err, &decodeErr),
		errors.As(err, &queryErr),
		errors.As(err, &connErr),
		errors.As(err, &txErr):
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
