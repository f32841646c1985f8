package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/sse"
)

// SSE event types emitted on follow streams.
const (
	EventMessage = "message"
	EventError   = "error"
	EventEnd     = "end"
)

// followOptions are the parsed query parameters of a follow request.
type followOptions struct {
	// from is the first Pointer to stream. Ignored when rewind is set.
	from conversation.Pointer

	// rewind replays that many recent messages before going live.
	rewind uint

	// limit ends the stream after that many messages. Zero streams until the
	// subscription ends or the client goes away.
	limit uint
}

// handleFollow streams conversation messages as server-sent events.
//
// ?from=P starts at Pointer P (inclusive). ?rewind=N replays the last N
// messages first and then continues live, which is what a client that just
// connected usually wants. With neither, only newly mined messages are
// streamed, unless a Last-Event-ID header asks to resume after an earlier
// stream. ?limit=N closes the stream after N messages.
func (s *Server) handleFollow(c *fiber.Ctx) error {
	conv, err := s.conversation(c)
	if err != nil {
		return s.fail(c, err)
	}

	opts, err := parseFollowOptions(c)
	if err != nil {
		return s.fail(c, err)
	}
	opts.rewind = min(opts.rewind, s.config.MaxLimit)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	s.logger.Debug("follow stream opened",
		"conversation", conv.Name,
		"from", uint64(opts.from),
		"rewind", opts.rewind,
		"limit", opts.limit,
	)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		s.streamFollow(w, conv, opts)
	})

	return nil
}

func parseFollowOptions(c *fiber.Ctx) (followOptions, error) {
	var opts followOptions

	from := c.Query("from")
	rewind := c.Query("rewind")
	if from != "" && rewind != "" {
		return opts, badRequest("from and rewind are mutually exclusive")
	}

	var err error
	switch {
	case from != "":
		if opts.from, err = parsePointer("from", from); err != nil {
			return opts, err
		}
	case rewind != "":
		n, err := strconv.ParseUint(rewind, 10, 64)
		if err != nil {
			return opts, badRequest("invalid rewind %q", rewind)
		}
		opts.rewind = uint(n)
	default:
		if last := c.Get("Last-Event-ID"); last != "" {
			p, err := parsePointer("Last-Event-ID", last)
			if err != nil {
				return opts, err
			}
			opts.from = p + 1
		}
	}

	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return opts, badRequest("invalid limit %q", raw)
		}
		opts.limit = uint(n)
	}

	return opts, nil
}

// streamFollow runs the follow in a goroutine and copies each delivered
// message onto w. A failed write means the client went away; returning cancels
// the follow.
func (s *Server) streamFollow(w *bufio.Writer, conv *conversation.Conversation, opts followOptions) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	messages := make(chan conversation.Message)
	done := make(chan error, 1)

	sink := conversation.SinkFunc(func(ctx context.Context, msg conversation.Message) error {
		select {
		case messages <- msg:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		if opts.rewind > 0 {
			done <- conv.Replay(ctx, opts.rewind, sink)
			return
		}
		done <- conv.Follow(ctx, opts.from, sink)
	}()

	keepAlive := time.NewTicker(s.config.KeepAlive)
	defer keepAlive.Stop()

	var sent uint
	for {
		select {
		case msg := <-messages:
			if err := writeMessage(w, msg); err != nil {
				s.logger.Debug("follow client went away",
					"conversation", conv.Name,
					"sent", sent,
				)
				return
			}

			sent++
			if opts.limit > 0 && sent >= opts.limit {
				_ = sse.Write(w, sse.Event{Type: EventEnd, Data: strconv.FormatUint(uint64(sent), 10)})
				return
			}

		case <-keepAlive.C:
			if err := sse.Comment(w, "keep-alive"); err != nil {
				return
			}

		case err := <-done:
			switch {
			case errors.Is(err, context.Canceled):
				// Server shutdown.
			case err != nil:
				s.logger.Error("follow stream failed",
					"conversation", conv.Name,
					"sent", sent,
					"error", err,
				)
				_ = sse.Write(w, sse.Event{Type: EventError, Data: err.Error()})
			default:
				_ = sse.Write(w, sse.Event{Type: EventEnd, Data: strconv.FormatUint(uint64(sent), 10)})
			}
			return
		}
	}
}

func writeMessage(w *bufio.Writer, msg conversation.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return sse.Write(w, sse.Event{
		ID:   msg.Pointer.String(),
		Type: EventMessage,
		Data: string(data),
	})
}
