package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/chainchat/pkg/logger"
)

// Follower delivers new conversation events to a Sink as they are mined.
type Follower struct {
	ledger Ledger
	logger *slog.Logger
}

// NewFollower creates a Follower over the given Ledger. A nil logger discards
// output.
func NewFollower(ledger Ledger, l *slog.Logger) *Follower {
	if l == nil {
		l = logger.Nop()
	}

	return &Follower{
		ledger: ledger,
		logger: l,
	}
}

// Follow subscribes to the conversation from the given Pointer, inclusive, and
// hands every event to sink in the order the subscription emits it.
//
// It returns nil when the subscription's stream ends and ctx.Err() when ctx is
// cancelled. A failed subscription is a *ChainQueryError, a malformed event is
// a *DecodeError, and a Sink error is returned wrapped; all of them end the
// follow immediately. Nothing is retried or skipped.
func (f *Follower) Follow(ctx context.Context, id ID, from Pointer, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}

	sub, err := f.ledger.Subscribe(ctx, id, from)
	if err != nil {
		return &ChainQueryError{Op: "subscribe", Pointer: from, Err: err}
	}
	defer sub.Close()

	f.logger.Info("following conversation",
		"conversation_id", id.String(),
		"from", uint64(from),
	)

	logs := sub.Logs()
	errs := sub.Err()
	delivered := 0

	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("follow cancelled",
				"conversation_id", id.String(),
				"delivered", delivered,
			)
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				// A nil channel never fires again.
				errs = nil
				continue
			}
			return &ChainQueryError{Op: "subscription", Err: err}

		case l, ok := <-logs:
			if !ok {
				// Cancelling ctx also closes the subscription.
				if err := ctx.Err(); err != nil {
					return err
				}
				f.logger.Info("subscription closed",
					"conversation_id", id.String(),
					"delivered", delivered,
				)
				return nil
			}

			msg, err := decodeLog(id, l)
			if err != nil {
				f.logger.Error("malformed event",
					"conversation_id", id.String(),
					"pointer", uint64(l.Pointer),
					"error", err,
				)
				return err
			}

			if err := sink.Deliver(ctx, msg); err != nil {
				return fmt.Errorf("delivering message at %d: %w", msg.Pointer, err)
			}
			delivered++
		}
	}
}
