package conversation

import (
	"cmp"
	"context"
	"log/slog"
	"slices"

	"github.com/papercomputeco/chainchat/pkg/logger"
)

// RewindResult is the outcome of a backward traversal.
type RewindResult struct {
	// Messages are the rewound messages, oldest first.
	Messages []Message `json:"messages"`

	// Cursor is the earliest known Pointer that has not been explored yet.
	// It is NoPointer once the start of the conversation was reached. Pass it
	// to RewindFrom to page further back.
	Cursor Pointer `json:"cursor"`

	// Head is the Pointer the traversal started from. For Rewind this is the
	// conversation's newest event.
	Head Pointer `json:"head"`
}

// Texts returns the message texts, oldest first.
func (r *RewindResult) Texts() []string {
	texts := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		texts[i] = m.Text
	}
	return texts
}

// FollowFrom returns the Pointer a Follower must start from to continue right
// after the rewound window: the block after Head. An empty conversation yields
// NoPointer, which follows only newly mined events.
func (r *RewindResult) FollowFrom() Pointer {
	if r.Head.IsNone() {
		return NoPointer
	}
	return r.Head + 1
}

// Rewinder walks a conversation's backward pointer chain.
type Rewinder struct {
	ledger Ledger
	logger *slog.Logger
}

// NewRewinder creates a Rewinder over the given Ledger. A nil logger discards
// output.
func NewRewinder(ledger Ledger, l *slog.Logger) *Rewinder {
	if l == nil {
		l = logger.Nop()
	}

	return &Rewinder{
		ledger: ledger,
		logger: l,
	}
}

// Rewind materializes up to limit of the most recent messages of the
// conversation, oldest first.
//
// The conversation head is resolved first; a failed lookup is a
// *ChainQueryError. A limit of 0 performs no traversal and returns the head as
// the Cursor. Any malformed event aborts with a *DecodeError and a Pointer that
// yields no events aborts with a *ChainQueryError wrapping ErrBrokenChain.
func (r *Rewinder) Rewind(ctx context.Context, id ID, limit uint) (*RewindResult, error) {
	head, err := r.ledger.LastPointer(ctx, id)
	if err != nil {
		return nil, &ChainQueryError{Op: "last pointer", Err: err}
	}

	r.logger.Debug("resolved conversation head",
		"conversation_id", id.String(),
		"head", uint64(head),
	)

	return r.RewindFrom(ctx, id, head, limit)
}

// RewindFrom walks backward starting at the given Pointer instead of the
// conversation head, e.g. from a previous RewindResult's Cursor.
func (r *Rewinder) RewindFrom(ctx context.Context, id ID, from Pointer, limit uint) (*RewindResult, error) {
	messages, cursor, err := r.walk(ctx, id, from, limit)
	if err != nil {
		return nil, err
	}

	r.logger.Info("rewound conversation",
		"conversation_id", id.String(),
		"messages", len(messages),
		"head", uint64(from),
		"cursor", uint64(cursor),
	)

	return &RewindResult{
		Messages: messages,
		Cursor:   cursor,
		Head:     from,
	}, nil
}

// walk collects messages newest first, following each event's Prev pointer,
// then reverses them.
//
// Every event after the first in a block points back at that block, so a
// block's events are consumed by descending Index and a Prev equal to the
// visited block moves on to the next older sibling. Each Pointer is queried
// once: a Prev that does not move strictly backward, or a sibling link with no
// sibling left, is a broken chain. The walk stops mid-block once the limit is
// spent, and the Cursor then stays on that block.
func (r *Rewinder) walk(ctx context.Context, id ID, from Pointer, limit uint) ([]Message, Pointer, error) {
	messages := make([]Message, 0, min(limit, 256))
	p := from
	remaining := limit

	for remaining > 0 && !p.IsNone() {
		if err := ctx.Err(); err != nil {
			return nil, p, err
		}

		at := p
		logs, err := r.ledger.LogsAt(ctx, id, at)
		if err != nil {
			return nil, p, &ChainQueryError{Op: "logs", Pointer: at, Err: err}
		}

		if len(logs) == 0 {
			return nil, p, &ChainQueryError{Op: "logs", Pointer: at, Err: ErrBrokenChain}
		}

		r.logger.Debug("visiting pointer",
			"conversation_id", id.String(),
			"pointer", uint64(at),
			"events", len(logs),
		)

		slices.SortStableFunc(logs, func(a, b Log) int {
			return cmp.Compare(b.Index, a.Index)
		})

		for i, l := range logs {
			msg, err := decodeLog(id, l)
			if err != nil {
				r.logger.Error("malformed event",
					"conversation_id", id.String(),
					"pointer", uint64(l.Pointer),
					"error", err,
				)
				return nil, p, err
			}

			messages = append(messages, msg)
			p = msg.Prev
			remaining--
			if remaining == 0 || p != at {
				break
			}
			if i == len(logs)-1 {
				return nil, p, &ChainQueryError{Op: "logs", Pointer: at, Err: ErrBrokenChain}
			}
		}

		if remaining > 0 && p > at {
			return nil, p, &ChainQueryError{Op: "logs", Pointer: at, Err: ErrBrokenChain}
		}
	}

	slices.Reverse(messages)
	return messages, p, nil
}
