package evm

import (
	"context"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// liveBuffer is the channel size handed to SubscribeFilterLogs. The node
// drops the subscription if it cannot keep up.
const liveBuffer = 128

// Subscribe opens a log subscription for the conversation.
//
// The live subscription is opened before the chain tip is read, then blocks
// from..tip are backfilled with FilterLogs and live logs at or below tip are
// discarded. Nothing mined between the two calls is lost or repeated. A from of
// NoPointer skips the backfill and streams live logs only.
func (c *Client) Subscribe(ctx context.Context, id conversation.ID, from conversation.Pointer) (conversation.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)

	live := make(chan types.Log, liveBuffer)
	sub, err := c.backend.SubscribeFilterLogs(ctx, c.query(id, nil, nil), live)
	if err != nil {
		cancel()
		return nil, err
	}

	floor := from
	var backlog []conversation.Log

	if !from.IsNone() {
		tip, err := c.backend.BlockNumber(ctx)
		if err != nil {
			sub.Unsubscribe()
			cancel()
			return nil, err
		}

		if uint64(from) <= tip {
			logs, err := c.backend.FilterLogs(ctx, c.query(id,
				new(big.Int).SetUint64(uint64(from)),
				new(big.Int).SetUint64(tip),
			))
			if err != nil {
				sub.Unsubscribe()
				cancel()
				return nil, err
			}

			backlog = c.convert(id, logs)
			floor = conversation.Pointer(tip + 1)
		}

		c.logger.Debug("subscription backfilled",
			"conversation_id", id.String(),
			"from", uint64(from),
			"tip", tip,
			"backlog", len(backlog),
		)
	}

	s := &subscription{
		logs:   make(chan conversation.Log),
		errs:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.run(ctx, c, id, backlog, floor, sub, live)

	return s, nil
}

type subscription struct {
	logs   chan conversation.Log
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Logs() <-chan conversation.Log { return s.logs }

func (s *subscription) Err() <-chan error { return s.errs }

func (s *subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *subscription) run(
	ctx context.Context,
	c *Client,
	id conversation.ID,
	backlog []conversation.Log,
	floor conversation.Pointer,
	sub ethereum.Subscription,
	live <-chan types.Log,
) {
	defer close(s.done)
	defer close(s.logs)
	defer sub.Unsubscribe()

	for _, l := range backlog {
		if !s.emit(ctx, l) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-sub.Err():
			if err != nil {
				s.errs <- err
			}
			return

		case raw := <-live:
			l, ok := c.match(id, &raw)
			if !ok {
				continue
			}
			if !floor.IsNone() && l.Pointer < floor {
				continue
			}
			if !s.emit(ctx, l) {
				return
			}
		}
	}
}

func (s *subscription) emit(ctx context.Context, l conversation.Log) bool {
	select {
	case s.logs <- l:
		return true
	case <-ctx.Done():
		return false
	}
}
