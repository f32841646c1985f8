// Package inmemory provides an in-memory conversation ledger.
//
// Every Send mines a new block, so Pointers are block heights starting at 1.
// It mirrors the contract's bookkeeping (lastMessage, prevChange) closely
// enough to exercise the traversal engine in tests and to run the CLI and API
// without a chain.
package inmemory

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// ErrClosed is returned by operations on a closed Ledger.
var ErrClosed = errors.New("ledger closed")

type event struct {
	id  conversation.ID
	log conversation.Log
}

// Ledger is an in-memory implementation of conversation.Ledger and
// conversation.Sender.
type Ledger struct {
	mu     sync.Mutex
	cond   *sync.Cond
	height conversation.Pointer
	events []event
	last   map[conversation.ID]conversation.Pointer
	subs   map[*subscription]struct{}
	closed bool
}

// New creates an empty Ledger at height 0.
func New() *Ledger {
	l := &Ledger{
		last: make(map[conversation.ID]conversation.Pointer),
		subs: make(map[*subscription]struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Send mines a block holding one PayloadSent event for the conversation.
func (l *Ledger) Send(_ context.Context, id conversation.ID, message string) (conversation.Pointer, error) {
	return l.SendBatch(id, message)
}

// SendBatch mines a single block holding one event per message. Like the
// contract, every event after the first points back at the block itself.
func (l *Ledger) SendBatch(id conversation.ID, messages ...string) (conversation.Pointer, error) {
	if len(messages) == 0 {
		return conversation.NoPointer, errors.New("no messages to send")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return conversation.NoPointer, ErrClosed
	}

	l.height++
	for i, message := range messages {
		data, err := conversation.EncodePayload(message, l.last[id])
		if err != nil {
			return conversation.NoPointer, err
		}
		l.appendLocked(id, uint(i), data)
	}

	l.cond.Broadcast()
	return l.height, nil
}

// AppendRaw mines a block holding an event with an arbitrary payload and makes
// it the conversation head. It exists to inject malformed events.
func (l *Ledger) AppendRaw(id conversation.ID, data []byte) (conversation.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return conversation.NoPointer, ErrClosed
	}

	l.height++
	l.appendLocked(id, 0, data)
	l.cond.Broadcast()
	return l.height, nil
}

// Skip mines n empty blocks.
func (l *Ledger) Skip(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.height += conversation.Pointer(n)
}

// Height returns the latest mined block height.
func (l *Ledger) Height() conversation.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

// String describes the ledger for logs.
func (l *Ledger) String() string {
	return fmt.Sprintf("inmemory(height=%d)", l.Height())
}

func (l *Ledger) appendLocked(id conversation.ID, index uint, data []byte) {
	l.events = append(l.events, event{
		id: id,
		log: conversation.Log{
			Pointer: l.height,
			Index:   index,
			TxHash:  txHash(l.height, index),
			Data:    data,
		},
	})
	l.last[id] = l.height
}

// LastPointer returns the block of the conversation's newest event.
func (l *Ledger) LastPointer(_ context.Context, id conversation.ID) (conversation.Pointer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return conversation.NoPointer, ErrClosed
	}

	return l.last[id], nil
}

// LogsAt returns the conversation's events mined in the given block.
func (l *Ledger) LogsAt(_ context.Context, id conversation.ID, at conversation.Pointer) ([]conversation.Log, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	var logs []conversation.Log
	for _, e := range l.events {
		if e.log.Pointer > at {
			break
		}
		if e.id == id && e.log.Pointer == at {
			logs = append(logs, e.log)
		}
	}

	return logs, nil
}

// Subscribe streams the conversation's events mined at or after from. With
// NoPointer only events mined after the call are streamed. Events are never
// dropped: a slow reader holds back only its own subscription.
func (l *Ledger) Subscribe(ctx context.Context, id conversation.ID, from conversation.Pointer) (conversation.Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrClosed
	}

	s := &subscription{
		ledger: l,
		id:     id,
		from:   from,
		logs:   make(chan conversation.Log),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	if from.IsNone() {
		s.next = len(l.events)
	}
	l.subs[s] = struct{}{}

	go s.run()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// Interrupt fails every open subscription with err.
func (l *Ledger) Interrupt(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for s := range l.subs {
		select {
		case s.errs <- err:
		default:
		}
	}
}

// Close ends every subscription once it has drained and rejects further calls.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.cond.Broadcast()
	return nil
}

type subscription struct {
	ledger *Ledger
	id     conversation.ID
	from   conversation.Pointer

	// next is the index of the first event not yet examined. Guarded by
	// ledger.mu.
	next int

	logs chan conversation.Log
	errs chan error
	done chan struct{}
	once sync.Once
}

func (s *subscription) Logs() <-chan conversation.Log {
	return s.logs
}

func (s *subscription) Err() <-chan error {
	return s.errs
}

func (s *subscription) Close() {
	s.once.Do(func() {
		close(s.done)

		s.ledger.mu.Lock()
		delete(s.ledger.subs, s)
		s.ledger.cond.Broadcast()
		s.ledger.mu.Unlock()
	})
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *subscription) run() {
	defer close(s.logs)

	l := s.ledger
	for {
		l.mu.Lock()
		for s.next >= len(l.events) && !l.closed && !s.stopped() {
			l.cond.Wait()
		}
		if s.stopped() || s.next >= len(l.events) {
			l.mu.Unlock()
			return
		}

		// events is append-only, so the batch stays valid after unlocking.
		batch := l.events[s.next:]
		s.next = len(l.events)
		l.mu.Unlock()

		for _, e := range batch {
			if e.id != s.id || e.log.Pointer < s.from {
				continue
			}

			select {
			case s.logs <- e.log:
			case <-s.done:
				return
			}
		}
	}
}

func txHash(height conversation.Pointer, index uint) string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], uint64(height))
	binary.BigEndian.PutUint64(b[8:], uint64(index))
	sum := sha256.Sum256(b[:])
	return "0x" + hex.EncodeToString(sum[:])
}

var _ conversation.Ledger = (*Ledger)(nil)
var _ conversation.Sender = (*Ledger)(nil)
