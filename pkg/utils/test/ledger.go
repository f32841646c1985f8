package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// MockLedger wraps a conversation.Ledger and fails or blanks out selected calls.
type MockLedger struct {
	conversation.Ledger

	// LastPointerErr is returned by LastPointer when set.
	LastPointerErr error

	// LogsAtErr is returned by LogsAt when set.
	LogsAtErr error

	// SubscribeErr is returned by Subscribe when set.
	SubscribeErr error

	// Empty makes LogsAt return no logs for the listed pointers.
	Empty map[conversation.Pointer]bool

	mu      sync.Mutex
	visited []conversation.Pointer
}

// NewMockLedger wraps the given ledger.
func NewMockLedger(inner conversation.Ledger) *MockLedger {
	return &MockLedger{
		Ledger: inner,
		Empty:  make(map[conversation.Pointer]bool),
	}
}

func (m *MockLedger) LastPointer(ctx context.Context, id conversation.ID) (conversation.Pointer, error) {
	if m.LastPointerErr != nil {
		return conversation.NoPointer, m.LastPointerErr
	}
	return m.Ledger.LastPointer(ctx, id)
}

func (m *MockLedger) LogsAt(ctx context.Context, id conversation.ID, at conversation.Pointer) ([]conversation.Log, error) {
	m.mu.Lock()
	m.visited = append(m.visited, at)
	m.mu.Unlock()

	if m.LogsAtErr != nil {
		return nil, m.LogsAtErr
	}
	if m.Empty[at] {
		return nil, nil
	}
	return m.Ledger.LogsAt(ctx, id, at)
}

func (m *MockLedger) Subscribe(ctx context.Context, id conversation.ID, from conversation.Pointer) (conversation.Subscription, error) {
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	return m.Ledger.Subscribe(ctx, id, from)
}

// Visited returns the pointers passed to LogsAt, in call order.
func (m *MockLedger) Visited() []conversation.Pointer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]conversation.Pointer(nil), m.visited...)
}
