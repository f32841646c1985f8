package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	cursorFile = "cursors.json"
)

// Cursor is the follow position persisted for one conversation.
type Cursor struct {
	// Conversation is the human readable conversation name.
	Conversation string `json:"conversation"`

	// Pointer is the last block delivered to the user.
	Pointer uint64 `json:"pointer"`

	UpdatedAt time.Time `json:"updated_at"`
}

// cursors maps 0x-prefixed conversation IDs to their Cursor.
type cursors map[string]Cursor

// LoadCursor loads the cursor for a conversation from .chainchat/cursors.json.
// Returns nil, nil if no cursor was saved for it.
// If overrideDir is non-empty, it is used instead of the default location.
func (m *Manager) LoadCursor(overrideDir, conversationID string) (*Cursor, error) {
	all, err := m.loadCursors(overrideDir)
	if err != nil {
		return nil, err
	}

	c, ok := all[conversationID]
	if !ok {
		return nil, nil
	}

	return &c, nil
}

// SaveCursor persists the cursor for a conversation, keeping the others.
func (m *Manager) SaveCursor(overrideDir, conversationID string, c Cursor) error {
	if conversationID == "" {
		return errors.New("cannot save cursor without a conversation id")
	}

	all, err := m.loadCursors(overrideDir)
	if err != nil {
		return err
	}

	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	all[conversationID] = c

	return m.writeCursors(overrideDir, all)
}

// ClearCursor removes the cursor for a conversation.
// Returns nil if none was saved.
func (m *Manager) ClearCursor(overrideDir, conversationID string) error {
	all, err := m.loadCursors(overrideDir)
	if err != nil {
		return err
	}

	if _, ok := all[conversationID]; !ok {
		return nil
	}
	delete(all, conversationID)

	return m.writeCursors(overrideDir, all)
}

// ListCursors returns every saved cursor keyed by conversation ID.
func (m *Manager) ListCursors(overrideDir string) (map[string]Cursor, error) {
	return m.loadCursors(overrideDir)
}

func (m *Manager) loadCursors(overrideDir string) (cursors, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, cursorFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cursors{}, nil
		}
		return nil, fmt.Errorf("reading cursors: %w", err)
	}

	all := cursors{}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing cursors: %w", err)
	}

	return all, nil
}

func (m *Manager) writeCursors(overrideDir string, all cursors) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling cursors: %w", err)
	}

	// Write then rename so a crash never leaves a truncated file.
	path := filepath.Join(dir, cursorFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing cursors: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing cursors: %w", err)
	}

	return nil
}
