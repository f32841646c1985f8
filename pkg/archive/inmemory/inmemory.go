// Package inmemory provides a map-backed archive driver.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Driver implements archive.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	// records holds each conversation's records sorted by pointer and index
	records map[conversation.ID][]archive.Record

	now func() time.Time
}

// NewDriver creates a new in-memory archive.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[conversation.ID][]archive.Record),
		now:     time.Now,
	}
}

// Put stores a record. Returns false if the key already exists.
func (d *Driver) Put(_ context.Context, rec archive.Record) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	recs := d.records[rec.ConversationID]
	i := sort.Search(len(recs), func(i int) bool {
		return !less(recs[i], rec)
	})
	if i < len(recs) && recs[i].Pointer == rec.Pointer && recs[i].Index == rec.Index {
		return false, nil
	}

	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = d.now().UTC()
	}

	recs = append(recs, archive.Record{})
	copy(recs[i+1:], recs[i:])
	recs[i] = rec
	d.records[rec.ConversationID] = recs

	return true, nil
}

// Get retrieves a record by its key.
func (d *Driver) Get(_ context.Context, id conversation.ID, pointer conversation.Pointer, index uint) (archive.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, rec := range d.records[id] {
		if rec.Pointer == pointer && rec.Index == index {
			return rec, nil
		}
	}

	return archive.Record{}, archive.ErrNotFound{ConversationID: id, Pointer: pointer, Index: index}
}

// List returns the newest limit records, oldest first.
func (d *Driver) List(_ context.Context, id conversation.ID, limit uint) ([]archive.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	recs := d.records[id]
	if limit > 0 && uint(len(recs)) > limit {
		recs = recs[uint(len(recs))-limit:]
	}

	out := make([]archive.Record, len(recs))
	copy(out, recs)
	return out, nil
}

// Checkpoint returns the newest archived Pointer.
func (d *Driver) Checkpoint(_ context.Context, id conversation.ID) (conversation.Pointer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	recs := d.records[id]
	if len(recs) == 0 {
		return conversation.NoPointer, nil
	}
	return recs[len(recs)-1].Pointer, nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

func less(a, b archive.Record) bool {
	if a.Pointer != b.Pointer {
		return a.Pointer < b.Pointer
	}
	return a.Index < b.Index
}

var _ archive.Driver = (*Driver)(nil)
