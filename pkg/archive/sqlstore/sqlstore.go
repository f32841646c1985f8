// Package sqlstore implements archive.Driver over any SQL database ent's
// dialect builder supports. The sqlite and postgres drivers wrap it.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/chainchat/pkg/archive"
	"github.com/papercomputeco/chainchat/pkg/conversation"
)

// Table is the archive table name.
const Table = "messages"

const (
	columnConversationID = "conversation_id"
	columnPointer        = "pointer"
	columnIndex          = "log_index"
	columnPrev           = "prev"
	columnMessage        = "message"
	columnArchivedAt     = "archived_at"
)

var columns = []string{
	columnConversationID,
	columnPointer,
	columnIndex,
	columnPrev,
	columnMessage,
	columnArchivedAt,
}

// Store implements archive.Driver using an ent SQL driver.
type Store struct {
	drv *entsql.Driver
	now func() time.Time
}

// New wraps drv and creates the archive table if it does not exist.
func New(ctx context.Context, drv *entsql.Driver) (*Store, error) {
	s := &Store{
		drv: drv,
		now: time.Now,
	}

	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

func (s *Store) builder() *entsql.DialectBuilder {
	return entsql.Dialect(s.drv.Dialect())
}

func (s *Store) migrate(ctx context.Context) error {
	b := s.builder()
	query, args := b.CreateTable(Table).
		IfNotExists().
		Columns(
			b.Column(columnConversationID).Type("varchar(64)").Attr("NOT NULL"),
			b.Column(columnPointer).Type("bigint").Attr("NOT NULL"),
			b.Column(columnIndex).Type("bigint").Attr("NOT NULL"),
			b.Column(columnPrev).Type("bigint").Attr("NOT NULL"),
			b.Column(columnMessage).Type("text").Attr("NOT NULL"),
			b.Column(columnArchivedAt).Type("timestamp").Attr("NOT NULL"),
		).
		PrimaryKey(columnConversationID, columnPointer, columnIndex).
		Query()

	return s.drv.Exec(ctx, query, args, nil)
}

// Put inserts a record, ignoring duplicates.
func (s *Store) Put(ctx context.Context, rec archive.Record) (bool, error) {
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = s.now()
	}

	query, args := s.builder().Insert(Table).
		Columns(columns...).
		Values(
			rec.ConversationID.Hex(),
			int64(rec.Pointer),
			int64(rec.Index),
			int64(rec.Prev),
			rec.Message,
			rec.ArchivedAt.UTC(),
		).
		OnConflict(
			entsql.ConflictColumns(columnConversationID, columnPointer, columnIndex),
			entsql.DoNothing(),
		).
		Query()

	var res sql.Result
	if err := s.drv.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("inserting record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows: %w", err)
	}

	return n > 0, nil
}

// Get retrieves a record by its key.
func (s *Store) Get(ctx context.Context, id conversation.ID, pointer conversation.Pointer, index uint) (archive.Record, error) {
	b := s.builder()
	query, args := b.Select(columns...).
		From(b.Table(Table)).
		Where(entsql.And(
			entsql.EQ(columnConversationID, id.Hex()),
			entsql.EQ(columnPointer, int64(pointer)),
			entsql.EQ(columnIndex, int64(index)),
		)).
		Query()

	recs, err := s.query(ctx, query, args)
	if err != nil {
		return archive.Record{}, err
	}
	if len(recs) == 0 {
		return archive.Record{}, archive.ErrNotFound{ConversationID: id, Pointer: pointer, Index: index}
	}

	return recs[0], nil
}

// List returns the newest limit records, oldest first.
func (s *Store) List(ctx context.Context, id conversation.ID, limit uint) ([]archive.Record, error) {
	b := s.builder()
	selector := b.Select(columns...).
		From(b.Table(Table)).
		Where(entsql.EQ(columnConversationID, id.Hex())).
		OrderBy(entsql.Desc(columnPointer), entsql.Desc(columnIndex))
	if limit > 0 {
		selector.Limit(int(limit))
	}

	query, args := selector.Query()
	recs, err := s.query(ctx, query, args)
	if err != nil {
		return nil, err
	}

	slices.Reverse(recs)
	return recs, nil
}

// Checkpoint returns the newest archived Pointer.
func (s *Store) Checkpoint(ctx context.Context, id conversation.ID) (conversation.Pointer, error) {
	recs, err := s.List(ctx, id, 1)
	if err != nil {
		return conversation.NoPointer, err
	}
	if len(recs) == 0 {
		return conversation.NoPointer, nil
	}

	return recs[0].Pointer, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.drv.Close()
}

func (s *Store) query(ctx context.Context, query string, args []any) ([]archive.Record, error) {
	var rows entsql.Rows
	if err := s.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var recs []archive.Record
	for rows.Next() {
		var (
			idHex                string
			pointer, index, prev int64
			message              string
			archivedAt           time.Time
		)
		if err := rows.Scan(&idHex, &pointer, &index, &prev, &message, &archivedAt); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		id, err := conversation.ParseID(idHex)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}

		recs = append(recs, archive.Record{
			ConversationID: id,
			Pointer:        conversation.Pointer(pointer),
			Index:          uint(index),
			Prev:           conversation.Pointer(prev),
			Message:        message,
			ArchivedAt:     archivedAt.UTC(),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	return recs, nil
}

var _ archive.Driver = (*Store)(nil)
