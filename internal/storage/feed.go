package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"rssgen/internal/model"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const feedColumns = `id, feed_id, original_url, rss_xml, created_at, updated_at`

type FeedStorage struct {
	db *sqlx.DB
}

type dbFeed struct {
	ID          int64     `db:"id"`
	FeedID      string    `db:"feed_id"`
	OriginalURL string    `db:"original_url"`
	RSSXML      string    `db:"rss_xml"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (f dbFeed) toModel() model.FeedRecord {
	return model.FeedRecord{
		Key:         f.ID,
		ID:          f.FeedID,
		OriginalURL: f.OriginalURL,
		RenderedXML: f.RSSXML,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func NewFeedStorage(db *sqlx.DB) *FeedStorage {
	return &FeedStorage{
		db: db,
	}
}

func (s *FeedStorage) Create(ctx context.Context, record model.FeedRecord) (model.FeedRecord, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.FeedRecord{}, err
	}
	defer conn.Close()

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}

	var row dbFeed

	err = conn.GetContext(
		ctx,
		&row,
		s.db.Rebind(`INSERT INTO feeds (feed_id, original_url, rss_xml, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			RETURNING `+feedColumns),
		record.ID,
		record.OriginalURL,
		record.RenderedXML,
		record.CreatedAt,
		record.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return model.FeedRecord{}, fmt.Errorf("%w: %s", model.ErrDuplicateIdentifier, record.ID)
		}
		return model.FeedRecord{}, err
	}

	return row.toModel(), nil
}

func (s *FeedStorage) FindByID(ctx context.Context, id string) (model.FeedRecord, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.FeedRecord{}, err
	}
	defer conn.Close()

	var row dbFeed

	err = conn.GetContext(ctx, &row, s.db.Rebind(`SELECT `+feedColumns+` FROM feeds WHERE feed_id = ?`), id)

	if err != nil {
		return model.FeedRecord{}, notFound(err, id)
	}

	return row.toModel(), nil
}

// UpdateByKey overwrites the document and timestamp of the record stored
// under key. Identifier and source URL are left alone.
func (s *FeedStorage) UpdateByKey(ctx context.Context, key int64, renderedXML string, updatedAt time.Time) (model.FeedRecord, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.FeedRecord{}, err
	}
	defer conn.Close()

	var row dbFeed

	err = conn.GetContext(
		ctx,
		&row,
		s.db.Rebind(`UPDATE feeds SET rss_xml = ?, updated_at = ? WHERE id = ? RETURNING `+feedColumns),
		renderedXML,
		updatedAt.UTC(),
		key,
	)

	if err != nil {
		return model.FeedRecord{}, notFound(err, fmt.Sprintf("key %d", key))
	}

	return row.toModel(), nil
}

func (s *FeedStorage) DeleteByID(ctx context.Context, id string) (model.FeedRecord, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return model.FeedRecord{}, err
	}
	defer conn.Close()

	var row dbFeed

	err = conn.GetContext(ctx, &row, s.db.Rebind(`DELETE FROM feeds WHERE feed_id = ? RETURNING `+feedColumns), id)

	if err != nil {
		return model.FeedRecord{}, notFound(err, id)
	}

	return row.toModel(), nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", model.ErrRecordNotFound, what)
	}

	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return true
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
