package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"xmlcustomizer/syndicator/internal/database"
	"xmlcustomizer/syndicator/internal/models"
)

// FetchResult is what a successful full fetch commits for a feed.
type FetchResult struct {
	BlobKey       string
	PropertyCount int
	Validators    models.Validators
	FetchedAt     time.Time
}

// FeedRepository reads and writes rows of the 'feeds' table.
type FeedRepository struct {
	db *database.DB
}

// NewFeedRepository creates a new repository instance.
func NewFeedRepository(db *database.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// Create inserts feed and sets its ID.
func (r *FeedRepository) Create(ctx context.Context, feed *models.Feed) error {
	return insertFeed(ctx, r.db, feed)
}

// CreateBatch inserts feeds in one transaction, skipping URLs that are
// already registered. It returns how many rows were inserted.
func (r *FeedRepository) CreateBatch(ctx context.Context, feeds []*models.Feed) (int, error) {
	inserted := 0
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, feed := range feeds {
			var exists bool
			if err := tx.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM feeds WHERE url = ?)", feed.URL); err != nil {
				return fmt.Errorf("checking feed %s: %w", feed.URL, err)
			}
			if exists {
				continue
			}
			if err := insertFeed(ctx, tx, feed); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	return inserted, err
}

func insertFeed(ctx context.Context, ext sqlx.ExtContext, feed *models.Feed) error {
	now := time.Now().UTC()
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = now
	}
	feed.UpdatedAt = now

	res, err := ext.ExecContext(ctx, `
		INSERT INTO feeds (name, url, created_at, updated_at)
		VALUES (?, ?, ?, ?)`,
		feed.Name, feed.URL, feed.CreatedAt, feed.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feed %s: %w", feed.URL, err)
	}
	feed.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read feed id: %w", err)
	}
	return nil
}

// Get returns the feed with id or ErrNotFound.
func (r *FeedRepository) Get(ctx context.Context, id int64) (*models.Feed, error) {
	var feed models.Feed
	err := r.db.GetContext(ctx, &feed, "SELECT * FROM feeds WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return &feed, nil
}

// List returns up to limit feeds in creation order, starting after cursor.
func (r *FeedRepository) List(ctx context.Context, limit int, after *Cursor) ([]models.Feed, error) {
	where, args := after.keyset()
	feeds := []models.Feed{}
	err := r.db.SelectContext(ctx, &feeds,
		"SELECT * FROM feeds WHERE "+where+" ORDER BY created_at ASC, id ASC LIMIT ?",
		append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return feeds, nil
}

// Update writes the feed's name and URL and reports whether the URL
// changed. A new URL clears the snapshot state of the old origin, so the
// next read or check fetches from scratch.
func (r *FeedRepository) Update(ctx context.Context, id int64, name, url string) (bool, error) {
	urlChanged := false
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var current string
		err := tx.GetContext(ctx, &current, "SELECT url FROM feeds WHERE id = ?", id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("feed %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("database query failed: %w", err)
		}

		now := time.Now().UTC()
		if current == url {
			_, err = tx.ExecContext(ctx, "UPDATE feeds SET name = ?, updated_at = ? WHERE id = ?", name, now, id)
		} else {
			urlChanged = true
			_, err = tx.ExecContext(ctx, `
				UPDATE feeds
				SET name = ?, url = ?, blob_key = NULL, property_count = 0,
				    etag = NULL, last_modified = NULL, update_available = 0,
				    last_fetched_at = NULL, last_checked_at = NULL, updated_at = ?
				WHERE id = ?`,
				name, url, now, id)
		}
		if err != nil {
			return fmt.Errorf("failed to update feed %d: %w", id, err)
		}
		return nil
	})
	return urlChanged, err
}

// ListDueForCheck returns feeds never checked or last checked before cutoff,
// oldest check first.
func (r *FeedRepository) ListDueForCheck(ctx context.Context, cutoff time.Time) ([]models.Feed, error) {
	feeds := []models.Feed{}
	err := r.db.SelectContext(ctx, &feeds, `
		SELECT * FROM feeds
		WHERE last_checked_at IS NULL OR last_checked_at < ?
		ORDER BY last_checked_at ASC, id ASC`,
		cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return feeds, nil
}

// MarkChecked records a conditional check. The update flag is only ever
// raised here; validators are left alone.
func (r *FeedRepository) MarkChecked(ctx context.Context, id int64, at time.Time, updateAvailable bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_checked_at = ?, update_available = (update_available OR ?), updated_at = ?
		WHERE id = ?`,
		at.UTC(), updateAvailable, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark feed %d checked: %w", id, err)
	}
	return nil
}

// MarkCurrent records that the origin confirmed the stored snapshot is
// current. It lowers the update flag and leaves the blob reference, count
// and validators alone.
func (r *FeedRepository) MarkCurrent(ctx context.Context, id int64, at time.Time) error {
	out, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_checked_at = ?, update_available = 0, updated_at = ?
		WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark feed %d current: %w", id, err)
	}
	return requireRow(out, "feed", id)
}

// RecordFetch commits a successful fetch. Blob reference, property count
// and validators change together in one statement.
func (r *FeedRepository) RecordFetch(ctx context.Context, id int64, res FetchResult) error {
	at := res.FetchedAt.UTC()
	out, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET blob_key = ?, property_count = ?, etag = ?, last_modified = ?,
		    update_available = 0, last_fetched_at = ?, last_checked_at = ?, updated_at = ?
		WHERE id = ?`,
		res.BlobKey, res.PropertyCount,
		nullString(res.Validators.ETag), nullString(res.Validators.LastModified),
		at, at, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record fetch of feed %d: %w", id, err)
	}
	return requireRow(out, "feed", id)
}

// Delete removes the feed; its selections go with it.
func (r *FeedRepository) Delete(ctx context.Context, id int64) error {
	out, err := r.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete feed %d: %w", id, err)
	}
	return requireRow(out, "feed", id)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireRow(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}
