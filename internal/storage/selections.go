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

// SelectionRepository is the selection registry: which property ids each
// customer picked from each feed.
type SelectionRepository struct {
	db *database.DB
}

// NewSelectionRepository creates a new repository instance.
func NewSelectionRepository(db *database.DB) *SelectionRepository {
	return &SelectionRepository{db: db}
}

// Replace swaps the whole selection of (customerID, feedID) for
// propertyIDs. Delete and insert commit together or not at all.
// Duplicate ids collapse into one row.
func (r *SelectionRepository) Replace(ctx context.Context, customerID, feedID int64, propertyIDs []string) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM customer_selections WHERE customer_id = ? AND feed_id = ?",
			customerID, feedID); err != nil {
			return fmt.Errorf("failed to clear selections: %w", err)
		}
		if len(propertyIDs) == 0 {
			return nil
		}

		stmt, err := tx.PreparexContext(ctx, `
			INSERT INTO customer_selections (customer_id, feed_id, property_id, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (customer_id, feed_id, property_id) DO NOTHING`)
		if err != nil {
			return fmt.Errorf("failed to prepare selection insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, pid := range propertyIDs {
			if _, err := stmt.ExecContext(ctx, customerID, feedID, pid, now); err != nil {
				return fmt.Errorf("failed to insert selection %s: %w", pid, err)
			}
		}
		return nil
	})
}

// PropertyIDs returns the ids customerID selected from feedID.
func (r *SelectionRepository) PropertyIDs(ctx context.Context, customerID, feedID int64) ([]string, error) {
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT property_id FROM customer_selections
		WHERE customer_id = ? AND feed_id = ?
		ORDER BY id ASC`,
		customerID, feedID)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return ids, nil
}

// FirstFeedID returns a feed the customer has selections on, or
// ErrNotFound when there is none.
func (r *SelectionRepository) FirstFeedID(ctx context.Context, customerID int64) (int64, error) {
	var feedID int64
	err := r.db.GetContext(ctx, &feedID,
		"SELECT feed_id FROM customer_selections WHERE customer_id = ? ORDER BY feed_id ASC LIMIT 1",
		customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("selections of customer %d: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("database query failed: %w", err)
	}
	return feedID, nil
}

// FeedIDsForCustomer lists the distinct feeds customerID has selections on.
func (r *SelectionRepository) FeedIDsForCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	ids := []int64{}
	err := r.db.SelectContext(ctx, &ids,
		"SELECT DISTINCT feed_id FROM customer_selections WHERE customer_id = ? ORDER BY feed_id",
		customerID)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return ids, nil
}

// TokensForFeed lists the distinct tokens of customers with at least one
// selection on feedID.
func (r *SelectionRepository) TokensForFeed(ctx context.Context, feedID int64) ([]string, error) {
	tokens := []string{}
	err := r.db.SelectContext(ctx, &tokens, `
		SELECT DISTINCT c.token
		FROM customers c
		JOIN customer_selections cs ON c.id = cs.customer_id
		WHERE cs.feed_id = ?`,
		feedID)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return tokens, nil
}

// CountsForCustomer returns, per selected feed, how many properties the
// customer picked.
func (r *SelectionRepository) CountsForCustomer(ctx context.Context, customerID int64) ([]models.SelectionCount, error) {
	counts := []models.SelectionCount{}
	err := r.db.SelectContext(ctx, &counts, `
		SELECT f.id AS feed_id, f.name AS feed_name, COUNT(cs.property_id) AS property_count
		FROM feeds f
		JOIN customer_selections cs ON f.id = cs.feed_id
		WHERE cs.customer_id = ?
		GROUP BY f.id, f.name
		ORDER BY f.id`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return counts, nil
}
