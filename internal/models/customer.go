package models

import (
	"database/sql"
	"time"
)

// Customer represents a row in the 'customers' table. Token is the
// unguessable public identifier used in the feed URL and never changes.
type Customer struct {
	ID        int64          `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Email     sql.NullString `db:"email" json:"-"`
	Token     string         `db:"token" json:"token"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Selection is one (customer, feed, property) membership triple.
type Selection struct {
	ID         int64     `db:"id"`
	CustomerID int64     `db:"customer_id"`
	FeedID     int64     `db:"feed_id"`
	PropertyID string    `db:"property_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// SelectionCount summarises how many properties a customer picked from one feed.
type SelectionCount struct {
	FeedID        int64  `db:"feed_id" json:"id"`
	FeedName      string `db:"feed_name" json:"name"`
	PropertyCount int    `db:"property_count" json:"property_count"`
}
