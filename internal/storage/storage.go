// Package storage holds the sqlx repositories for feeds, customers and
// the selection registry.
package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// Cursor marks the last row of a page in (created_at, id) order.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// keyset returns the WHERE fragment and args that continue after c.
func (c *Cursor) keyset() (string, []any) {
	if c == nil {
		return "1 = 1", nil
	}
	ts := c.CreatedAt.UTC()
	return "(created_at > ? OR (created_at = ? AND id > ?))", []any{ts, ts, c.ID}
}
