package models

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Feed represents a row in the 'feeds' table: a tenant-registered source
// document together with the state of its canonical snapshot.
type Feed struct {
	ID              int64          `db:"id" json:"id"`
	Name            string         `db:"name" json:"name"`
	URL             string         `db:"url" json:"url"`
	BlobKey         sql.NullString `db:"blob_key" json:"-"`
	PropertyCount   int            `db:"property_count" json:"property_count"`
	ETag            sql.NullString `db:"etag" json:"-"`
	LastModified    sql.NullString `db:"last_modified" json:"-"`
	UpdateAvailable bool           `db:"update_available" json:"update_available"`
	LastFetchedAt   sql.NullTime   `db:"last_fetched_at" json:"-"`
	LastCheckedAt   sql.NullTime   `db:"last_checked_at" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// NewFeed creates a new Feed with default values
func NewFeed(name, url string) *Feed {
	now := time.Now().UTC()
	return &Feed{
		Name:      name,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validators returns the validator pair last stored for the feed.
func (f *Feed) Validators() Validators {
	return Validators{
		ETag:         f.ETag.String,
		LastModified: f.LastModified.String,
	}
}

// ValidFeedURL reports whether raw, ignoring surrounding space, is an
// absolute http or https URL with a host.
func ValidFeedURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// BlobKeyFor returns the blob key under which a feed's snapshot is stored.
func BlobKeyFor(feedID int64) string {
	return fmt.Sprintf("feeds/%d/source.xml", feedID)
}

// Validators is the pair of values an origin server hands out to detect
// content change without a full download.
type Validators struct {
	ETag         string `json:"etag,omitempty"`          // strong validator
	LastModified string `json:"last_modified,omitempty"` // weak timestamp validator
}

// IsZero reports whether neither validator is known.
func (v Validators) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// Matches reports whether v identifies the same representation as other.
// The strong validator wins when both sides carry one.
func (v Validators) Matches(other Validators) bool {
	if v.ETag != "" && other.ETag != "" {
		return v.ETag == other.ETag
	}
	if v.LastModified != "" && other.LastModified != "" {
		return v.LastModified == other.LastModified
	}
	return false
}
