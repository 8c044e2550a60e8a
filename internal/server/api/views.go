package api

import (
	"database/sql"
	"time"

	"xmlcustomizer/syndicator/internal/models"
)

// FeedView is the admin representation of a feed.
type FeedView struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	PropertyCount   int        `json:"property_count"`
	ETag            string     `json:"etag,omitempty"`
	LastModified    string     `json:"last_modified,omitempty"`
	UpdateAvailable bool       `json:"update_available"`
	LastFetchedAt   *time.Time `json:"last_fetched_at,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func newFeedView(f *models.Feed) FeedView {
	return FeedView{
		ID:              f.ID,
		Name:            f.Name,
		URL:             f.URL,
		PropertyCount:   f.PropertyCount,
		ETag:            f.ETag.String,
		LastModified:    f.LastModified.String,
		UpdateAvailable: f.UpdateAvailable,
		LastFetchedAt:   nullTime(f.LastFetchedAt),
		LastCheckedAt:   nullTime(f.LastCheckedAt),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// CustomerView is the admin representation of a customer. FeedPath is
// the public path serving the customer's document.
type CustomerView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Token     string    `json:"token"`
	FeedPath  string    `json:"feed_path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newCustomerView(c *models.Customer) CustomerView {
	return CustomerView{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email.String,
		Token:     c.Token,
		FeedPath:  "/feed/" + c.Token,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
