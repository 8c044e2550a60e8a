package feedsync

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/snapshot"
	"xmlcustomizer/syndicator/internal/storage"
)

type Origin interface {
	Head(ctx context.Context, url string, v models.Validators) (*origin.Response, error)
	Get(ctx context.Context, url string, v models.Validators) (*origin.Response, error)
}

type FeedStore interface {
	Get(ctx context.Context, id int64) (*models.Feed, error)
	ListDueForCheck(ctx context.Context, cutoff time.Time) ([]models.Feed, error)
	MarkChecked(ctx context.Context, id int64, at time.Time, updateAvailable bool) error
	MarkCurrent(ctx context.Context, id int64, at time.Time) error
	RecordFetch(ctx context.Context, id int64, res storage.FetchResult) error
}

type SnapshotStore interface {
	Get(ctx context.Context, feedID int64) (*snapshot.Snapshot, error)
	Put(ctx context.Context, feedID int64, doc []byte, meta snapshot.Metadata) error
}

type Invalidator interface {
	OnFeedRefreshed(ctx context.Context, feedID int64) error
}
