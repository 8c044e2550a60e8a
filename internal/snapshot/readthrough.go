package snapshot

import (
	"context"
	"errors"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// LoaderFunc fetches a feed from its origin, stores the snapshot and
// returns the document.
type LoaderFunc func(ctx context.Context, feedID int64) ([]byte, error)

// ReadThrough serves documents from the store and populates a missing
// snapshot exactly once. A stored snapshot is never refetched here;
// keeping it fresh is the update checker's job.
type ReadThrough struct {
	store *Store
	load  LoaderFunc
	group singleflight.Group
}

// NewReadThrough wraps store with load as the miss handler.
func NewReadThrough(store *Store, load LoaderFunc) *ReadThrough {
	return &ReadThrough{store: store, load: load}
}

// Document returns the stored document of feedID, loading it from the
// origin on first use. Concurrent misses for the same feed share one load.
func (r *ReadThrough) Document(ctx context.Context, feedID int64) ([]byte, error) {
	snap, err := r.store.Get(ctx, feedID)
	if err == nil {
		metrics.GetOrCreateCounter(`snapshot_reads_total{result="hit"}`).Inc()
		return snap.Document, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	metrics.GetOrCreateCounter(`snapshot_reads_total{result="miss"}`).Inc()

	v, err, shared := r.group.Do(strconv.FormatInt(feedID, 10), func() (interface{}, error) {
		// Another caller may have finished the load since our read.
		if snap, err := r.store.Get(ctx, feedID); err == nil {
			return snap.Document, nil
		}
		log.Info().
			Int64("feed_id", feedID).
			Msg("No snapshot stored, fetching from origin")
		return r.load(ctx, feedID)
	})
	if err != nil {
		return nil, err
	}
	log.Debug().
		Int64("feed_id", feedID).
		Bool("shared", shared).
		Msg("Snapshot populated")
	return v.([]byte), nil
}
