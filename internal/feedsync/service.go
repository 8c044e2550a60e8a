// Package feedsync keeps canonical snapshots in step with their origins:
// conditional update checks, fetch-and-cache, and the periodic batch check.
package feedsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/snapshot"
	"xmlcustomizer/syndicator/internal/storage"
	"xmlcustomizer/syndicator/internal/xmlfeed"
)

// CheckResult is the outcome of a conditional update check.
type CheckResult struct {
	HasUpdate  bool
	Validators models.Validators
}

// FetchResult is the outcome of FetchAndCache.
type FetchResult struct {
	Document      []byte
	WasUpdated    bool
	PropertyCount int
}

// Service is the origin sync client.
type Service struct {
	origin      Origin
	feeds       FeedStore
	snapshots   SnapshotStore
	invalidator Invalidator
	cfg         Config
	now         func() time.Time
}

// NewService wires a Service. Zero values in cfg fall back to defaults.
func NewService(origin Origin, feeds FeedStore, snapshots SnapshotStore, invalidator Invalidator, cfg Config) *Service {
	return &Service{
		origin:      origin,
		feeds:       feeds,
		snapshots:   snapshots,
		invalidator: invalidator,
		cfg:         cfg.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// CheckForUpdates asks the origin whether feed changed since its stored
// validators. A feed without validators always has an update. The check
// time is recorded even when the origin fails; validators are never
// touched here.
func (s *Service) CheckForUpdates(ctx context.Context, feed *models.Feed) (*CheckResult, error) {
	stored := feed.Validators()
	now := s.now()

	if stored.IsZero() {
		if err := s.feeds.MarkChecked(ctx, feed.ID, now, true); err != nil {
			return nil, err
		}
		return &CheckResult{HasUpdate: true}, nil
	}

	resp, err := s.headOrGet(ctx, feed.URL, stored)
	if err != nil {
		metrics.GetOrCreateCounter(`feedsync_checks_total{result="error"}`).Inc()
		if markErr := s.feeds.MarkChecked(ctx, feed.ID, now, false); markErr != nil {
			log.Error().
				Err(markErr).
				Int64("feed_id", feed.ID).
				Msg("Failed to record check time of failing feed")
		}
		return nil, err
	}

	res := &CheckResult{Validators: resp.Validators}
	if !resp.NotModified {
		res.HasUpdate = !stored.Matches(resp.Validators)
	}
	if res.HasUpdate {
		metrics.GetOrCreateCounter(`feedsync_checks_total{result="updated"}`).Inc()
	} else {
		metrics.GetOrCreateCounter(`feedsync_checks_total{result="unchanged"}`).Inc()
	}

	if err := s.feeds.MarkChecked(ctx, feed.ID, now, res.HasUpdate); err != nil {
		return nil, err
	}
	return res, nil
}

// headOrGet asks for the validators of url with a HEAD request. Origins that
// refuse HEAD are asked with a conditional GET instead.
func (s *Service) headOrGet(ctx context.Context, url string, stored models.Validators) (*origin.Response, error) {
	resp, err := s.origin.Head(ctx, url, stored)
	var fetchErr *origin.FetchError
	if errors.As(err, &fetchErr) &&
		(fetchErr.StatusCode == http.StatusMethodNotAllowed || fetchErr.StatusCode == http.StatusNotImplemented) {
		log.Debug().
			Str("url", url).
			Int("status", fetchErr.StatusCode).
			Msg("Origin refused HEAD, checking with a conditional GET")
		return s.origin.Get(ctx, url, stored)
	}
	return resp, err
}

// FetchAndCache downloads feed and, when the origin sends new content,
// commits it as the feed's snapshot. Unless forced, the request is
// conditional and a 304 serves the stored snapshot without parsing.
//
// A full response is parsed before anything is written, so a malformed
// document leaves the previous snapshot in place. Dependent derived
// documents are invalidated only after the snapshot and the feed row are
// committed.
func (s *Service) FetchAndCache(ctx context.Context, feed *models.Feed, force bool) (*FetchResult, error) {
	validators := feed.Validators()
	if force {
		validators = models.Validators{}
	}

	resp, err := s.origin.Get(ctx, feed.URL, validators)
	if err != nil {
		metrics.GetOrCreateCounter(`feedsync_fetches_total{result="error"}`).Inc()
		if markErr := s.feeds.MarkChecked(ctx, feed.ID, s.now(), false); markErr != nil {
			log.Error().
				Err(markErr).
				Int64("feed_id", feed.ID).
				Msg("Failed to record check time of failing feed")
		}
		return nil, err
	}

	if resp.NotModified {
		snap, err := s.snapshots.Get(ctx, feed.ID)
		if errors.Is(err, snapshot.ErrNotFound) {
			if force {
				return nil, fmt.Errorf("feed %d: origin answered an unconditional request with 304", feed.ID)
			}
			log.Warn().
				Int64("feed_id", feed.ID).
				Msg("Origin reported not modified but no snapshot is stored, refetching")
			return s.FetchAndCache(ctx, feed, true)
		}
		if err != nil {
			return nil, err
		}
		metrics.GetOrCreateCounter(`feedsync_fetches_total{result="not_modified"}`).Inc()
		// The stored snapshot is current, so a pending update flag is stale.
		if err := s.feeds.MarkCurrent(ctx, feed.ID, s.now()); err != nil {
			return nil, err
		}
		return &FetchResult{Document: snap.Document, PropertyCount: feed.PropertyCount}, nil
	}

	props, err := xmlfeed.Parse(resp.Body)
	if err != nil {
		metrics.GetOrCreateCounter(`feedsync_fetches_total{result="parse_error"}`).Inc()
		return nil, fmt.Errorf("feed %d: %w", feed.ID, err)
	}

	fetchedAt := resp.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = s.now()
	}

	if err := s.snapshots.Put(ctx, feed.ID, resp.Body, snapshot.Metadata{
		SourceURL:  feed.URL,
		FetchedAt:  fetchedAt,
		Validators: resp.Validators,
	}); err != nil {
		return nil, err
	}
	if err := s.feeds.RecordFetch(ctx, feed.ID, storage.FetchResult{
		BlobKey:       snapshot.Key(feed.ID),
		PropertyCount: len(props),
		Validators:    resp.Validators,
		FetchedAt:     fetchedAt,
	}); err != nil {
		return nil, err
	}
	metrics.GetOrCreateCounter(`feedsync_fetches_total{result="updated"}`).Inc()

	if err := s.invalidator.OnFeedRefreshed(ctx, feed.ID); err != nil {
		// Entries left behind expire with the cache TTL.
		log.Error().
			Err(err).
			Int64("feed_id", feed.ID).
			Msg("Failed to invalidate derived documents after refresh")
	}

	log.Info().
		Int64("feed_id", feed.ID).
		Str("url", feed.URL).
		Int("properties", len(props)).
		Int("bytes", len(resp.Body)).
		Msg("Feed snapshot refreshed")

	return &FetchResult{
		Document:      resp.Body,
		WasUpdated:    true,
		PropertyCount: len(props),
	}, nil
}

// Refresh force-fetches the feed with id.
func (s *Service) Refresh(ctx context.Context, feedID int64) (*FetchResult, error) {
	feed, err := s.feeds.Get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	return s.FetchAndCache(ctx, feed, true)
}

// LoadDocument fetches and caches the feed with id and returns its
// document. It is the miss handler of the snapshot read-through.
func (s *Service) LoadDocument(ctx context.Context, feedID int64) ([]byte, error) {
	feed, err := s.feeds.Get(ctx, feedID)
	if err != nil {
		return nil, err
	}
	res, err := s.FetchAndCache(ctx, feed, false)
	if err != nil {
		return nil, err
	}
	return res.Document, nil
}
