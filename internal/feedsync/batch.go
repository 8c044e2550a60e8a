package feedsync

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/models"
)

const (
	defaultStaleAfter  = 6 * time.Hour
	defaultFeedTimeout = 2 * time.Minute
)

// Config tunes the batch update check.
type Config struct {
	// StaleAfter is how long a check stays fresh; older feeds are rechecked.
	StaleAfter time.Duration
	// Workers bounds concurrent checks. Zero means one per CPU.
	Workers int
	// AutoRefresh fetches a feed as soon as a check finds an update.
	AutoRefresh bool
	// FeedTimeout bounds the work spent on a single feed.
	FeedTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaultStaleAfter
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = defaultFeedTimeout
	}
	return c
}

// BatchStats counts the outcome of one batch check. Checked includes
// feeds whose check failed. Unchanged counts automatic refreshes the origin
// answered with 304.
type BatchStats struct {
	Checked       int64         `json:"checked"`
	Updated       int64         `json:"updated"`
	Refreshed     int64         `json:"refreshed"`
	Unchanged     int64         `json:"unchanged"`
	Failed        int64         `json:"failed"`
	RefreshFailed int64         `json:"refresh_failed"`
	Duration      time.Duration `json:"duration_ns"`
}

type batchRun struct {
	checked       atomic.Int64
	updated       atomic.Int64
	refreshed     atomic.Int64
	unchanged     atomic.Int64
	failed        atomic.Int64
	refreshFailed atomic.Int64
}

// CheckAllFeedsForUpdates checks every feed whose last check is older than
// the stale window, on a bounded worker pool. A failing feed is counted
// and logged and never stops the others. Only failing to list the feeds
// is returned as an error.
func (s *Service) CheckAllFeedsForUpdates(ctx context.Context) (*BatchStats, error) {
	start := time.Now()
	cutoff := s.now().Add(-s.cfg.StaleAfter)

	due, err := s.feeds.ListDueForCheck(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("due_feeds", len(due)).
		Time("cutoff", cutoff).
		Int("workers", s.cfg.Workers).
		Msg("Loaded feeds due for an update check")

	var run batchRun
	feedQueue := make(chan models.Feed, s.cfg.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.checkWorker(ctx, feedQueue, &run)
		}()
	}

feedLoop:
	for _, feed := range due {
		select {
		case feedQueue <- feed:
		case <-ctx.Done():
			log.Info().
				Err(ctx.Err()).
				Msg("Context cancelled during feed queuing")
			break feedLoop
		}
	}
	close(feedQueue)
	wg.Wait()

	stats := &BatchStats{
		Checked:       run.checked.Load(),
		Updated:       run.updated.Load(),
		Refreshed:     run.refreshed.Load(),
		Unchanged:     run.unchanged.Load(),
		Failed:        run.failed.Load(),
		RefreshFailed: run.refreshFailed.Load(),
		Duration:      time.Since(start),
	}
	metrics.GetOrCreateCounter("feedsync_batches_total").Inc()

	log.Info().
		Int64("checked", stats.Checked).
		Int64("updated", stats.Updated).
		Int64("refreshed", stats.Refreshed).
		Int64("unchanged", stats.Unchanged).
		Int64("failed", stats.Failed).
		Int64("refresh_failed", stats.RefreshFailed).
		Dur("duration", stats.Duration).
		Msg("Update check finished")
	return stats, nil
}

func (s *Service) checkWorker(ctx context.Context, feedQueue <-chan models.Feed, run *batchRun) {
	for feed := range feedQueue {
		if ctx.Err() != nil {
			continue
		}
		s.checkOne(ctx, &feed, run)
	}
}

func (s *Service) checkOne(ctx context.Context, feed *models.Feed, run *batchRun) {
	feedCtx, cancel := context.WithTimeout(ctx, s.cfg.FeedTimeout)
	defer cancel()

	res, err := s.CheckForUpdates(feedCtx, feed)
	run.checked.Add(1)
	if err != nil {
		run.failed.Add(1)
		log.Warn().
			Err(err).
			Int64("feed_id", feed.ID).
			Str("url", feed.URL).
			Msg("Update check failed")
		return
	}
	if !res.HasUpdate {
		return
	}

	run.updated.Add(1)
	log.Info().
		Int64("feed_id", feed.ID).
		Str("url", feed.URL).
		Msg("Update detected")

	if !s.cfg.AutoRefresh {
		return
	}
	res, err := s.FetchAndCache(feedCtx, feed, false)
	if err != nil {
		run.refreshFailed.Add(1)
		log.Warn().
			Err(err).
			Int64("feed_id", feed.ID).
			Msg("Automatic refresh failed")
		return
	}
	if !res.WasUpdated {
		run.unchanged.Add(1)
		return
	}
	run.refreshed.Add(1)
}

// Run calls CheckAllFeedsForUpdates every interval until ctx is done.
// An interval of zero runs a single batch.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if _, err := s.CheckAllFeedsForUpdates(ctx); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := s.CheckAllFeedsForUpdates(ctx); err != nil {
				log.Error().
					Err(err).
					Msg("Update check batch failed")
			}
		case <-ctx.Done():
			return nil
		}
	}
}
