package feedsync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/snapshot"
)

func (s *ServiceTestSuite) TestCheckAll_ContinuesPastFailures() {
	ctx := context.Background()

	var due []models.Feed
	for id := int64(1); id <= 5; id++ {
		due = append(due, *feedWithValidators(id, `"v1"`))
	}

	s.feeds.EXPECT().ListDueForCheck(ctx, s.now.Add(-defaultStaleAfter)).Return(due, nil)

	for _, f := range due {
		switch f.ID {
		case 2:
			s.origin.EXPECT().Head(gomock.Any(), f.URL, gomock.Any()).
				Return(nil, &origin.FetchError{URL: f.URL, StatusCode: 500})
			// Only the check time moves: no update flag, no validators.
			s.feeds.EXPECT().MarkChecked(gomock.Any(), f.ID, s.now, false).Return(nil)
		case 4:
			s.origin.EXPECT().Head(gomock.Any(), f.URL, gomock.Any()).
				Return(&origin.Response{StatusCode: 200, Validators: models.Validators{ETag: `"v2"`}}, nil)
			s.feeds.EXPECT().MarkChecked(gomock.Any(), f.ID, s.now, true).Return(nil)
		default:
			s.origin.EXPECT().Head(gomock.Any(), f.URL, gomock.Any()).
				Return(&origin.Response{StatusCode: 304, NotModified: true}, nil)
			s.feeds.EXPECT().MarkChecked(gomock.Any(), f.ID, s.now, false).Return(nil)
		}
	}

	stats, err := s.service.CheckAllFeedsForUpdates(ctx)
	s.Require().NoError(err)
	s.Equal(int64(5), stats.Checked)
	s.Equal(int64(1), stats.Updated)
	s.Equal(int64(1), stats.Failed)
	s.Zero(stats.Refreshed, "auto refresh is off")
}

func (s *ServiceTestSuite) TestCheckAll_AutoRefresh() {
	ctx := context.Background()
	s.service.cfg.AutoRefresh = true
	s.service.cfg.StaleAfter = time.Hour

	fresh := feedWithValidators(1, "")
	s.feeds.EXPECT().ListDueForCheck(ctx, s.now.Add(-time.Hour)).Return([]models.Feed{*fresh}, nil)
	s.feeds.EXPECT().MarkChecked(gomock.Any(), int64(1), s.now, true).Return(nil)

	body := []byte(threeProperties)
	s.origin.EXPECT().Get(gomock.Any(), fresh.URL, models.Validators{}).
		Return(&origin.Response{StatusCode: 200, Body: body, FetchedAt: s.now}, nil)
	s.snapshots.EXPECT().Put(gomock.Any(), int64(1), body, gomock.Any()).Return(nil)
	s.feeds.EXPECT().RecordFetch(gomock.Any(), int64(1), gomock.Any()).Return(nil)
	s.invalidator.EXPECT().OnFeedRefreshed(gomock.Any(), int64(1)).Return(nil)

	stats, err := s.service.CheckAllFeedsForUpdates(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Checked)
	s.Equal(int64(1), stats.Updated)
	s.Equal(int64(1), stats.Refreshed)
	s.Zero(stats.RefreshFailed)
}

func (s *ServiceTestSuite) TestCheckAll_AutoRefreshNotModifiedClearsFlag() {
	ctx := context.Background()
	s.service.cfg.AutoRefresh = true

	feed := feedWithValidators(1, `"v1"`)
	s.feeds.EXPECT().ListDueForCheck(ctx, gomock.Any()).Return([]models.Feed{*feed}, nil)

	// HEAD claims a new version, the conditional GET says nothing changed.
	s.origin.EXPECT().Head(gomock.Any(), feed.URL, feed.Validators()).
		Return(&origin.Response{StatusCode: 200, Validators: models.Validators{ETag: `"v2"`}}, nil)
	s.feeds.EXPECT().MarkChecked(gomock.Any(), int64(1), s.now, true).Return(nil)
	s.origin.EXPECT().Get(gomock.Any(), feed.URL, feed.Validators()).
		Return(&origin.Response{StatusCode: 304, NotModified: true}, nil)
	s.snapshots.EXPECT().Get(gomock.Any(), int64(1)).
		Return(&snapshot.Snapshot{Document: []byte(threeProperties)}, nil)
	s.feeds.EXPECT().MarkCurrent(gomock.Any(), int64(1), s.now).Return(nil)

	stats, err := s.service.CheckAllFeedsForUpdates(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Checked)
	s.Equal(int64(1), stats.Updated)
	s.Zero(stats.Refreshed, "nothing was downloaded")
	s.Equal(int64(1), stats.Unchanged)
	s.Zero(stats.RefreshFailed)
}

func (s *ServiceTestSuite) TestCheckAll_ListError() {
	ctx := context.Background()
	boom := errors.New("database is locked")
	s.feeds.EXPECT().ListDueForCheck(ctx, gomock.Any()).Return(nil, boom)

	_, err := s.service.CheckAllFeedsForUpdates(ctx)
	s.ErrorIs(err, boom)
}

func (s *ServiceTestSuite) TestCheckAll_NothingDue() {
	ctx := context.Background()
	s.feeds.EXPECT().ListDueForCheck(ctx, gomock.Any()).Return([]models.Feed{}, nil)

	stats, err := s.service.CheckAllFeedsForUpdates(ctx)
	s.Require().NoError(err)
	s.Zero(stats.Checked)
}

func (s *ServiceTestSuite) TestRun_SingleShot() {
	ctx := context.Background()
	s.feeds.EXPECT().ListDueForCheck(ctx, gomock.Any()).Return(nil, nil)

	s.NoError(s.service.Run(ctx, 0))
}
