package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"

	"xmlcustomizer/syndicator/internal/database/dbtest"
	"xmlcustomizer/syndicator/internal/derived"
	"xmlcustomizer/syndicator/internal/feedsync"
	"xmlcustomizer/syndicator/internal/invalidation"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/snapshot"
	"xmlcustomizer/syndicator/internal/storage"
)

const source = `<?xml version="1.0" encoding="UTF-8"?>
<root>
  <property><id>1</id><ref>A</ref><type>villa</type><town>Javea</town><price>100</price>
    <images><image id="1"><url>https://img.example/a.jpg</url></image></images></property>
  <property><id>2</id><ref>B</ref><type>flat</type><town>Denia</town><price>200</price></property>
</root>`

type AdminTestSuite struct {
	suite.Suite
	ctx context.Context

	srv       *httptest.Server
	cache     *derived.Cache
	snapshots *snapshot.Store
	service   *Service
}

func (s *AdminTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(source))
	}))
	s.T().Cleanup(s.srv.Close)

	db := dbtest.Open(s.T())
	feeds := storage.NewFeedRepository(db)
	customers := storage.NewCustomerRepository(db)
	selections := storage.NewSelectionRepository(db)

	s.cache = derived.NewCache(derived.NewMemoryKV(), time.Hour)
	s.snapshots = snapshot.NewStore(afero.NewMemMapFs())
	coord := invalidation.NewCoordinator(selections, customers, s.cache)
	sync := feedsync.NewService(origin.NewClient(origin.Config{Timeout: time.Second}), feeds, s.snapshots, coord, feedsync.Config{})

	s.service = NewService(Deps{
		Feeds:       feeds,
		Customers:   customers,
		Selections:  selections,
		Snapshots:   s.snapshots,
		Documents:   snapshot.NewReadThrough(s.snapshots, sync.LoadDocument),
		Sync:        sync,
		Invalidator: coord,
	})
}

func TestAdminTestSuite(t *testing.T) {
	suite.Run(t, new(AdminTestSuite))
}

func (s *AdminTestSuite) isValidation(err error, field string) {
	var verr *ValidationError
	s.Require().True(errors.As(err, &verr), "want ValidationError, got %v", err)
	s.Equal(field, verr.Field)
}

func (s *AdminTestSuite) TestCreateFeed_Validation() {
	_, err := s.service.CreateFeed(s.ctx, " ", s.srv.URL)
	s.isValidation(err, "name")

	for _, bad := range []string{"", "not a url", "/relative/feed.xml", "ftp://host/feed.xml"} {
		_, err := s.service.CreateFeed(s.ctx, "main", bad)
		s.isValidation(err, "url")
	}

	feed, err := s.service.CreateFeed(s.ctx, " main ", s.srv.URL)
	s.Require().NoError(err)
	s.Equal("main", feed.Name)
	s.NotZero(feed.ID)
}

func (s *AdminTestSuite) TestUpdateFeed_Rename() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	_, err = s.service.RefreshFeed(s.ctx, feed.ID)
	s.Require().NoError(err)

	blank, bad := " ", "ftp://host/feed.xml"
	_, err = s.service.UpdateFeed(s.ctx, feed.ID, FeedUpdate{Name: &blank})
	s.isValidation(err, "name")
	_, err = s.service.UpdateFeed(s.ctx, feed.ID, FeedUpdate{URL: &bad})
	s.isValidation(err, "url")

	name := " renamed "
	got, err := s.service.UpdateFeed(s.ctx, feed.ID, FeedUpdate{Name: &name})
	s.Require().NoError(err)
	s.Equal("renamed", got.Name)
	s.Equal(s.srv.URL, got.URL)
	s.Equal(2, got.PropertyCount)

	_, err = s.snapshots.Get(s.ctx, feed.ID)
	s.NoError(err, "a rename keeps the snapshot")

	_, err = s.service.UpdateFeed(s.ctx, 999, FeedUpdate{Name: &name})
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *AdminTestSuite) TestUpdateFeed_NewURLDropsSnapshot() {
	moved := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<root><property><id>9</id><ref>Z</ref></property></root>`))
	}))
	s.T().Cleanup(moved.Close)

	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "A", "")
	s.Require().NoError(err)
	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1"})
	s.Require().NoError(err)
	_, err = s.service.RefreshFeed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.cache.Put(s.ctx, c.Token, feed.ID, []byte("<cached/>")))

	got, err := s.service.UpdateFeed(s.ctx, feed.ID, FeedUpdate{URL: &moved.URL})
	s.Require().NoError(err)
	s.Equal(moved.URL, got.URL)
	s.Equal("main", got.Name)
	s.Zero(got.PropertyCount)
	s.True(got.Validators().IsZero())
	s.False(got.UpdateAvailable)

	_, err = s.snapshots.Get(s.ctx, feed.ID)
	s.ErrorIs(err, snapshot.ErrNotFound)
	_, ok, err := s.cache.Get(s.ctx, c.Token, feed.ID)
	s.Require().NoError(err)
	s.False(ok, "documents built from the old origin are evicted")

	sums, err := s.service.FeedProperties(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Require().Len(sums, 1)
	s.Equal("Z", sums[0].Ref)
}

func (s *AdminTestSuite) TestUpdateCustomer() {
	c, err := s.service.CreateCustomer(s.ctx, "A", "a@example.com")
	s.Require().NoError(err)

	blank := ""
	_, err = s.service.UpdateCustomer(s.ctx, c.ID, CustomerUpdate{Name: &blank})
	s.isValidation(err, "name")

	name := "Acme"
	got, err := s.service.UpdateCustomer(s.ctx, c.ID, CustomerUpdate{Name: &name})
	s.Require().NoError(err)
	s.Equal("Acme", got.Name)
	s.Equal("a@example.com", got.Email.String, "nil fields are kept")
	s.Equal(c.Token, got.Token)

	got, err = s.service.UpdateCustomer(s.ctx, c.ID, CustomerUpdate{Email: &blank})
	s.Require().NoError(err)
	s.False(got.Email.Valid)
	s.Equal(c.Token, got.Token)

	_, err = s.service.UpdateCustomer(s.ctx, 999, CustomerUpdate{Name: &name})
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *AdminTestSuite) TestCreateCustomer_IssuesUniqueTokens() {
	_, err := s.service.CreateCustomer(s.ctx, "", "")
	s.isValidation(err, "name")

	a, err := s.service.CreateCustomer(s.ctx, "A", "a@example.com")
	s.Require().NoError(err)
	b, err := s.service.CreateCustomer(s.ctx, "B", "")
	s.Require().NoError(err)

	s.Len(a.Token, 36)
	s.NotEqual(a.Token, b.Token)
	s.Equal("a@example.com", a.Email.String)
	s.False(b.Email.Valid)
}

func (s *AdminTestSuite) TestReplaceSelections() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "A", "")
	s.Require().NoError(err)

	_, err = s.service.ReplaceSelections(s.ctx, c.ID, 0, []string{"1"})
	s.isValidation(err, "feed_id")

	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1", " "})
	s.isValidation(err, "property_ids")

	_, err = s.service.ReplaceSelections(s.ctx, c.ID, 999, []string{"1"})
	s.ErrorIs(err, storage.ErrNotFound)

	_, err = s.service.ReplaceSelections(s.ctx, 999, feed.ID, []string{"1"})
	s.ErrorIs(err, storage.ErrNotFound)

	s.Require().NoError(s.cache.Put(s.ctx, c.Token, feed.ID, []byte("<old/>")))

	ids, err := s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{" 2", "1", "2"})
	s.Require().NoError(err)
	s.Equal([]string{"2", "1"}, ids)

	got, err := s.service.Selections(s.ctx, c.ID, feed.ID)
	s.Require().NoError(err)
	s.Equal([]string{"2", "1"}, got)

	_, ok, err := s.cache.Get(s.ctx, c.Token, feed.ID)
	s.Require().NoError(err)
	s.False(ok, "selection change evicts the derived document")
}

func (s *AdminTestSuite) TestDeleteCustomer_PurgesDerivedDocuments() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "A", "")
	s.Require().NoError(err)
	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1"})
	s.Require().NoError(err)

	s.Require().NoError(s.cache.Put(s.ctx, c.Token, feed.ID, []byte("<cached/>")))

	s.Require().NoError(s.service.DeleteCustomer(s.ctx, c.ID))

	_, ok, err := s.cache.Get(s.ctx, c.Token, feed.ID)
	s.Require().NoError(err)
	s.False(ok)

	s.ErrorIs(s.service.DeleteCustomer(s.ctx, c.ID), storage.ErrNotFound)
}

// refillingEvictor puts an entry back right after its first eviction, the
// way a concurrent read that loaded the selections just before the delete
// would.
type refillingEvictor struct {
	*derived.Cache
	refilled bool
}

func (e *refillingEvictor) Delete(ctx context.Context, token string, feedID int64) error {
	if err := e.Cache.Delete(ctx, token, feedID); err != nil {
		return err
	}
	if !e.refilled {
		e.refilled = true
		return e.Cache.Put(ctx, token, feedID, []byte("<rebuilt/>"))
	}
	return nil
}

func (s *AdminTestSuite) TestDeleteCustomer_EvictsEntryRebuiltDuringDelete() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "A", "")
	s.Require().NoError(err)
	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1"})
	s.Require().NoError(err)
	s.Require().NoError(s.cache.Put(s.ctx, c.Token, feed.ID, []byte("<cached/>")))

	evictor := &refillingEvictor{Cache: s.cache}
	deps := s.service.deps
	deps.Invalidator = invalidation.NewCoordinator(deps.Selections, deps.Customers, evictor)
	svc := NewService(deps)

	s.Require().NoError(svc.DeleteCustomer(s.ctx, c.ID))

	s.True(evictor.refilled)
	_, ok, err := s.cache.Get(s.ctx, c.Token, feed.ID)
	s.Require().NoError(err)
	s.False(ok, "the entry rebuilt before the row was deleted is evicted too")
}

func (s *AdminTestSuite) TestDeleteFeed_PurgesSnapshotAndDerived() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "A", "")
	s.Require().NoError(err)
	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1"})
	s.Require().NoError(err)

	res, err := s.service.RefreshFeed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal(2, res.PropertyCount)
	s.Require().NoError(s.cache.Put(s.ctx, c.Token, feed.ID, []byte("<cached/>")))

	s.Require().NoError(s.service.DeleteFeed(s.ctx, feed.ID))

	_, ok, err := s.cache.Get(s.ctx, c.Token, feed.ID)
	s.Require().NoError(err)
	s.False(ok)
	_, err = s.snapshots.Get(s.ctx, feed.ID)
	s.ErrorIs(err, snapshot.ErrNotFound)
	_, err = s.service.Feed(s.ctx, feed.ID)
	s.ErrorIs(err, storage.ErrNotFound)

	s.ErrorIs(s.service.DeleteFeed(s.ctx, feed.ID), storage.ErrNotFound)
}

func (s *AdminTestSuite) TestFeedProperties() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)

	sums, err := s.service.FeedProperties(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Require().Len(sums, 2)
	s.Equal("A", sums[0].Ref)
	s.Equal("https://img.example/a.jpg", sums[0].ImageURL)
	s.Equal(200.0, sums[1].Price)

	got, err := s.service.Feed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal(2, got.PropertyCount)
}

func (s *AdminTestSuite) TestPublicInfo() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)
	c, err := s.service.CreateCustomer(s.ctx, "Acme", "")
	s.Require().NoError(err)
	_, err = s.service.ReplaceSelections(s.ctx, c.ID, feed.ID, []string{"1", "2"})
	s.Require().NoError(err)

	info, err := s.service.PublicInfo(s.ctx, c.Token)
	s.Require().NoError(err)
	s.Equal("Acme", info.Customer)
	s.Require().Len(info.Feeds, 1)
	s.Equal(2, info.Feeds[0].PropertyCount)

	_, err = s.service.PublicInfo(s.ctx, "nope")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *AdminTestSuite) TestPurgeAndCheck() {
	feed, err := s.service.CreateFeed(s.ctx, "main", s.srv.URL)
	s.Require().NoError(err)

	s.ErrorIs(s.service.PurgeFeedCache(s.ctx, 999), storage.ErrNotFound)
	s.NoError(s.service.PurgeFeedCache(s.ctx, feed.ID))

	stats, err := s.service.CheckFeeds(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.Checked)
	s.Equal(int64(1), stats.Updated, "a feed without validators always has an update")
}
