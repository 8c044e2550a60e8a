package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"xmlcustomizer/syndicator/internal/database/dbtest"
	"xmlcustomizer/syndicator/internal/models"
)

type StorageTestSuite struct {
	suite.Suite
	ctx context.Context

	feeds      *FeedRepository
	customers  *CustomerRepository
	selections *SelectionRepository
}

func (s *StorageTestSuite) SetupTest() {
	s.ctx = context.Background()
	db := dbtest.Open(s.T())
	s.feeds = NewFeedRepository(db)
	s.customers = NewCustomerRepository(db)
	s.selections = NewSelectionRepository(db)
}

func TestStorageTestSuite(t *testing.T) {
	suite.Run(t, new(StorageTestSuite))
}

func (s *StorageTestSuite) createFeed(name string) *models.Feed {
	feed := models.NewFeed(name, "https://origin.example/"+name+".xml")
	s.Require().NoError(s.feeds.Create(s.ctx, feed))
	return feed
}

func (s *StorageTestSuite) createCustomer(name, token string) *models.Customer {
	c := &models.Customer{Name: name, Token: token}
	s.Require().NoError(s.customers.Create(s.ctx, c))
	return c
}

func (s *StorageTestSuite) TestFeed_CreateGet() {
	feed := s.createFeed("main")
	s.NotZero(feed.ID)

	got, err := s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal("main", got.Name)
	s.Equal(feed.URL, got.URL)
	s.False(got.BlobKey.Valid)
	s.False(got.LastCheckedAt.Valid)
	s.True(got.Validators().IsZero())

	_, err = s.feeds.Get(s.ctx, 999)
	s.ErrorIs(err, ErrNotFound)
}

func (s *StorageTestSuite) TestFeed_RecordFetch() {
	feed := s.createFeed("main")
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, feed.ID, time.Now(), true))

	fetchedAt := time.Now().UTC().Truncate(time.Second)
	err := s.feeds.RecordFetch(s.ctx, feed.ID, FetchResult{
		BlobKey:       models.BlobKeyFor(feed.ID),
		PropertyCount: 3,
		Validators:    models.Validators{ETag: `"abc"`, LastModified: "Wed, 01 May 2024 10:00:00 GMT"},
		FetchedAt:     fetchedAt,
	})
	s.Require().NoError(err)

	got, err := s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal(models.BlobKeyFor(feed.ID), got.BlobKey.String)
	s.Equal(3, got.PropertyCount)
	s.Equal(models.Validators{ETag: `"abc"`, LastModified: "Wed, 01 May 2024 10:00:00 GMT"}, got.Validators())
	s.False(got.UpdateAvailable)
	s.True(got.LastFetchedAt.Time.Equal(fetchedAt))
	s.True(got.LastCheckedAt.Time.Equal(fetchedAt))

	err = s.feeds.RecordFetch(s.ctx, 999, FetchResult{})
	s.ErrorIs(err, ErrNotFound)
}

func (s *StorageTestSuite) TestFeed_MarkCheckedKeepsValidators() {
	feed := s.createFeed("main")
	s.Require().NoError(s.feeds.RecordFetch(s.ctx, feed.ID, FetchResult{
		BlobKey:    models.BlobKeyFor(feed.ID),
		Validators: models.Validators{ETag: `"v1"`},
		FetchedAt:  time.Now(),
	}))

	s.Require().NoError(s.feeds.MarkChecked(s.ctx, feed.ID, time.Now(), true))
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, feed.ID, time.Now(), false))

	got, err := s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.True(got.UpdateAvailable, "a later unchanged check must not clear a pending update")
	s.Equal(`"v1"`, got.ETag.String)
}

func (s *StorageTestSuite) TestFeed_MarkCurrentClearsPendingUpdate() {
	feed := s.createFeed("main")
	fetchedAt := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	s.Require().NoError(s.feeds.RecordFetch(s.ctx, feed.ID, FetchResult{
		BlobKey:       models.BlobKeyFor(feed.ID),
		PropertyCount: 3,
		Validators:    models.Validators{ETag: `"v1"`},
		FetchedAt:     fetchedAt,
	}))
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, feed.ID, time.Now(), true))

	checkedAt := time.Now().UTC().Truncate(time.Second)
	s.Require().NoError(s.feeds.MarkCurrent(s.ctx, feed.ID, checkedAt))

	got, err := s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.False(got.UpdateAvailable)
	s.Equal(`"v1"`, got.ETag.String)
	s.Equal(3, got.PropertyCount)
	s.Equal(models.BlobKeyFor(feed.ID), got.BlobKey.String)
	s.True(got.LastFetchedAt.Time.Equal(fetchedAt))
	s.True(got.LastCheckedAt.Time.Equal(checkedAt))

	s.ErrorIs(s.feeds.MarkCurrent(s.ctx, 999, checkedAt), ErrNotFound)
}

func (s *StorageTestSuite) TestFeed_Update() {
	feed := s.createFeed("main")
	s.Require().NoError(s.feeds.RecordFetch(s.ctx, feed.ID, FetchResult{
		BlobKey:       models.BlobKeyFor(feed.ID),
		PropertyCount: 3,
		Validators:    models.Validators{ETag: `"v1"`, LastModified: "Mon"},
		FetchedAt:     time.Now(),
	}))
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, feed.ID, time.Now(), true))

	changed, err := s.feeds.Update(s.ctx, feed.ID, "renamed", feed.URL)
	s.Require().NoError(err)
	s.False(changed)

	got, err := s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal("renamed", got.Name)
	s.Equal(3, got.PropertyCount, "a rename keeps the snapshot state")
	s.Equal(`"v1"`, got.ETag.String)
	s.True(got.UpdateAvailable)

	changed, err = s.feeds.Update(s.ctx, feed.ID, "moved", "https://other.example/feed.xml")
	s.Require().NoError(err)
	s.True(changed)

	got, err = s.feeds.Get(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Equal("moved", got.Name)
	s.Equal("https://other.example/feed.xml", got.URL)
	s.False(got.BlobKey.Valid)
	s.Zero(got.PropertyCount)
	s.True(got.Validators().IsZero())
	s.False(got.UpdateAvailable)
	s.False(got.LastFetchedAt.Valid)
	s.False(got.LastCheckedAt.Valid)

	_, err = s.feeds.Update(s.ctx, 999, "x", "https://other.example/feed.xml")
	s.ErrorIs(err, ErrNotFound)
}

func (s *StorageTestSuite) TestFeed_ListDueForCheck() {
	never := s.createFeed("never")
	stale := s.createFeed("stale")
	fresh := s.createFeed("fresh")

	now := time.Now().UTC()
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, stale.ID, now.Add(-7*time.Hour), false))
	s.Require().NoError(s.feeds.MarkChecked(s.ctx, fresh.ID, now.Add(-time.Hour), false))

	due, err := s.feeds.ListDueForCheck(s.ctx, now.Add(-6*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(due, 2)
	s.Equal(never.ID, due[0].ID)
	s.Equal(stale.ID, due[1].ID)
}

func (s *StorageTestSuite) TestFeed_ListPaginates() {
	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		ids = append(ids, s.createFeed(name).ID)
	}

	page, err := s.feeds.List(s.ctx, 2, nil)
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[:2], []int64{page[0].ID, page[1].ID})

	last := page[1]
	rest, err := s.feeds.List(s.ctx, 2, &Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	s.Require().NoError(err)
	s.Require().Len(rest, 1)
	s.Equal(ids[2], rest[0].ID)
}

func (s *StorageTestSuite) TestFeed_CreateBatchSkipsKnownURLs() {
	s.createFeed("a")

	n, err := s.feeds.CreateBatch(s.ctx, []*models.Feed{
		models.NewFeed("a again", "https://origin.example/a.xml"),
		models.NewFeed("b", "https://origin.example/b.xml"),
	})
	s.Require().NoError(err)
	s.Equal(1, n)

	all, err := s.feeds.List(s.ctx, 10, nil)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *StorageTestSuite) TestCustomer_CreateGetByToken() {
	c := &models.Customer{
		Name:  "Acme",
		Email: sql.NullString{String: "ops@acme.example", Valid: true},
		Token: "tok-1",
	}
	s.Require().NoError(s.customers.Create(s.ctx, c))

	got, err := s.customers.GetByToken(s.ctx, "tok-1")
	s.Require().NoError(err)
	s.Equal(c.ID, got.ID)
	s.Equal("Acme", got.Name)
	s.Equal("ops@acme.example", got.Email.String)

	_, err = s.customers.GetByToken(s.ctx, "nope")
	s.ErrorIs(err, ErrNotFound)

	err = s.customers.Create(s.ctx, &models.Customer{Name: "Dup", Token: "tok-1"})
	s.Error(err, "tokens are unique")
}

func (s *StorageTestSuite) TestCustomer_UpdateKeepsToken() {
	c := s.createCustomer("Acme", "tok-1")

	s.Require().NoError(s.customers.Update(s.ctx, c.ID, "Acme Ltd", sql.NullString{String: "ops@acme.example", Valid: true}))

	got, err := s.customers.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Acme Ltd", got.Name)
	s.Equal("ops@acme.example", got.Email.String)
	s.Equal("tok-1", got.Token)

	s.Require().NoError(s.customers.Update(s.ctx, c.ID, "Acme Ltd", sql.NullString{}))
	got, err = s.customers.Get(s.ctx, c.ID)
	s.Require().NoError(err)
	s.False(got.Email.Valid)

	s.ErrorIs(s.customers.Update(s.ctx, 999, "x", sql.NullString{}), ErrNotFound)
}

func (s *StorageTestSuite) TestSelections_ReplaceWholesale() {
	feed := s.createFeed("main")
	other := s.createFeed("other")
	c := s.createCustomer("Acme", "tok")

	s.Require().NoError(s.selections.Replace(s.ctx, c.ID, feed.ID, []string{"1", "2", "3"}))
	s.Require().NoError(s.selections.Replace(s.ctx, c.ID, other.ID, []string{"9"}))
	s.Require().NoError(s.selections.Replace(s.ctx, c.ID, feed.ID, []string{"3", "4", "4"}))

	ids, err := s.selections.PropertyIDs(s.ctx, c.ID, feed.ID)
	s.Require().NoError(err)
	s.Equal([]string{"3", "4"}, ids)

	ids, err = s.selections.PropertyIDs(s.ctx, c.ID, other.ID)
	s.Require().NoError(err)
	s.Equal([]string{"9"}, ids, "other feeds are untouched")

	s.Require().NoError(s.selections.Replace(s.ctx, c.ID, feed.ID, nil))
	ids, err = s.selections.PropertyIDs(s.ctx, c.ID, feed.ID)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *StorageTestSuite) TestSelections_ReplaceUnknownFeedFails() {
	c := s.createCustomer("Acme", "tok")

	err := s.selections.Replace(s.ctx, c.ID, 999, []string{"1"})
	s.Error(err)

	ids, err := s.selections.PropertyIDs(s.ctx, c.ID, 999)
	s.Require().NoError(err)
	s.Empty(ids)
}

func (s *StorageTestSuite) TestSelections_Lookups() {
	f1 := s.createFeed("one")
	f2 := s.createFeed("two")
	a := s.createCustomer("A", "tok-a")
	b := s.createCustomer("B", "tok-b")
	lonely := s.createCustomer("C", "tok-c")

	s.Require().NoError(s.selections.Replace(s.ctx, a.ID, f2.ID, []string{"1", "2"}))
	s.Require().NoError(s.selections.Replace(s.ctx, a.ID, f1.ID, []string{"7"}))
	s.Require().NoError(s.selections.Replace(s.ctx, b.ID, f2.ID, []string{"1"}))

	first, err := s.selections.FirstFeedID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(f1.ID, first)

	_, err = s.selections.FirstFeedID(s.ctx, lonely.ID)
	s.ErrorIs(err, ErrNotFound)

	feeds, err := s.selections.FeedIDsForCustomer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]int64{f1.ID, f2.ID}, feeds)

	tokens, err := s.selections.TokensForFeed(s.ctx, f2.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"tok-a", "tok-b"}, tokens)

	counts, err := s.selections.CountsForCustomer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]models.SelectionCount{
		{FeedID: f1.ID, FeedName: "one", PropertyCount: 1},
		{FeedID: f2.ID, FeedName: "two", PropertyCount: 2},
	}, counts)
}

func (s *StorageTestSuite) TestDeletesCascade() {
	feed := s.createFeed("main")
	c := s.createCustomer("Acme", "tok")
	s.Require().NoError(s.selections.Replace(s.ctx, c.ID, feed.ID, []string{"1"}))

	s.Require().NoError(s.customers.Delete(s.ctx, c.ID))
	tokens, err := s.selections.TokensForFeed(s.ctx, feed.ID)
	s.Require().NoError(err)
	s.Empty(tokens)

	s.ErrorIs(s.customers.Delete(s.ctx, c.ID), ErrNotFound)
	s.Require().NoError(s.feeds.Delete(s.ctx, feed.ID))
	s.ErrorIs(s.feeds.Delete(s.ctx, feed.ID), ErrNotFound)
}
