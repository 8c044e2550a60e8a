// Package admin is the CRUD boundary for feeds, customers and selections.
// Every mutation that can make a derived document stale goes through the
// invalidation coordinator here.
package admin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/feedsync"
	"xmlcustomizer/syndicator/internal/invalidation"
	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/snapshot"
	"xmlcustomizer/syndicator/internal/storage"
	"xmlcustomizer/syndicator/internal/xmlfeed"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Feeds       *storage.FeedRepository
	Customers   *storage.CustomerRepository
	Selections  *storage.SelectionRepository
	Snapshots   *snapshot.Store
	Documents   *snapshot.ReadThrough
	Sync        *feedsync.Service
	Invalidator *invalidation.Coordinator
}

// Service implements the admin operations.
type Service struct {
	deps Deps
}

// NewService creates a Service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// CreateFeed registers a feed. Its snapshot is fetched lazily on first use
// or by the next update check.
func (s *Service) CreateFeed(ctx context.Context, name, rawURL string) (*models.Feed, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	if err := validateFeedURL(rawURL); err != nil {
		return nil, err
	}

	feed := models.NewFeed(name, strings.TrimSpace(rawURL))
	if err := s.deps.Feeds.Create(ctx, feed); err != nil {
		return nil, err
	}
	log.Info().
		Int64("feed_id", feed.ID).
		Str("url", feed.URL).
		Msg("Feed registered")
	return feed, nil
}

func validateFeedURL(raw string) error {
	if !models.ValidFeedURL(raw) {
		return invalid("url", "must be an absolute http or https URL")
	}
	return nil
}

// FeedUpdate lists the feed fields to change. Nil fields keep their value.
type FeedUpdate struct {
	Name *string
	URL  *string
}

// UpdateFeed renames a feed or points it at a new origin URL. A new URL
// drops the stored snapshot and evicts every derived document of the feed.
func (s *Service) UpdateFeed(ctx context.Context, id int64, upd FeedUpdate) (*models.Feed, error) {
	feed, err := s.deps.Feeds.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name, rawURL := feed.Name, feed.URL
	if upd.Name != nil {
		if name = strings.TrimSpace(*upd.Name); name == "" {
			return nil, invalid("name", "is required")
		}
	}
	if upd.URL != nil {
		if err := validateFeedURL(*upd.URL); err != nil {
			return nil, err
		}
		rawURL = strings.TrimSpace(*upd.URL)
	}

	urlChanged, err := s.deps.Feeds.Update(ctx, id, name, rawURL)
	if err != nil {
		return nil, err
	}
	if urlChanged {
		if err := s.deps.Snapshots.Delete(ctx, id); err != nil {
			return nil, err
		}
		if err := s.deps.Invalidator.OnFeedRefreshed(ctx, id); err != nil {
			log.Error().
				Err(err).
				Int64("feed_id", id).
				Msg("Failed to invalidate derived documents after URL change")
		}
		log.Info().
			Int64("feed_id", id).
			Str("url", rawURL).
			Msg("Feed moved to new URL")
	}
	return s.deps.Feeds.Get(ctx, id)
}

// Feed returns one feed.
func (s *Service) Feed(ctx context.Context, id int64) (*models.Feed, error) {
	return s.deps.Feeds.Get(ctx, id)
}

// ListFeeds pages through feeds in creation order.
func (s *Service) ListFeeds(ctx context.Context, limit int, after *storage.Cursor) ([]models.Feed, error) {
	return s.deps.Feeds.List(ctx, limit, after)
}

// DeleteFeed evicts every derived document of the feed and drops its
// snapshot before removing the row.
func (s *Service) DeleteFeed(ctx context.Context, id int64) error {
	if _, err := s.deps.Feeds.Get(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Invalidator.OnFeedDeleted(ctx, id); err != nil {
		return fmt.Errorf("invalidating feed %d: %w", id, err)
	}
	if err := s.deps.Snapshots.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Feeds.Delete(ctx, id); err != nil {
		return err
	}
	log.Info().Int64("feed_id", id).Msg("Feed deleted")
	return nil
}

// RefreshFeed force-fetches the feed from its origin.
func (s *Service) RefreshFeed(ctx context.Context, id int64) (*feedsync.FetchResult, error) {
	return s.deps.Sync.Refresh(ctx, id)
}

// PurgeFeedCache evicts every derived document of the feed.
func (s *Service) PurgeFeedCache(ctx context.Context, id int64) error {
	if _, err := s.deps.Feeds.Get(ctx, id); err != nil {
		return err
	}
	return s.deps.Invalidator.OnFeedRefreshed(ctx, id)
}

// CheckFeeds runs one batch update check.
func (s *Service) CheckFeeds(ctx context.Context) (*feedsync.BatchStats, error) {
	return s.deps.Sync.CheckAllFeedsForUpdates(ctx)
}

// FeedProperties lists the property summaries of a feed's snapshot,
// fetching it first if none is stored yet.
func (s *Service) FeedProperties(ctx context.Context, id int64) ([]xmlfeed.Summary, error) {
	if _, err := s.deps.Feeds.Get(ctx, id); err != nil {
		return nil, err
	}
	doc, err := s.deps.Documents.Document(ctx, id)
	if err != nil {
		return nil, err
	}
	props, err := xmlfeed.Parse(doc)
	if err != nil {
		return nil, err
	}
	return xmlfeed.Summaries(props), nil
}

// CreateCustomer registers a customer and issues its public token.
func (s *Service) CreateCustomer(ctx context.Context, name, email string) (*models.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "is required")
	}
	email = strings.TrimSpace(email)

	customer := &models.Customer{
		Name:  name,
		Email: sql.NullString{String: email, Valid: email != ""},
		Token: uuid.NewString(),
	}
	if err := s.deps.Customers.Create(ctx, customer); err != nil {
		return nil, err
	}
	log.Info().
		Int64("customer_id", customer.ID).
		Msg("Customer created")
	return customer, nil
}

// Customer returns one customer.
func (s *Service) Customer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.deps.Customers.Get(ctx, id)
}

// ListCustomers pages through customers in creation order.
func (s *Service) ListCustomers(ctx context.Context, limit int, after *storage.Cursor) ([]models.Customer, error) {
	return s.deps.Customers.List(ctx, limit, after)
}

// CustomerUpdate lists the customer fields to change. Nil fields keep their
// value; an empty email clears it.
type CustomerUpdate struct {
	Name  *string
	Email *string
}

// UpdateCustomer changes a customer's name or email. The public token is
// immutable, so no derived document goes stale.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, upd CustomerUpdate) (*models.Customer, error) {
	customer, err := s.deps.Customers.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	name, email := customer.Name, customer.Email
	if upd.Name != nil {
		if name = strings.TrimSpace(*upd.Name); name == "" {
			return nil, invalid("name", "is required")
		}
	}
	if upd.Email != nil {
		e := strings.TrimSpace(*upd.Email)
		email = sql.NullString{String: e, Valid: e != ""}
	}

	if err := s.deps.Customers.Update(ctx, id, name, email); err != nil {
		return nil, err
	}
	return s.deps.Customers.Get(ctx, id)
}

// DeleteCustomer purges the customer's derived documents, then deletes the
// row and with it the selections. The entries are evicted again once the
// row is gone, so a document built from the old selections in between does
// not outlive the customer.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) error {
	customer, err := s.deps.Customers.Get(ctx, id)
	if err != nil {
		return err
	}
	feedIDs, err := s.deps.Selections.FeedIDsForCustomer(ctx, id)
	if err != nil {
		return err
	}
	if err := s.deps.Invalidator.OnCustomerDeleted(ctx, id); err != nil {
		return fmt.Errorf("invalidating customer %d: %w", id, err)
	}
	if err := s.deps.Customers.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Invalidator.EvictCustomer(ctx, customer.Token, feedIDs); err != nil {
		// The token no longer resolves; a leftover entry expires with the cache TTL.
		log.Error().
			Err(err).
			Int64("customer_id", id).
			Msg("Failed to evict derived documents of deleted customer")
	}
	log.Info().Int64("customer_id", id).Msg("Customer deleted")
	return nil
}

// ReplaceSelections swaps the customer's selection on one feed for
// propertyIDs and evicts that one derived document. Ids that the feed
// does not contain are kept; they are dropped when the document is built.
func (s *Service) ReplaceSelections(ctx context.Context, customerID, feedID int64, propertyIDs []string) ([]string, error) {
	if feedID <= 0 {
		return nil, invalid("feed_id", "is required")
	}
	if _, err := s.deps.Customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	if _, err := s.deps.Feeds.Get(ctx, feedID); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(propertyIDs))
	seen := make(map[string]struct{}, len(propertyIDs))
	for _, raw := range propertyIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, invalid("property_ids", "must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if err := s.deps.Selections.Replace(ctx, customerID, feedID, ids); err != nil {
		return nil, err
	}
	if err := s.deps.Invalidator.OnCustomerSelectionChanged(ctx, customerID, feedID); err != nil {
		// The replaced entry still expires with the cache TTL.
		log.Error().
			Err(err).
			Int64("customer_id", customerID).
			Int64("feed_id", feedID).
			Msg("Failed to invalidate derived document after selection change")
	}
	return ids, nil
}

// Selections returns the property ids the customer selected from a feed.
func (s *Service) Selections(ctx context.Context, customerID, feedID int64) ([]string, error) {
	if _, err := s.deps.Customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.deps.Selections.PropertyIDs(ctx, customerID, feedID)
}

// CustomerInfo describes the feeds behind a public token.
type CustomerInfo struct {
	Customer string                  `json:"customer"`
	Feeds    []models.SelectionCount `json:"feeds"`
}

// PublicInfo resolves a public token to its customer name and selected
// feeds.
func (s *Service) PublicInfo(ctx context.Context, token string) (*CustomerInfo, error) {
	customer, err := s.deps.Customers.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	counts, err := s.deps.Selections.CountsForCustomer(ctx, customer.ID)
	if err != nil {
		return nil, err
	}
	return &CustomerInfo{Customer: customer.Name, Feeds: counts}, nil
}
