// Package invalidation evicts derived documents that a feed or customer
// mutation made stale.
package invalidation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/storage"
)

// SelectionIndex answers which (customer, feed) pairs have selections.
type SelectionIndex interface {
	TokensForFeed(ctx context.Context, feedID int64) ([]string, error)
	FeedIDsForCustomer(ctx context.Context, customerID int64) ([]int64, error)
}

// CustomerLookup resolves a customer id to its row.
type CustomerLookup interface {
	Get(ctx context.Context, id int64) (*models.Customer, error)
}

// Evictor removes one derived document.
type Evictor interface {
	Delete(ctx context.Context, customerToken string, feedID int64) error
}

// Coordinator maps mutation events to the cache keys they invalidate.
type Coordinator struct {
	selections SelectionIndex
	customers  CustomerLookup
	cache      Evictor
}

// NewCoordinator creates a coordinator.
func NewCoordinator(selections SelectionIndex, customers CustomerLookup, cache Evictor) *Coordinator {
	return &Coordinator{
		selections: selections,
		customers:  customers,
		cache:      cache,
	}
}

// OnFeedRefreshed evicts the entry of every customer selecting from feedID.
// It keeps going past individual eviction failures and reports them joined.
func (c *Coordinator) OnFeedRefreshed(ctx context.Context, feedID int64) error {
	tokens, err := c.selections.TokensForFeed(ctx, feedID)
	if err != nil {
		return fmt.Errorf("listing customers of feed %d: %w", feedID, err)
	}

	var errs []error
	for _, token := range tokens {
		if err := c.cache.Delete(ctx, token, feedID); err != nil {
			errs = append(errs, err)
		}
	}

	log.Debug().
		Int64("feed_id", feedID).
		Int("evicted", len(tokens)-len(errs)).
		Msg("Invalidated derived documents of feed")
	return errors.Join(errs...)
}

// OnFeedDeleted evicts every entry of feedID. It must run while the
// feed's selections still exist.
func (c *Coordinator) OnFeedDeleted(ctx context.Context, feedID int64) error {
	return c.OnFeedRefreshed(ctx, feedID)
}

// OnCustomerSelectionChanged evicts the single (customer, feed) entry whose
// selection was replaced. An unknown customer has nothing to evict.
func (c *Coordinator) OnCustomerSelectionChanged(ctx context.Context, customerID, feedID int64) error {
	customer, err := c.customers.Get(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.cache.Delete(ctx, customer.Token, feedID)
}

// OnCustomerDeleted evicts the entries of every feed the customer selects
// from. It must run before the customer's selections are removed.
func (c *Coordinator) OnCustomerDeleted(ctx context.Context, customerID int64) error {
	customer, err := c.customers.Get(ctx, customerID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	feedIDs, err := c.selections.FeedIDsForCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("listing feeds of customer %d: %w", customerID, err)
	}
	return c.EvictCustomer(ctx, customer.Token, feedIDs)
}

// EvictCustomer evicts the (token, feed) entries for feedIDs. Unlike
// OnCustomerDeleted it needs neither the customer row nor its selections,
// so it can run after both are gone.
func (c *Coordinator) EvictCustomer(ctx context.Context, token string, feedIDs []int64) error {
	var errs []error
	for _, feedID := range feedIDs {
		if err := c.cache.Delete(ctx, token, feedID); err != nil {
			errs = append(errs, err)
		}
	}

	log.Debug().
		Int("feeds", len(feedIDs)).
		Msg("Invalidated derived documents of customer")
	return errors.Join(errs...)
}
