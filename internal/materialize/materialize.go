// Package materialize builds the personalized document a customer's public
// URL serves: derived cache first, then selection, snapshot and filter.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/log"

	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/storage"
	"xmlcustomizer/syndicator/internal/xmlfeed"
)

// Lookup failures. All of them wrap storage.ErrNotFound.
var (
	ErrUnknownCustomer = fmt.Errorf("unknown customer token: %w", storage.ErrNotFound)
	ErrNoFeeds         = fmt.Errorf("customer has no selections: %w", storage.ErrNotFound)
	ErrNoSelection     = fmt.Errorf("no properties selected from feed: %w", storage.ErrNotFound)
)

type CustomerLookup interface {
	GetByToken(ctx context.Context, token string) (*models.Customer, error)
}

type SelectionLookup interface {
	FirstFeedID(ctx context.Context, customerID int64) (int64, error)
	PropertyIDs(ctx context.Context, customerID, feedID int64) ([]string, error)
}

type DocumentSource interface {
	Document(ctx context.Context, feedID int64) ([]byte, error)
}

type DerivedCache interface {
	Get(ctx context.Context, customerToken string, feedID int64) ([]byte, bool, error)
	Put(ctx context.Context, customerToken string, feedID int64, doc []byte) error
}

// Result is a materialized customer document.
type Result struct {
	Customer  *models.Customer
	FeedID    int64
	Document  []byte
	FromCache bool
}

// Materializer serves customer documents.
type Materializer struct {
	customers  CustomerLookup
	selections SelectionLookup
	documents  DocumentSource
	cache      DerivedCache
}

// New creates a Materializer.
func New(customers CustomerLookup, selections SelectionLookup, documents DocumentSource, cache DerivedCache) *Materializer {
	return &Materializer{
		customers:  customers,
		selections: selections,
		documents:  documents,
		cache:      cache,
	}
}

// CustomerFeed returns the filtered document of feedID for the customer
// holding token. A nil feedID picks a feed the customer selects from.
// An unknown token, or a customer without selections on the feed, yields
// an error wrapping storage.ErrNotFound and caches nothing.
func (m *Materializer) CustomerFeed(ctx context.Context, token string, feedID *int64) (*Result, error) {
	customer, err := m.customers.GetByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownCustomer
	} else if err != nil {
		return nil, err
	}

	var fid int64
	if feedID != nil {
		fid = *feedID
	} else if fid, err = m.selections.FirstFeedID(ctx, customer.ID); errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoFeeds
	} else if err != nil {
		return nil, err
	}

	res := &Result{Customer: customer, FeedID: fid}

	if doc, ok, err := m.cache.Get(ctx, token, fid); err != nil {
		log.Warn().
			Err(err).
			Int64("feed_id", fid).
			Msg("Derived cache read failed, rebuilding")
	} else if ok {
		res.Document = doc
		res.FromCache = true
		return res, nil
	}

	ids, err := m.selections.PropertyIDs(ctx, customer.ID, fid)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("feed %d: %w", fid, ErrNoSelection)
	}

	start := time.Now()
	src, err := m.documents.Document(ctx, fid)
	if err != nil {
		return nil, err
	}
	doc, err := xmlfeed.Filter(src, xmlfeed.NewIDSet(ids...))
	if err != nil {
		return nil, fmt.Errorf("filtering feed %d: %w", fid, err)
	}
	metrics.GetOrCreateHistogram("materialize_build_duration_seconds").UpdateDuration(start)

	if err := m.cache.Put(ctx, token, fid, doc); err != nil {
		log.Warn().
			Err(err).
			Int64("feed_id", fid).
			Msg("Failed to store derived document")
	}

	log.Debug().
		Int64("customer_id", customer.ID).
		Int64("feed_id", fid).
		Int("selected", len(ids)).
		Int("bytes", len(doc)).
		Msg("Derived document built")

	res.Document = doc
	return res, nil
}
