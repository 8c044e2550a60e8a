package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog/hlog"

	"xmlcustomizer/syndicator/internal/admin"
	"xmlcustomizer/syndicator/internal/materialize"
	"xmlcustomizer/syndicator/internal/origin"
	"xmlcustomizer/syndicator/internal/storage"
)

// FeedMaterializer builds a customer's filtered document.
type FeedMaterializer interface {
	CustomerFeed(ctx context.Context, token string, feedID *int64) (*materialize.Result, error)
}

// InfoProvider describes what a public token exposes.
type InfoProvider interface {
	PublicInfo(ctx context.Context, token string) (*admin.CustomerInfo, error)
}

// PublicHandler serves the unauthenticated customer endpoints.
type PublicHandler struct {
	feeds  FeedMaterializer
	info   InfoProvider
	maxAge int
}

// NewPublicHandler creates a new handler instance. maxAge is the
// Cache-Control lifetime, in seconds, of served documents.
func NewPublicHandler(feeds FeedMaterializer, info InfoProvider, maxAge int) *PublicHandler {
	return &PublicHandler{
		feeds:  feeds,
		info:   info,
		maxAge: maxAge,
	}
}

// GetFeed handles GET /feed/{token}, with an optional ?feed= id.
func (h *PublicHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	token := r.PathValue("token")

	var feedID *int64
	if raw := r.URL.Query().Get("feed"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			log.Warn().Str("feed", raw).Msg("Invalid 'feed' parameter")
			http.Error(w, "Invalid feed parameter", http.StatusBadRequest)
			return
		}
		feedID = &id
	}

	res, err := h.feeds.CustomerFeed(r.Context(), token, feedID)
	if err != nil {
		var fetchErr *origin.FetchError
		switch {
		case errors.Is(err, materialize.ErrUnknownCustomer):
			http.Error(w, "Feed not found", http.StatusNotFound)
		case errors.Is(err, materialize.ErrNoFeeds):
			http.Error(w, "No properties configured for this feed", http.StatusNotFound)
		case errors.Is(err, materialize.ErrNoSelection):
			http.Error(w, "No properties available", http.StatusNotFound)
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "Feed not found", http.StatusNotFound)
		case errors.As(err, &fetchErr):
			log.Warn().Err(err).Msg("Source feed unavailable")
			http.Error(w, "Source feed unavailable", http.StatusBadGateway)
		default:
			log.Error().Err(err).Msg("Error building customer feed")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	cacheState := "MISS"
	if res.FromCache {
		cacheState = "HIT"
	}
	metrics.GetOrCreateCounter(fmt.Sprintf(`public_feed_requests_total{cache=%q}`, cacheState)).Inc()

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAge))
	w.Header().Set("X-Customer", res.Customer.Name)
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Document); err != nil {
		log.Error().Err(err).Msg("Error writing feed document to client")
		return
	}
	log.Debug().
		Int64("feed_id", res.FeedID).
		Int("bytes_written", len(res.Document)).
		Str("cache", cacheState).
		Msg("Customer feed served")
}

// GetInfo handles GET /feed/{token}/info.
func (h *PublicHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.info.PublicInfo(r.Context(), r.PathValue("token"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, r, http.StatusNotFound, ErrorResponse{Error: "Not found", Message: "Feed not found"})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, info)
}
