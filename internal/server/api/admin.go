package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/hlog"

	"xmlcustomizer/syndicator/internal/admin"
	"xmlcustomizer/syndicator/internal/models"
	"xmlcustomizer/syndicator/internal/server/pagination"
	"xmlcustomizer/syndicator/internal/storage"
)

const defaultLimit = 100
const maxLimit = 1000

// Page is one page of a list endpoint.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// AdminHandler exposes feed and customer management under /v1.
type AdminHandler struct {
	svc *admin.Service
}

// NewAdminHandler creates a new handler instance.
func NewAdminHandler(svc *admin.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Register mounts the admin routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/feeds", h.ListFeeds)
	mux.HandleFunc("POST /v1/feeds", h.CreateFeed)
	mux.HandleFunc("POST /v1/feeds/check", h.CheckFeeds)
	mux.HandleFunc("GET /v1/feeds/{id}", h.GetFeed)
	mux.HandleFunc("PUT /v1/feeds/{id}", h.UpdateFeed)
	mux.HandleFunc("DELETE /v1/feeds/{id}", h.DeleteFeed)
	mux.HandleFunc("POST /v1/feeds/{id}/refresh", h.RefreshFeed)
	mux.HandleFunc("POST /v1/feeds/{id}/purge-cache", h.PurgeFeedCache)
	mux.HandleFunc("GET /v1/feeds/{id}/properties", h.FeedProperties)

	mux.HandleFunc("GET /v1/customers", h.ListCustomers)
	mux.HandleFunc("POST /v1/customers", h.CreateCustomer)
	mux.HandleFunc("GET /v1/customers/{id}", h.GetCustomer)
	mux.HandleFunc("PUT /v1/customers/{id}", h.UpdateCustomer)
	mux.HandleFunc("DELETE /v1/customers/{id}", h.DeleteCustomer)
	mux.HandleFunc("PUT /v1/customers/{id}/selections", h.ReplaceSelections)
	mux.HandleFunc("GET /v1/customers/{id}/selections/{feedId}", h.GetSelections)
}

// listParams reads the limit and cursor query parameters. It writes the
// 400 response itself and reports false when they are invalid.
func listParams(w http.ResponseWriter, r *http.Request) (int, *storage.Cursor, bool) {
	log := hlog.FromRequest(r)
	query := r.URL.Query()

	limit := defaultLimit
	if limitStr := query.Get("limit"); limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			writeErrorMessage(w, r, http.StatusBadRequest,
				fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit))
			return 0, nil, false
		}
		limit = parsedLimit
	}

	var after *storage.Cursor
	if cursorStr := query.Get("cursor"); cursorStr != "" {
		c, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			writeErrorMessage(w, r, http.StatusBadRequest, "Invalid 'cursor' parameter")
			return 0, nil, false
		}
		after = c
	}
	return limit, after, true
}

// paginate trims rows fetched with limit+1 and derives the next cursor.
func paginate[R any, V any](rows []R, limit int, key func(R) storage.Cursor, view func(R) V) Page[V] {
	page := Page[V]{Items: make([]V, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		next := pagination.EncodeCursor(key(rows[len(rows)-1]))
		page.NextCursor = &next
	}
	for _, row := range rows {
		page.Items = append(page.Items, view(row))
	}
	return page
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		hlog.FromRequest(r).Warn().Str(name, raw).Msg("Invalid path id")
		writeErrorMessage(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid '%s' path parameter", name))
		return 0, false
	}
	return id, true
}

func (h *AdminHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	limit, after, ok := listParams(w, r)
	if !ok {
		return
	}
	feeds, err := h.svc.ListFeeds(r.Context(), limit+1, after)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, paginate(feeds, limit,
		func(f models.Feed) storage.Cursor { return storage.Cursor{CreatedAt: f.CreatedAt, ID: f.ID} },
		func(f models.Feed) FeedView { return newFeedView(&f) }))
}

type createFeedRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (h *AdminHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	feed, err := h.svc.CreateFeed(r.Context(), req.Name, req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newFeedView(feed))
}

func (h *AdminHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	feed, err := h.svc.Feed(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newFeedView(feed))
}

type updateFeedRequest struct {
	Name *string `json:"name"`
	URL  *string `json:"url"`
}

func (h *AdminHandler) UpdateFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateFeedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	feed, err := h.svc.UpdateFeed(r.Context(), id, admin.FeedUpdate{Name: req.Name, URL: req.URL})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newFeedView(feed))
}

func (h *AdminHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteFeed(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshResponse struct {
	FeedID        int64 `json:"feed_id"`
	WasUpdated    bool  `json:"was_updated"`
	PropertyCount int   `json:"property_count"`
}

func (h *AdminHandler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.svc.RefreshFeed(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, refreshResponse{
		FeedID:        id,
		WasUpdated:    res.WasUpdated,
		PropertyCount: res.PropertyCount,
	})
}

func (h *AdminHandler) PurgeFeedCache(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.PurgeFeedCache(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) FeedProperties(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	summaries, err := h.svc.FeedProperties(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": summaries})
}

func (h *AdminHandler) CheckFeeds(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.CheckFeeds(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

func (h *AdminHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, after, ok := listParams(w, r)
	if !ok {
		return
	}
	customers, err := h.svc.ListCustomers(r.Context(), limit+1, after)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, paginate(customers, limit,
		func(c models.Customer) storage.Cursor { return storage.Cursor{CreatedAt: c.CreatedAt, ID: c.ID} },
		func(c models.Customer) CustomerView { return newCustomerView(&c) }))
}

type createCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *AdminHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	customer, err := h.svc.CreateCustomer(r.Context(), req.Name, req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newCustomerView(customer))
}

func (h *AdminHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	customer, err := h.svc.Customer(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCustomerView(customer))
}

type updateCustomerRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (h *AdminHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateCustomerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	customer, err := h.svc.UpdateCustomer(r.Context(), id, admin.CustomerUpdate{Name: req.Name, Email: req.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newCustomerView(customer))
}

func (h *AdminHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteCustomer(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectionsBody is both the request and the response of the selection
// endpoints.
type SelectionsBody struct {
	FeedID      int64    `json:"feed_id"`
	PropertyIDs []string `json:"property_ids"`
}

func (h *AdminHandler) ReplaceSelections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SelectionsBody
	if err := decodeJSON(w, r, &req); err != nil {
		writeErrorMessage(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	ids, err := h.svc.ReplaceSelections(r.Context(), id, req.FeedID, req.PropertyIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SelectionsBody{FeedID: req.FeedID, PropertyIDs: ids})
}

func (h *AdminHandler) GetSelections(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	feedID, ok := pathID(w, r, "feedId")
	if !ok {
		return
	}
	ids, err := h.svc.Selections(r.Context(), id, feedID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SelectionsBody{FeedID: feedID, PropertyIDs: ids})
}
