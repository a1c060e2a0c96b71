package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardbox/cardbox/internal/storage"
)

// cardsHandler provides REST handlers over a CardStorage.
type cardsHandler struct {
	store storage.CardStorage
}

func registerCardRoutes(r chi.Router, store storage.CardStorage) {
	h := &cardsHandler{store: store}
	r.Get("/cards", h.List)
	r.Post("/cards", h.Create)
	r.Post("/cards/bulk", h.BulkCreate)
	r.Post("/cards/bulk-delete", h.BulkDelete)
	r.Get("/cards/{id}", h.Get)
	r.Put("/cards/{id}", h.Update)
	r.Delete("/cards/{id}", h.Delete)
	r.Get("/search", h.Search)
	r.Get("/tags", h.Tags)
	r.Get("/export", h.Export)
	r.Post("/import", h.Import)
	r.Post("/clear", h.Clear)
}

// queryOptions parses list parameters: limit, offset, sortBy, sortOrder,
// tags (comma-separated), q, from, to (RFC3339).
func queryOptions(r *http.Request) (*storage.QueryOptions, error) {
	q := r.URL.Query()
	opts := &storage.QueryOptions{
		SortBy:    q.Get("sortBy"),
		SortOrder: storage.SortOrder(q.Get("sortOrder")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		opts.Offset = n
	}

	f := &storage.Filters{SearchTerm: q.Get("q")}
	if v := q.Get("tags"); v != "" {
		f.Tags = strings.Split(v, ",")
	}
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		var dr storage.DateRange
		if from != "" {
			t, err := time.Parse(time.RFC3339, from)
			if err != nil {
				return nil, err
			}
			dr.From = t
		}
		if to != "" {
			t, err := time.Parse(time.RFC3339, to)
			if err != nil {
				return nil, err
			}
			dr.To = t
		}
		f.DateRange = &dr
	}
	if f.SearchTerm != "" || len(f.Tags) > 0 || f.DateRange != nil {
		opts.Filters = f
	}
	return opts, nil
}

func cardID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// List returns cards matching the query parameters.
// GET /api/v1/cards
func (h *cardsHandler) List(w http.ResponseWriter, r *http.Request) {
	opts, err := queryOptions(r)
	if err != nil {
		badRequest(w, "invalid query parameters: "+err.Error())
		return
	}
	writeResult(w, http.StatusOK, h.store.GetCards(r.Context(), opts))
}

// Create creates one card.
// POST /api/v1/cards
func (h *cardsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input storage.CardInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	writeResult(w, http.StatusCreated, h.store.CreateCard(r.Context(), input))
}

// Get returns one card; data is null when the id does not exist.
// GET /api/v1/cards/{id}
func (h *cardsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		badRequest(w, "invalid card id")
		return
	}
	writeResult(w, http.StatusOK, h.store.GetCard(r.Context(), id))
}

// Update merges a sparse patch onto the card.
// PUT /api/v1/cards/{id}
func (h *cardsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		badRequest(w, "invalid card id")
		return
	}
	var patch storage.CardPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	writeResult(w, http.StatusOK, h.store.UpdateCard(r.Context(), id, patch))
}

// Delete removes the card.
// DELETE /api/v1/cards/{id}
func (h *cardsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := cardID(r)
	if err != nil {
		badRequest(w, "invalid card id")
		return
	}
	writeStatus(w, h.store.DeleteCard(r.Context(), id))
}

// BulkCreate creates a batch best-effort.
// POST /api/v1/cards/bulk
func (h *cardsHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	var inputs []storage.CardInput
	if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	res := h.store.BulkCreateCards(r.Context(), inputs)
	if !res.Success {
		// Partial failures still committed the rest; the envelope says so.
		writeJSON(w, http.StatusMultiStatus, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// BulkDelete deletes a batch best-effort.
// POST /api/v1/cards/bulk-delete
func (h *cardsHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	writeStatus(w, h.store.BulkDeleteCards(r.Context(), req.IDs))
}

// Search is sugar for a search-term list.
// GET /api/v1/search?q=
func (h *cardsHandler) Search(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.store.SearchCards(r.Context(), r.URL.Query().Get("q")))
}

// Tags returns the distinct sorted tag list.
// GET /api/v1/tags
func (h *cardsHandler) Tags(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.store.GetAllTags(r.Context()))
}

// Export returns the full snapshot.
// GET /api/v1/export
func (h *cardsHandler) Export(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.store.ExportData(r.Context()))
}

// Import replaces the entire data set with the posted cards.
// POST /api/v1/import
func (h *cardsHandler) Import(w http.ResponseWriter, r *http.Request) {
	var cards []storage.Card
	if err := json.NewDecoder(r.Body).Decode(&cards); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	writeStatus(w, h.store.ImportData(r.Context(), cards))
}

// Clear deletes every card.
// POST /api/v1/clear
func (h *cardsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, h.store.ClearAll(r.Context()))
}
