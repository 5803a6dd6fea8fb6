// Package handler exposes the transactions JSON API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

type Handler struct {
	service *transactions.Service
}

func New(service *transactions.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the transaction endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/spending", h.CategorySpending)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/category", h.UpdateCategory)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := server.UserID(r.Context())

	q := r.URL.Query()
	filter := transactions.ListFilter{
		Limit:        intParam(q.Get("limit"), 50),
		Offset:       intParam(q.Get("offset"), 0),
		CategorySlug: q.Get("category"),
		Search:       q.Get("q"),
	}
	if from, ok := dateParam(q.Get("from")); ok {
		filter.From = &from
	}
	if to, ok := dateParam(q.Get("to")); ok {
		filter.To = &to
	}

	page, err := h.service.List(r.Context(), userID, filter)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}
	server.RespondJSON(w, http.StatusOK, page)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := server.UserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	tx, err := h.service.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			server.RespondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		server.RespondError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	server.RespondJSON(w, http.StatusOK, tx)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, _ := server.UserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var body struct {
		Category string `json:"category"`
	}
	if err := decodeJSON(r, &body); err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateCategory(r.Context(), userID, id, body.Category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			server.RespondError(w, http.StatusNotFound, "transaction not found")
			return
		}
		server.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	server.RespondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	userID, _ := server.UserID(r.Context())

	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		server.RespondError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	semantic := q.Get("mode") == "semantic"

	txs, err := h.service.Search(r.Context(), userID, query, semantic, intParam(q.Get("limit"), 25))
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (h *Handler) CategorySpending(w http.ResponseWriter, r *http.Request) {
	userID, _ := server.UserID(r.Context())

	q := r.URL.Query()
	now := time.Now()
	from, ok := dateParam(q.Get("from"))
	if !ok {
		from = now.AddDate(0, -1, 0)
	}
	to, ok := dateParam(q.Get("to"))
	if !ok {
		to = now
	}

	spend, err := h.service.CategorySpending(r.Context(), userID, from, to)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "failed to aggregate spending")
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"categories": spend, "from": from, "to": to})
}

func intParam(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

func dateParam(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	return t, err == nil
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
