// Package handler exposes the insights endpoints.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/insights"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

type Handler struct {
	service *insights.Service
}

func New(service *insights.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/pulse", h.pulse)
	r.Get("/summary", h.summary)
}

func (h *Handler) pulse(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	ref, err := refMonth(r)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	pulse, err := h.service.Pulse(r.Context(), userID, ref)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "computing pulse")
		return
	}
	server.RespondJSON(w, http.StatusOK, pulse)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	ref, err := refMonth(r)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	summary, err := h.service.MonthlySummary(r.Context(), userID, ref)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "generating summary")
		return
	}
	server.RespondJSON(w, http.StatusOK, summary)
}

func refMonth(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse("2006-01", raw)
}
