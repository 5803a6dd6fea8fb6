// Package handler exposes the recommendation endpoints.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/recommendations"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

type Handler struct {
	service *recommendations.Service
}

func New(service *recommendations.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/refresh", h.refresh)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	recs, err := h.service.List(r.Context(), userID)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "listing recommendations")
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	recs, err := h.service.Generate(r.Context(), userID)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "generating recommendations")
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}
