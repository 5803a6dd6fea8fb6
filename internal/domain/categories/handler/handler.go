// Package handler exposes the category JSON API.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

type Handler struct {
	service *categories.Service
}

func New(service *categories.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the category endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	cats, err := h.service.List(r.Context(), userID)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "listing categories")
		return
	}

	server.RespondJSON(w, http.StatusOK, cats)
}

type createRequest struct {
	Name string `json:"name"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		server.RespondError(w, http.StatusBadRequest, "name is required")
		return
	}

	cat, err := h.service.Create(r.Context(), userID, req.Name)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	server.RespondJSON(w, http.StatusCreated, cat)
}
