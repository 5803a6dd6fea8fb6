// Package handler exposes the categorization rule API.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/categorization"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

type Handler struct {
	service *categorization.Service
}

func New(service *categorization.Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the rule endpoints.
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

	rules, err := h.service.Rules(r.Context(), userID)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "listing rules")
		return
	}
	if rules == nil {
		rules = []categorization.Rule{}
	}

	server.RespondJSON(w, http.StatusOK, rules)
}

type createRequest struct {
	Pattern      string `json:"pattern"`
	CategorySlug string `json:"category"`
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
	if strings.TrimSpace(req.Pattern) == "" || strings.TrimSpace(req.CategorySlug) == "" {
		server.RespondError(w, http.StatusBadRequest, "pattern and category are required")
		return
	}

	rule, err := h.service.CreateRule(r.Context(), userID, req.Pattern, req.CategorySlug)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	server.RespondJSON(w, http.StatusCreated, rule)
}
