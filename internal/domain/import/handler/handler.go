// Package handler exposes the statement import endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/service"
	"github.com/FACorreiaa/pennypilot/internal/server"
)

const maxUploadBytes = 20 << 20 // 20 MiB

type Handler struct {
	service *service.Service
	images  *service.ImageImporter
}

func New(svc *service.Service, images *service.ImageImporter) *Handler {
	return &Handler{service: svc, images: images}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/analyze", h.analyze)
	r.Post("/", h.importFile)
	r.Post("/image", h.importImage)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{id}", h.getJob)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	filename, data, err := readUpload(r)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.AnalyzeFile(r.Context(), userID, filename, data)
	if err != nil {
		server.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	server.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	filename, data, err := readUpload(r)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := service.ImportOptions{BankName: r.FormValue("bank_name")}
	if raw := r.FormValue("mapping"); raw != "" {
		var m analyzer.Mapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			server.RespondError(w, http.StatusBadRequest, "invalid mapping")
			return
		}
		opts.Mapping = &m
	}

	contentType := r.Header.Get("Content-Type")
	result, err := h.service.ImportFile(r.Context(), userID, filename, contentType, data, opts)
	if err != nil {
		server.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	server.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) importImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "reading upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	switch mimeType {
	case "image/png", "image/jpeg", "image/webp":
	default:
		server.RespondError(w, http.StatusUnsupportedMediaType, "unsupported image type")
		return
	}

	result, err := h.images.Import(r.Context(), userID, header.Filename, mimeType, data)
	if err != nil {
		server.RespondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	server.RespondJSON(w, http.StatusCreated, result)
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	jobs, err := h.service.Jobs(r.Context(), userID, limit)
	if err != nil {
		server.RespondError(w, http.StatusInternalServerError, "listing jobs")
		return
	}
	server.RespondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	userID, ok := server.UserID(r.Context())
	if !ok {
		server.RespondError(w, http.StatusUnauthorized, "missing user")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		server.RespondError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := h.service.Job(r.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			server.RespondError(w, http.StatusNotFound, "job not found")
			return
		}
		server.RespondError(w, http.StatusInternalServerError, "loading job")
		return
	}
	server.RespondJSON(w, http.StatusOK, job)
}

func readUpload(r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New("missing file field")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, errors.New("reading upload")
	}
	return header.Filename, data, nil
}
