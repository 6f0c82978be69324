package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/signbridge/internal/store"
)

// LabelHandler serves the label registry.
type LabelHandler struct {
	store *store.Store
}

// NewLabelHandler creates a LabelHandler backed by s.
func NewLabelHandler(s *store.Store) *LabelHandler {
	return &LabelHandler{store: s}
}

type labelRequest struct {
	Name string `json:"name"`
}

type listLabelsResponse struct {
	Labels []*store.Label `json:"labels"`
}

// Routes mounts the label endpoints on r.
func (h *LabelHandler) Routes(r chi.Router) {
	r.Get("/api/labels", h.list)
	r.Post("/api/labels", h.create)
	r.Put("/api/labels/{name}", h.rename)
	r.Delete("/api/labels/{name}", h.delete)
}

// list handles GET /api/labels.
func (h *LabelHandler) list(w http.ResponseWriter, r *http.Request) {
	labels, err := h.store.Labels().List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list labels")
		return
	}
	if labels == nil {
		labels = []*store.Label{}
	}
	WriteJSON(w, http.StatusOK, listLabelsResponse{Labels: labels})
}

// create handles POST /api/labels.
func (h *LabelHandler) create(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	label, err := h.store.Labels().Create(req.Name)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			WriteError(w, http.StatusConflict, "Label already exists")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to create label")
		return
	}

	WriteJSON(w, http.StatusCreated, label)
}

// rename handles PUT /api/labels/{name}.
func (h *LabelHandler) rename(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var req labelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		WriteError(w, http.StatusBadRequest, "Name is required")
		return
	}

	err := h.store.Labels().Rename(name, req.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Label not found")
	case errors.Is(err, store.ErrDuplicate):
		WriteError(w, http.StatusConflict, "Label already exists")
	case err != nil:
		WriteError(w, http.StatusInternalServerError, "Failed to rename label")
	default:
		WriteJSON(w, http.StatusOK, labelRequest{Name: strings.TrimSpace(req.Name)})
	}
}

// delete handles DELETE /api/labels/{name}.
func (h *LabelHandler) delete(w http.ResponseWriter, r *http.Request) {
	err := h.store.Labels().Delete(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Label not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to delete label")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
