package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/signbridge/internal/store"
)

// defaultRunLimit caps GET /api/runs when no limit is given.
const defaultRunLimit = 50

// HistoryHandler serves recorded runs and their transitions.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler backed by s.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

// Routes mounts the history endpoints on r.
func (h *HistoryHandler) Routes(r chi.Router) {
	r.Get("/api/runs", h.listRuns)
	r.Get("/api/runs/{id}/transitions", h.listTransitions)
}

type listRunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

type listTransitionsResponse struct {
	RunID       string              `json:"run_id"`
	Transitions []*store.Transition `json:"transitions"`
}

// listRuns handles GET /api/runs?limit=N.
func (h *HistoryHandler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	WriteJSON(w, http.StatusOK, listRunsResponse{Runs: runs})
}

// listTransitions handles GET /api/runs/{id}/transitions.
func (h *HistoryHandler) listTransitions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.store.Runs().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Run not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get run")
		return
	}

	transitions, err := h.store.Transitions().ListByRun(id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list transitions")
		return
	}
	if transitions == nil {
		transitions = []*store.Transition{}
	}
	WriteJSON(w, http.StatusOK, listTransitionsResponse{RunID: id, Transitions: transitions})
}

// LabelStats returns the per-label transition counts across all runs.
func (h *HistoryHandler) LabelStats() ([]store.LabelStat, error) {
	stats, err := h.store.Transitions().Stats()
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = []store.LabelStat{}
	}
	return stats, nil
}
