package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/storage"
)

// GetRecentRuns handles GET /api/runs. It returns the run history, newest
// first, limited by ?limit=.
func GetRecentRuns(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := parseLimit(r, defaultRunLimit, maxRunLimit)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		runs, err := store.GetRecentRuns(ctx, limit)
		if err != nil {
			slog.Error("failed to get runs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get runs")
			return
		}
		if runs == nil {
			runs = []models.Run{}
		}

		writeJSON(w, http.StatusOK, runs)
	}
}

// GetRun handles GET /api/runs/{id}.
func GetRun(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		run, err := store.GetRun(r.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		if err != nil {
			slog.Error("failed to get run", "id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to get run")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}
