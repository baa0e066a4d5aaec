package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/spectrum/internal/publish"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

// writeJSON encodes v before touching the response, so an encoding failure
// still produces a clean 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "type", fmt.Sprintf("%T", v), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeArtifactError maps a publish read error to 404 or 500. what names
// the artifact in logs and in the 500 message.
func writeArtifactError(w http.ResponseWriter, err error, what, notFound string) {
	if errors.Is(err, publish.ErrNoArtifact) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	slog.Error("failed to read artifact", "artifact", what, "error", err)
	writeError(w, http.StatusInternalServerError, "Failed to read "+what)
}

// parseDate returns the route parameter if it is a YYYY-MM-DD date. Only
// validated values reach the publish directory.
func parseDate(r *http.Request, param string) (string, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return "", fmt.Errorf("missing URL parameter %q", param)
	}
	if _, err := time.Parse(time.DateOnly, raw); err != nil {
		return "", fmt.Errorf("invalid %s %q: want YYYY-MM-DD", param, raw)
	}
	return raw, nil
}

// parseLimit reads ?limit=, defaulting to def and clamping to upper.
func parseLimit(r *http.Request, def, upper int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid limit %q: must be a positive integer", raw)
	}
	return min(n, upper), nil
}
