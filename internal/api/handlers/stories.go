package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/spectrum/internal/publish"
)

// GetDates handles GET /api/dates. It returns the manifest of published run
// dates, newest first.
func GetDates(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		manifest, err := publish.ReadManifest(dir)
		if errors.Is(err, publish.ErrNoArtifact) {
			writeJSON(w, http.StatusOK, publish.Manifest{Runs: []publish.ManifestEntry{}})
			return
		}
		if err != nil {
			slog.Error("failed to read manifest", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read manifest")
			return
		}

		writeJSON(w, http.StatusOK, manifest)
	}
}

// GetLatestStories handles GET /api/stories. It returns the stories of the
// most recent run.
func GetLatestStories(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stories, err := publish.ReadLatest(dir)
		if err != nil {
			writeArtifactError(w, err, "stories", "No stories published yet")
			return
		}

		writeJSON(w, http.StatusOK, stories)
	}
}

// GetStoriesByDate handles GET /api/stories/{date}.
func GetStoriesByDate(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := parseDate(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		stories, err := publish.ReadStories(dir, date)
		if err != nil {
			writeArtifactError(w, err, "stories", "No stories published for "+date)
			return
		}

		writeJSON(w, http.StatusOK, stories)
	}
}

// GetFeed handles GET /feed.xml. It serves the RSS document of the latest
// run.
func GetFeed(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := publish.ReadFeed(dir)
		if errors.Is(err, publish.ErrNoArtifact) {
			http.Error(w, "feed not published yet", http.StatusNotFound)
			return
		}
		if err != nil {
			slog.Error("failed to read feed", "error", err)
			http.Error(w, "failed to read feed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
