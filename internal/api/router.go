package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hoanghai1803/spectrum/internal/api/handlers"
	"github.com/hoanghai1803/spectrum/internal/storage"
)

// NewRouter creates the read-only HTTP router over the artifacts published
// under dir and the run history in store. Responses may be cached by
// clients for cacheFor.
func NewRouter(dir string, store *storage.Store, cacheFor time.Duration) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS)
	r.Use(CacheControl(cacheFor))

	r.Route("/api", func(api chi.Router) {
		api.Get("/dates", handlers.GetDates(dir))
		api.Get("/stories", handlers.GetLatestStories(dir))
		api.Get("/stories/{date}", handlers.GetStoriesByDate(dir))
		api.Get("/runs", handlers.GetRecentRuns(store))
		api.Get("/runs/{id}", handlers.GetRun(store))
	})

	r.Get("/feed.xml", handlers.GetFeed(dir))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
