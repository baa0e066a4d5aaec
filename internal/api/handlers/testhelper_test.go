package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/publish"
	"github.com/hoanghai1803/spectrum/internal/storage"
)

var testRunDate = time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test
// completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// publishFixture publishes one story for testRunDate into a temp directory
// and returns the directory.
func publishFixture(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	stories := []models.Story{{
		Title:       "Senate passes budget",
		Summary:     "Summary.",
		Sources:     []models.SourceRef{{Name: "NPR", Lean: models.LeanCenter, URL: "https://npr.example/a"}},
		Timestamp:   testRunDate,
		ClusterSize: 2,
		Average:     6.5,
	}}
	publish.AssignIDs(stories, testRunDate)
	if _, err := publish.New(publish.Options{Dir: dir}, nil).Publish(context.Background(), stories, testRunDate); err != nil {
		t.Fatalf("publishing fixture: %v", err)
	}
	return dir
}

// withURLParam sets a chi URL parameter on r.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
