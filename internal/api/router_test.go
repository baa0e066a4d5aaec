package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/publish"
	"github.com/hoanghai1803/spectrum/internal/storage"
)

func TestNewRouter(t *testing.T) {
	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	dir := t.TempDir()
	day := time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)
	stories := []models.Story{{Title: "Budget", Summary: "s", ClusterSize: 2, Average: 7}}
	publish.AssignIDs(stories, day)
	if _, err := publish.New(publish.Options{Dir: dir}, nil).Publish(context.Background(), stories, day); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	srv := httptest.NewServer(NewRouter(dir, storage.NewStore(db), time.Minute))
	t.Cleanup(srv.Close)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/api/dates", http.StatusOK},
		{"/api/stories", http.StatusOK},
		{"/api/stories/2026-10-17", http.StatusOK},
		{"/api/stories/2026-10-18", http.StatusNotFound},
		{"/api/stories/not-a-date", http.StatusBadRequest},
		{"/api/runs", http.StatusOK},
		{"/api/runs/unknown", http.StatusNotFound},
		{"/feed.xml", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.wantStatus)
			}
		})
	}

	resp, err := http.Post(srv.URL+"/api/stories", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/stories = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
