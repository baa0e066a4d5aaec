package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/retry"
)

func rssFeed(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>T</title>`)
	for _, it := range items {
		b.WriteString(it)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func rssItem(title, link, desc string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description></item>`, title, link, desc)
}

func testOptions() Options {
	return Options{
		HTTPTimeout: 5 * time.Second,
		Workers:     4,
		Retry:       retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	}
}

func TestUserAgentTransport(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(rssFeed()))
	}))
	defer srv.Close()

	f := NewFetcher(testOptions())
	if _, err := f.FetchAll(context.Background(), []models.Source{{Name: "S", FeedURL: srv.URL}}); err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
}

func TestFetchAll_FailedSourceIsNonFatal(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed(
			rssItem("One", "https://example.com/1", "first"),
			rssItem("Two", "https://example.com/2", "second"),
		)))
	}))
	defer good.Close()

	var badHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	sources := []models.Source{
		{Name: "Bad", FeedURL: bad.URL, Lean: models.LeanRight},
		{Name: "Good", FeedURL: good.URL, Lean: models.LeanLeft},
	}

	result, err := NewFetcher(testOptions()).FetchAll(context.Background(), sources)
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(result.Items))
	}
	if result.Items[0].SourceIndex != 1 || result.Items[0].Lean != models.LeanLeft {
		t.Errorf("item source = %d/%q", result.Items[0].SourceIndex, result.Items[0].Lean)
	}
	if len(result.Failed) != 1 || result.Failed[0].Source != "Bad" {
		t.Errorf("Failed = %+v, want [Bad]", result.Failed)
	}
	if badHits.Load() != 1 {
		t.Errorf("404 source hit %d times, want 1 (not retried)", badHits.Load())
	}
}

func TestFetchAll_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(rssFeed(rssItem("One", "https://example.com/1", "first"))))
	}))
	defer srv.Close()

	result, err := NewFetcher(testOptions()).FetchAll(context.Background(), []models.Source{{Name: "S", FeedURL: srv.URL}})
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	if len(result.Items) != 1 || len(result.Failed) != 0 {
		t.Errorf("items=%d failed=%v, want 1 item and no failures", len(result.Items), result.Failed)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestFetchAll_SourceCap(t *testing.T) {
	var items []string
	for i := range 10 {
		items = append(items, rssItem(fmt.Sprintf("Item %d", i), fmt.Sprintf("https://example.com/%d", i), "d"))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed(items...)))
	}))
	defer srv.Close()

	opts := testOptions()
	opts.FetchCap = 5
	f := NewFetcher(opts)

	result, err := f.FetchAll(context.Background(), []models.Source{
		{Name: "Capped", FeedURL: srv.URL, FetchCap: 3},
		{Name: "Global", FeedURL: srv.URL},
	})
	if err != nil {
		t.Fatalf("FetchAll() error: %v", err)
	}
	counts := map[string]int{}
	for _, it := range result.Items {
		counts[it.SourceName]++
	}
	if counts["Capped"] != 3 || counts["Global"] != 5 {
		t.Errorf("counts = %v, want Capped=3 Global=5", counts)
	}
}

func TestFetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := NewFetcher(testOptions())
	page, err := f.FetchPage(context.Background(), srv.URL+"/a")
	if err != nil {
		t.Fatalf("FetchPage() error: %v", err)
	}
	if string(page.Body) != "<html>ok</html>" || page.URL.Path != "/a" {
		t.Errorf("page = %q at %v", page.Body, page.URL)
	}

	_, err = f.FetchPage(context.Background(), srv.URL+"/missing")
	if err == nil || retry.IsRetryable(err) {
		t.Errorf("FetchPage(missing) error = %v, want non-retryable", err)
	}
}

func TestWaitForRateLimit(t *testing.T) {
	opts := testOptions()
	opts.RateLimit = 50 * time.Millisecond
	f := NewFetcher(opts)
	ctx := context.Background()

	start := time.Now()
	f.waitForRateLimit(ctx, "example.com")
	f.waitForRateLimit(ctx, "other.com")
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("first requests waited %v", elapsed)
	}
	f.waitForRateLimit(ctx, "example.com")
	if elapsed := time.Since(start); elapsed < 45*time.Millisecond {
		t.Errorf("second request to same domain waited only %v", elapsed)
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://feeds.bbci.co.uk/news/rss.xml", "feeds.bbci.co.uk"},
		{"http://localhost:8080/feed", "localhost"},
	}
	for _, tt := range tests {
		if got := extractDomain(tt.in); got != tt.want {
			t.Errorf("extractDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
