// Package publish writes the run artifacts: the per-date stories JSON, the
// latest-stories copy, the RSS feed, and the manifest of published dates.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"

	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
)

// ErrNoArtifact is returned by the readers when the requested artifact has
// not been published.
var ErrNoArtifact = errors.New("artifact not found")

// Artifact file names under the publish directory.
const (
	StoriesDir   = "stories"
	LatestFile   = "stories.json"
	FeedFile     = "feed.xml"
	ManifestFile = "index.json"
)

// Feed channel metadata.
const (
	FeedTitle       = "Cross-Spectrum News Brief"
	FeedDescription = "Balanced news coverage from across the political spectrum"
	FeedID          = "urn:cross-spectrum-news"
)

// Mirror receives a copy of every written artifact.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Options configures the publisher.
type Options struct {
	Dir          string
	MaxFeedItems int
	// FeedLink is the self link of the RSS channel.
	FeedLink string
}

// Result lists the files written by a publish.
type Result struct {
	Date         string
	Stories      int
	StoriesPath  string
	LatestPath   string
	FeedPath     string
	ManifestPath string
}

// Publisher writes artifacts atomically under Options.Dir.
type Publisher struct {
	opts   Options
	mirror Mirror
}

// New creates a Publisher. A nil mirror keeps artifacts local only.
func New(opts Options, mirror Mirror) *Publisher {
	if opts.MaxFeedItems <= 0 {
		opts.MaxFeedItems = 20
	}
	if opts.FeedLink == "" {
		opts.FeedLink = "http://localhost:8080/feed.xml"
	}
	return &Publisher{opts: opts, mirror: mirror}
}

// AssignIDs numbers stories in their final order as story_<n>_<YYYYMMDD>,
// starting at 1.
func AssignIDs(stories []models.Story, runDate time.Time) {
	day := runDate.Format("20060102")
	for i := range stories {
		stories[i].ID = fmt.Sprintf("story_%d_%s", i+1, day)
	}
}

// Publish writes every artifact for the run. stories must already be in
// their final order. An empty slice still produces valid artifacts.
func (p *Publisher) Publish(ctx context.Context, stories []models.Story, runDate time.Time) (*Result, error) {
	if stories == nil {
		stories = []models.Story{}
	}
	date := runDate.Format(time.DateOnly)

	storiesJSON, err := json.MarshalIndent(stories, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding stories: %w", err)
	}
	feedXML, err := BuildFeed(stories, p.opts.FeedLink, p.opts.MaxFeedItems, runDate)
	if err != nil {
		return nil, fmt.Errorf("building feed: %w", err)
	}

	res := &Result{
		Date:         date,
		Stories:      len(stories),
		StoriesPath:  filepath.Join(p.opts.Dir, StoriesDir, date+".json"),
		LatestPath:   filepath.Join(p.opts.Dir, LatestFile),
		FeedPath:     filepath.Join(p.opts.Dir, FeedFile),
		ManifestPath: filepath.Join(p.opts.Dir, ManifestFile),
	}

	writes := []struct {
		path        string
		data        []byte
		contentType string
	}{
		{res.StoriesPath, storiesJSON, "application/json"},
		{res.LatestPath, storiesJSON, "application/json"},
		{res.FeedPath, []byte(feedXML), "application/rss+xml"},
	}
	for _, w := range writes {
		if err := writeAtomic(w.path, w.data); err != nil {
			return nil, err
		}
		p.upload(ctx, w.path, w.data, w.contentType)
	}

	manifest, err := ReadManifest(p.opts.Dir)
	if err != nil && !errors.Is(err, ErrNoArtifact) {
		slog.Warn("unreadable manifest, rebuilding", "path", res.ManifestPath, "error", err)
		manifest = Manifest{}
	}
	manifest.Add(ManifestEntry{Date: date, Stories: len(stories), GeneratedAt: runDate.UTC()})
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	if err := writeAtomic(res.ManifestPath, manifestJSON); err != nil {
		return nil, err
	}
	p.upload(ctx, res.ManifestPath, manifestJSON, "application/json")

	slog.Info("published artifacts",
		"date", date,
		"stories", len(stories),
		"dir", p.opts.Dir,
	)
	return res, nil
}

func (p *Publisher) upload(ctx context.Context, path string, data []byte, contentType string) {
	if p.mirror == nil {
		return
	}
	key, err := filepath.Rel(p.opts.Dir, path)
	if err != nil {
		key = filepath.Base(path)
	}
	key = filepath.ToSlash(key)
	if err := p.mirror.Upload(ctx, key, data, contentType); err != nil {
		slog.Warn("artifact mirror upload failed", "key", key, "error", err)
	}
}

// BuildFeed renders stories as an RSS 2.0 channel. Only the first maxItems
// stories become entries.
func BuildFeed(stories []models.Story, link string, maxItems int, now time.Time) (string, error) {
	feed := &feeds.Feed{
		Id:          FeedID,
		Title:       FeedTitle,
		Link:        &feeds.Link{Href: link, Rel: "self"},
		Description: FeedDescription,
		Created:     now.UTC(),
	}
	for i, s := range stories {
		if i == maxItems {
			break
		}
		item := &feeds.Item{
			Id:          cache.Hash(s.Title),
			Title:       s.Title,
			Description: s.Summary + sourcesText(s.Sources),
			Created:     now.UTC(),
		}
		if len(s.Sources) > 0 {
			item.Link = &feeds.Link{Href: s.Sources[0].URL}
		}
		feed.Items = append(feed.Items, item)
	}

	rss := (&feeds.Rss{Feed: feed}).RssFeed()
	rss.Language = "en"
	return feeds.ToXML(rss)
}

func sourcesText(sources []models.SourceRef) string {
	if len(sources) == 0 {
		return ""
	}
	out := "\n\nSources:"
	for _, s := range sources {
		out += fmt.Sprintf("\n• %s (%s)", s.Name, s.Lean)
	}
	return out
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming %s: %w", path, err)
	}
	return nil
}
