package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// ManifestEntry describes one published run date.
type ManifestEntry struct {
	Date        string    `json:"date"`
	Stories     int       `json:"stories"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Manifest indexes the published stories artifacts, newest date first.
type Manifest struct {
	Latest string          `json:"latest"`
	Runs   []ManifestEntry `json:"runs"`
}

// Add records e, replacing any entry for the same date, and keeps the runs
// sorted by date descending.
func (m *Manifest) Add(e ManifestEntry) {
	runs := m.Runs[:0:0]
	for _, r := range m.Runs {
		if r.Date != e.Date {
			runs = append(runs, r)
		}
	}
	runs = append(runs, e)
	sort.Slice(runs, func(i, j int) bool { return runs[i].Date > runs[j].Date })
	m.Runs = runs
	m.Latest = runs[0].Date
}

// Dates returns the published dates, newest first.
func (m Manifest) Dates() []string {
	dates := make([]string, len(m.Runs))
	for i, r := range m.Runs {
		dates[i] = r.Date
	}
	return dates
}

// Has reports whether date has been published.
func (m Manifest) Has(date string) bool {
	for _, r := range m.Runs {
		if r.Date == date {
			return true
		}
	}
	return false
}

// ReadManifest loads the manifest from dir. It returns ErrNoArtifact when
// nothing has been published yet.
func ReadManifest(dir string) (Manifest, error) {
	var m Manifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// ReadStories loads the stories published for date (YYYY-MM-DD).
func ReadStories(dir, date string) ([]models.Story, error) {
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	var stories []models.Story
	if err := readJSON(filepath.Join(dir, StoriesDir, date+".json"), &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// ReadLatest loads the stories of the most recent run.
func ReadLatest(dir string) ([]models.Story, error) {
	var stories []models.Story
	if err := readJSON(filepath.Join(dir, LatestFile), &stories); err != nil {
		return nil, err
	}
	return stories, nil
}

// ReadFeed returns the raw RSS document.
func ReadFeed(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, FeedFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}
	return data, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNoArtifact
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
