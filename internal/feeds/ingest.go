package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
)

// IngestResult is the output of the ingestion stage.
type IngestResult struct {
	Articles     []models.Article
	Failed       []FailedFeed
	ItemsFetched int
	Dropped      int
	Duplicates   int
	ByMethod     map[models.ExtractionMethod]int
}

// Ingest fetches every source, resolves the text of every item with r, and
// returns the articles in canonical order (source index, then item index)
// with duplicate URLs removed. Only cancellation of ctx is an error.
func (f *Fetcher) Ingest(ctx context.Context, sources []models.Source, r *Resolver) (*IngestResult, error) {
	fetched, err := f.FetchAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	// Each URL is resolved once per run: concurrent workers would otherwise
	// miss the cache together and fetch the same page twice.
	items, dups := dedupItems(fetched.Items)

	resolved := make([]*models.Article, len(items))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)
	for i, item := range items {
		g.Go(func() error {
			article, ok := r.Resolve(gctx, item)
			if !ok {
				return nil
			}
			mu.Lock()
			resolved[i] = &article
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolving articles: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolving articles: %w", err)
	}

	result := &IngestResult{
		Failed:       fetched.Failed,
		ItemsFetched: len(fetched.Items),
		ByMethod:     make(map[models.ExtractionMethod]int),
	}
	var articles []models.Article
	for _, a := range resolved {
		if a == nil {
			result.Dropped++
			continue
		}
		articles = append(articles, *a)
	}

	articles, late := Canonicalize(articles)
	result.Duplicates = dups + late
	for _, a := range articles {
		result.ByMethod[a.Method]++
	}
	result.Articles = articles

	slog.Info("ingestion complete",
		"sources", len(sources),
		"failed_sources", len(result.Failed),
		"items", result.ItemsFetched,
		"articles", len(result.Articles),
		"dropped", result.Dropped,
		"duplicates", result.Duplicates,
		"cache_hits", result.ByMethod[models.MethodCache],
	)
	return result, nil
}

// dedupItems orders items canonically and keeps the first item per
// normalized URL. It returns the number of items removed.
func dedupItems(items []models.FeedItem) ([]models.FeedItem, int) {
	sorted := make([]models.FeedItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SourceIndex != sorted[j].SourceIndex {
			return sorted[i].SourceIndex < sorted[j].SourceIndex
		}
		return sorted[i].ItemIndex < sorted[j].ItemIndex
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	for _, item := range sorted {
		key := cache.NormalizeURL(item.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out, len(sorted) - len(out)
}

// Canonicalize sorts articles by (source index, item index) and removes
// later articles whose normalized URL was already seen. It returns the
// number of removed duplicates.
func Canonicalize(articles []models.Article) ([]models.Article, int) {
	sorted := make([]models.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SourceIndex != sorted[j].SourceIndex {
			return sorted[i].SourceIndex < sorted[j].SourceIndex
		}
		return sorted[i].ItemIndex < sorted[j].ItemIndex
	})

	seen := make(map[string]bool, len(sorted))
	out := sorted[:0]
	dups := 0
	for _, a := range sorted {
		key := cache.NormalizeURL(a.URL)
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out, dups
}
