package feeds

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
)

// Tier is a strategy with its acceptance rule.
type Tier struct {
	Strategy Strategy
	// MinChars is the shortest text the tier may return.
	MinChars int
	// Cache marks tiers whose result is written to the cache store.
	Cache bool
}

// ResolverOptions configures a Resolver.
type ResolverOptions struct {
	TTL      time.Duration
	MaxChars int
	// MinChars is the minimum for the full-text tiers.
	MinChars int
	// MinUsableChars is the minimum for the excerpt tier; shorter items are
	// dropped.
	MinUsableChars int
}

// Resolver turns feed items into articles. A fresh cache entry is reused
// without any network access; otherwise the tiers run in order until one
// yields enough text.
type Resolver struct {
	store    cache.Store
	download func(ctx context.Context, rawURL string) (*Page, error)
	tiers    []Tier
	opts     ResolverOptions
	now      func() time.Time
}

// DefaultTiers is the extraction chain: readability, HTML paragraphs, then
// the feed excerpt. Only the first two are cached.
func DefaultTiers(opts ResolverOptions) []Tier {
	return []Tier{
		{Strategy: ReadabilityStrategy{}, MinChars: opts.MinChars, Cache: true},
		{Strategy: HTMLStrategy{}, MinChars: opts.MinChars, Cache: true},
		{Strategy: ExcerptStrategy{}, MinChars: opts.MinUsableChars},
	}
}

// NewResolver creates a Resolver that downloads pages with f. A nil store
// disables caching.
func NewResolver(store cache.Store, f *Fetcher, opts ResolverOptions) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 5000
	}
	if opts.MinUsableChars <= 0 {
		opts.MinUsableChars = 1
	}
	r := &Resolver{
		store: store,
		tiers: DefaultTiers(opts),
		opts:  opts,
		now:   time.Now,
	}
	if f != nil {
		r.download = f.FetchPage
	}
	return r
}

// WithTiers replaces the extraction chain.
func (r *Resolver) WithTiers(tiers []Tier) *Resolver {
	r.tiers = tiers
	return r
}

// WithClock replaces the time source used for cache freshness.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Resolve returns the article for item and false when no tier produced
// usable text.
func (r *Resolver) Resolve(ctx context.Context, item models.FeedItem) (models.Article, bool) {
	article := models.Article{
		SourceName:  item.SourceName,
		Lean:        item.Lean,
		SourceIndex: item.SourceIndex,
		ItemIndex:   item.ItemIndex,
		Title:       item.Title,
		URL:         item.URL,
		Excerpt:     item.Excerpt,
		PublishedAt: item.PublishedAt,
	}

	key := cache.TextKey(item.URL)
	if text, ok := cache.Lookup(ctx, r.store, key, r.opts.TTL, r.now()); ok {
		article.Text = text
		article.Method = models.MethodCache
		return article, true
	}

	in := NewInput(item, func(ctx context.Context) (*Page, error) {
		if r.download == nil {
			return nil, errNoText
		}
		return r.download(ctx, item.URL)
	})

	for _, tier := range r.tiers {
		method := tier.Strategy.Method()
		text, err := tier.Strategy.Extract(ctx, in)
		if err != nil {
			slog.Debug("extraction tier failed", "method", method, "url", item.URL, "error", err)
			continue
		}
		text = cleanText(text)
		if utf8.RuneCountInString(text) < tier.MinChars || text == "" {
			slog.Debug("extraction tier too short", "method", method, "url", item.URL, "chars", utf8.RuneCountInString(text))
			continue
		}
		text = truncateRunes(text, r.opts.MaxChars)
		if tier.Cache {
			cache.Save(ctx, r.store, key, text, r.now())
		}
		article.Text = text
		article.Method = method
		return article, true
	}

	slog.Info("dropping item without usable text", "source", item.SourceName, "url", item.URL)
	return models.Article{}, false
}
