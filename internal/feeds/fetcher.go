// Package feeds implements ingestion: concurrent feed fetching, page
// downloads, and the ordered text-extraction strategy chain that turns feed
// items into articles.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/retry"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
)

// DefaultUserAgent identifies the aggregator as a regular desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) NewsAgg/1.0"

const maxPageBytes = 5 << 20

// Options controls how feeds and pages are fetched.
type Options struct {
	UserAgent   string
	HTTPTimeout time.Duration
	// Workers bounds the number of concurrent feed fetches and item
	// resolutions.
	Workers int
	// RateLimit is the minimum delay between two requests to the same host.
	RateLimit time.Duration
	// FetchCap is the global per-source item cap. A source's own FetchCap
	// can only lower it.
	FetchCap int
	// ExcerptChars truncates feed-supplied excerpts.
	ExcerptChars int
	Retry        retry.Policy
}

func (o Options) withDefaults() Options {
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 15 * time.Second
	}
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.FetchCap <= 0 {
		o.FetchCap = 40
	}
	if o.ExcerptChars <= 0 {
		o.ExcerptChars = 600
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry.MaxAttempts = 1
	}
	if o.Retry.AttemptTimeout <= 0 {
		o.Retry.AttemptTimeout = o.HTTPTimeout
	}
	return o
}

// FailedFeed records a feed that could not be fetched.
type FailedFeed struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// FetchResult contains the fetched feed items and any failures.
type FetchResult struct {
	Items  []models.FeedItem
	Failed []FailedFeed
}

// Fetcher handles feed and page fetching with per-domain rate limiting and
// bounded concurrency.
type Fetcher struct {
	client      *http.Client
	opts        Options
	rateLimiter map[string]time.Time // per-domain last request time
	mu          sync.Mutex           // protects rateLimiter
}

// NewFetcher creates a Fetcher whose HTTP client carries the configured
// User-Agent on every request.
func NewFetcher(opts Options) *Fetcher {
	opts = opts.withDefaults()
	return &Fetcher{
		client: &http.Client{
			Timeout: opts.HTTPTimeout,
			Transport: &userAgentTransport{
				base:      http.DefaultTransport,
				userAgent: opts.UserAgent,
			},
		},
		opts:        opts,
		rateLimiter: make(map[string]time.Time),
	}
}

// userAgentTransport wraps an http.RoundTripper to inject a browser-like
// identity on every request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	return t.base.RoundTrip(req)
}

// FetchAll fetches every source's feed concurrently, bounded by
// Options.Workers. Individual source failures are collected in
// FetchResult.Failed rather than failing the entire batch. Items are
// returned in source order, then feed order.
func (f *Fetcher) FetchAll(ctx context.Context, sources []models.Source) (*FetchResult, error) {
	var (
		result FetchResult
		mu     sync.Mutex
	)
	bySlot := make([][]models.FeedItem, len(sources))
	failed := make([]*FailedFeed, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)

	for i, src := range sources {
		g.Go(func() error {
			items, err := f.fetchSingleFeed(gctx, i, src)
			if err != nil {
				slog.Warn("failed to fetch feed",
					"source", src.Name,
					"url", src.FeedURL,
					"error", err,
				)

				mu.Lock()
				failed[i] = &FailedFeed{Source: src.Name, Error: err.Error()}
				mu.Unlock()

				return nil // skip failures, don't fail the batch
			}

			mu.Lock()
			bySlot[i] = items
			mu.Unlock()

			slog.Info("fetched feed",
				"source", src.Name,
				"items", len(items),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching feeds: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetching feeds: %w", err)
	}

	for i := range sources {
		result.Items = append(result.Items, bySlot[i]...)
		if failed[i] != nil {
			result.Failed = append(result.Failed, *failed[i])
		}
	}
	return &result, nil
}

// fetchSingleFeed retrieves and parses a feed from a single source under the
// retry policy.
func (f *Fetcher) fetchSingleFeed(ctx context.Context, index int, source models.Source) ([]models.FeedItem, error) {
	fp := gofeed.NewParser()
	fp.Client = f.client

	var feed *gofeed.Feed
	err := f.opts.Retry.Do(ctx, "fetch feed "+source.Name, func(ctx context.Context) error {
		f.waitForRateLimit(ctx, extractDomain(source.FeedURL))

		parsed, err := fp.ParseURLWithContext(source.FeedURL, ctx)
		if err != nil {
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) {
				return &retry.HTTPError{StatusCode: httpErr.StatusCode, URL: source.FeedURL}
			}
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", source.FeedURL, err)
	}

	limit := f.opts.FetchCap
	if source.FetchCap > 0 && source.FetchCap < limit {
		limit = source.FetchCap
	}
	return parseFeedItems(index, source, feed, limit, f.opts.ExcerptChars), nil
}

// Page is a downloaded HTML document.
type Page struct {
	URL  *url.URL
	Body []byte
}

// FetchPage downloads an article page under the retry policy. Non-2xx
// responses are returned as *retry.HTTPError.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url %q: %w", rawURL, err)
	}

	var body []byte
	err = f.opts.Retry.Do(ctx, "fetch page", func(ctx context.Context) error {
		f.waitForRateLimit(ctx, u.Hostname())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("creating request for %q: %w", rawURL, err)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("fetching %q: %w", rawURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.HTTPError{StatusCode: resp.StatusCode, URL: rawURL}
		}

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		if err != nil {
			return fmt.Errorf("reading body from %q: %w", rawURL, err)
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Page{URL: u, Body: body}, nil
}

// waitForRateLimit enforces the configured minimum delay between requests
// to the same domain. It blocks until the delay has elapsed or ctx is done.
func (f *Fetcher) waitForRateLimit(ctx context.Context, domain string) {
	if f.opts.RateLimit <= 0 {
		return
	}
	f.mu.Lock()
	lastReq, ok := f.rateLimiter[domain]
	now := time.Now()
	next := now
	if ok && now.Sub(lastReq) < f.opts.RateLimit {
		next = lastReq.Add(f.opts.RateLimit)
	}
	f.rateLimiter[domain] = next
	f.mu.Unlock()

	if wait := next.Sub(now); wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}

// extractDomain parses a URL and returns its hostname. If parsing fails, it
// returns the raw URL as a fallback key.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
