// Package summarize orders retained stories and gives each exactly one
// summary, from the LLM for the top stories and from a local extractive
// template otherwise.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hoanghai1803/spectrum/internal/ai"
	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/retry"
)

// MethodLocal marks summaries produced by the local template.
const MethodLocal = "local"

const (
	keyPointsChars = 700
	joinedChars    = 1000
)

// Options configures the summarizer.
type Options struct {
	// LLMTopN is how many of the highest ranked stories go to the LLM.
	LLMTopN int
	// MaxInputChars caps every article text before submission.
	MaxInputChars  int
	MaxRepsPerLean int
	CacheTTL       time.Duration
	Retry          retry.Policy
}

// Summarizer writes story summaries.
type Summarizer struct {
	provider ai.Provider
	store    cache.Store
	opts     Options
	now      func() time.Time
}

// New creates a Summarizer. A nil provider summarizes every story locally
// and a nil store disables summary caching.
func New(provider ai.Provider, store cache.Store, opts Options) *Summarizer {
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 4000
	}
	if opts.MaxRepsPerLean <= 0 {
		opts.MaxRepsPerLean = 5
	}
	return &Summarizer{provider: provider, store: store, opts: opts, now: time.Now}
}

// WithClock overrides the clock used for cache expiry.
func (s *Summarizer) WithClock(now func() time.Time) *Summarizer {
	s.now = now
	return s
}

// Summarize orders stories by importance and fills in Summary and
// SummaryMethod for each of them. runDate is the date shown in local
// summaries.
func (s *Summarizer) Summarize(ctx context.Context, stories []models.Story, runDate time.Time) []models.Story {
	out := make([]models.Story, len(stories))
	copy(out, stories)
	Order(out)

	llmDisabled := s.provider == nil
	var viaLLM, fallbacks int
	for i := range out {
		story := &out[i]
		reps := Representatives(story, s.opts.MaxRepsPerLean)

		if !llmDisabled && i < s.opts.LLMTopN {
			text, err := s.summarizeLLM(ctx, story, reps)
			if err == nil {
				story.Summary = WithSources(text, reps)
				story.SummaryMethod = "llm:" + s.provider.Model()
				viaLLM++
				continue
			}
			fallbacks++
			slog.Warn("LLM summary failed, using local summary", "title", story.Title, "error", err)
			if isAuthFailure(err) {
				slog.Warn("LLM authentication failed, disabling LLM summaries for this run")
				llmDisabled = true
			}
		}

		story.Summary = WithSources(Local(reps, runDate), reps)
		story.SummaryMethod = MethodLocal
	}

	slog.Info("summaries complete",
		"stories", len(out),
		"llm", viaLLM,
		"local", len(out)-viaLLM,
		"llm_failures", fallbacks,
	)
	return out
}

func (s *Summarizer) summarizeLLM(ctx context.Context, story *models.Story, reps []models.Article) (string, error) {
	key := cache.SummaryKey(story.URLs(), s.provider.Model())
	if text, ok := cache.Lookup(ctx, s.store, key, s.opts.CacheTTL, s.now()); ok {
		slog.Info("using cached LLM summary", "title", story.Title, "model", s.provider.Model())
		return text, nil
	}

	articles := make([]ai.StoryArticle, len(reps))
	for i, a := range reps {
		articles[i] = ai.StoryArticle{
			Source: a.SourceName,
			Lean:   string(a.Lean),
			Title:  a.Title,
			Text:   models.Clip(a.Body(), s.opts.MaxInputChars),
		}
	}

	var text string
	err := s.opts.Retry.Do(ctx, "summarize story", func(ctx context.Context) error {
		out, err := s.provider.SummarizeStory(ctx, articles)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(out)
		if text == "" {
			return fmt.Errorf("%w: empty summary", ai.ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	cache.Save(ctx, s.store, key, text, s.now())
	return text, nil
}

func isAuthFailure(err error) bool {
	var apiErr *ai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// Order sorts stories by importance average descending, then cluster size
// descending, then title, then article set.
func Order(stories []models.Story) {
	sort.SliceStable(stories, func(i, j int) bool {
		a, b := &stories[i], &stories[j]
		if a.Average != b.Average {
			return a.Average > b.Average
		}
		if a.ClusterSize != b.ClusterSize {
			return a.ClusterSize > b.ClusterSize
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return cache.SetHash(a.URLs()) < cache.SetHash(b.URLs())
	})
}

// Representatives picks up to perLean articles of each lean, in left,
// center, right order. Stories without a known lean fall back to their first
// three members.
func Representatives(story *models.Story, perLean int) []models.Article {
	byLean := make(map[models.Lean][]models.Article)
	for _, a := range story.Articles {
		byLean[a.Lean] = append(byLean[a.Lean], a)
	}
	var reps []models.Article
	for _, lean := range models.Leans {
		members := byLean[lean]
		if len(members) > perLean {
			members = members[:perLean]
		}
		reps = append(reps, members...)
	}
	if len(reps) == 0 {
		reps = story.Articles[:min(3, len(story.Articles))]
	}
	return reps
}

// Local renders the extractive fallback summary.
func Local(reps []models.Article, runDate time.Time) string {
	title := "News Story"
	if len(reps) > 0 {
		title = reps[0].Title
	}

	counts := make(map[models.Lean]int)
	texts := make([]string, len(reps))
	for i, a := range reps {
		counts[a.Lean]++
		texts[i] = a.Body()
	}
	keyText := models.Clip(strings.Join(texts, " "), joinedChars)

	var b strings.Builder
	b.WriteString("**Who:** Multiple parties\n")
	fmt.Fprintf(&b, "**What:** %s\n", models.Clip(title, 60))
	b.WriteString("**Where:** —\n")
	fmt.Fprintf(&b, "**When:** %s\n", runDate.Format(time.DateOnly))
	b.WriteString("**Why:** —\n\n")
	fmt.Fprintf(&b, "**Coverage Balance:** Left %d | Center %d | Right %d\n\n",
		counts[models.LeanLeft], counts[models.LeanCenter], counts[models.LeanRight])
	fmt.Fprintf(&b, "**Key Points:**\n%s...", models.Clip(keyText, keyPointsChars))
	return b.String()
}

// WithSources appends a Sources block listing the representatives' URLs
// unless the summary already carries one.
func WithSources(summary string, reps []models.Article) string {
	if strings.Contains(summary, "Sources:\n-") || len(reps) == 0 {
		return summary
	}
	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\nSources:")
	for _, a := range reps {
		b.WriteString("\n- ")
		b.WriteString(a.URL)
	}
	return b.String()
}
