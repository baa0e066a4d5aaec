package importance

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hoanghai1803/spectrum/internal/ai"
	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
)

// Refiner adjusts heuristic scores. Implementations are best-effort and
// return the input unchanged when they cannot improve on it.
type Refiner interface {
	Refine(ctx context.Context, scores models.ImportanceScores, story *models.Story) models.ImportanceScores
}

var (
	_ Refiner = NopRefiner{}
	_ Refiner = (*LLMRefiner)(nil)
)

// NopRefiner keeps the heuristic scores.
type NopRefiner struct{}

func (NopRefiner) Refine(_ context.Context, scores models.ImportanceScores, _ *models.Story) models.ImportanceScores {
	return scores
}

// LLMRefiner replaces the heuristic scores with a single LLM rating. Ratings
// are cached per article set and model.
type LLMRefiner struct {
	provider ai.Provider
	store    cache.Store
	ttl      time.Duration
	now      func() time.Time
}

// NewLLMRefiner creates a refiner. A nil store disables rating caching.
func NewLLMRefiner(provider ai.Provider, store cache.Store, ttl time.Duration) *LLMRefiner {
	return &LLMRefiner{provider: provider, store: store, ttl: ttl, now: time.Now}
}

// WithClock overrides the clock used for cache expiry.
func (r *LLMRefiner) WithClock(now func() time.Time) *LLMRefiner {
	r.now = now
	return r
}

// Refine makes one rating call without retries. Any failure keeps scores.
func (r *LLMRefiner) Refine(ctx context.Context, scores models.ImportanceScores, story *models.Story) models.ImportanceScores {
	key := cache.RatingKey(story.URLs(), r.provider.Model())
	if raw, ok := cache.Lookup(ctx, r.store, key, r.ttl, r.now()); ok {
		var cached models.ImportanceScores
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached.Clamped()
		}
		slog.Warn("corrupt cached rating, re-rating", "key", key)
	}

	rating, err := r.provider.RateImportance(ctx, Bundle(story, bundleChars))
	if err != nil {
		slog.Info("LLM importance rating failed, keeping heuristic", "title", story.Title, "error", err)
		return scores
	}

	var refined models.ImportanceScores
	for _, dim := range models.Dimensions {
		refined.Set(dim, rating[dim])
	}
	refined = refined.Clamped()

	if data, err := json.Marshal(refined); err == nil {
		cache.Save(ctx, r.store, key, string(data), r.now())
	}
	return refined
}
