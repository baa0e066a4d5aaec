package importance

import (
	"context"
	"log/slog"
	"time"

	"github.com/hoanghai1803/spectrum/internal/models"
)

// Options configures scoring and the publish filter.
type Options struct {
	// Threshold is the minimum importance average of a retained story.
	Threshold float64
	// MinAnyCriterion is a floor every dimension must reach. Zero disables it.
	MinAnyCriterion float64
	// RefineTopN limits refinement to the first N candidates.
	RefineTopN int
	// MaxCandidates bounds how many candidates are scored at all. Zero means
	// no bound.
	MaxCandidates int
}

// DefaultThreshold is the publish threshold for the importance average.
const DefaultThreshold = 6.0

// BuildStories turns clusters of article indexes into story candidates.
// The title comes from the first member and sources list one entry per
// distinct outlet in member order. Candidates backed by fewer than
// minSources distinct outlets are discarded.
func BuildStories(articles []models.Article, clusters [][]int, minSources int, now time.Time) []models.Story {
	stories := make([]models.Story, 0, len(clusters))
	for _, members := range clusters {
		if len(members) == 0 {
			continue
		}
		story := models.Story{Timestamp: now}
		seen := make(map[string]bool)
		for _, idx := range members {
			a := articles[idx]
			story.Articles = append(story.Articles, a)
			if seen[a.SourceName] {
				continue
			}
			seen[a.SourceName] = true
			story.Sources = append(story.Sources, models.SourceRef{Name: a.SourceName, Lean: a.Lean, URL: a.URL})
		}
		story.Title = story.Articles[0].Title
		story.ClusterSize = len(story.Sources)
		if story.ClusterSize < minSources {
			slog.Info("dropping single-outlet cluster",
				"title", story.Title,
				"articles", len(story.Articles),
				"sources", story.ClusterSize,
			)
			continue
		}
		stories = append(stories, story)
	}
	return stories
}

// Scorer computes importance vectors and applies the threshold filter.
type Scorer struct {
	refiner Refiner
	opts    Options
}

// NewScorer creates a Scorer. A nil refiner keeps heuristic scores.
func NewScorer(refiner Refiner, opts Options) *Scorer {
	if refiner == nil {
		refiner = NopRefiner{}
	}
	return &Scorer{refiner: refiner, opts: opts}
}

// Score fills in the importance vector and average of every candidate and
// returns those that clear the threshold, in input order. Dropped stories
// are a normal outcome and only logged.
func (s *Scorer) Score(ctx context.Context, stories []models.Story) []models.Story {
	candidates := stories
	if s.opts.MaxCandidates > 0 && len(candidates) > s.opts.MaxCandidates {
		slog.Info("capping importance candidates", "candidates", len(candidates), "max", s.opts.MaxCandidates)
		candidates = candidates[:s.opts.MaxCandidates]
	}

	kept := make([]models.Story, 0, len(candidates))
	for i := range candidates {
		story := candidates[i]
		scores := Heuristic(&story)
		if i < s.opts.RefineTopN {
			scores = s.refiner.Refine(ctx, scores, &story)
		}
		story.Scores = scores
		story.Average = scores.Mean()

		if !s.Passes(scores) {
			slog.Info("story below importance threshold",
				"title", story.Title,
				"avg", story.Average,
				"min", scores.Min(),
			)
			continue
		}
		kept = append(kept, story)
	}

	slog.Info("importance filter complete",
		"candidates", len(candidates),
		"kept", len(kept),
		"skipped", len(candidates)-len(kept),
	)
	return kept
}

// Passes reports whether scores clear both the average threshold and the
// per-dimension floor.
func (s *Scorer) Passes(scores models.ImportanceScores) bool {
	if scores.Mean() < s.opts.Threshold {
		return false
	}
	return s.opts.MinAnyCriterion <= 0 || scores.Min() >= s.opts.MinAnyCriterion
}
