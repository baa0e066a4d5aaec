package importance

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/hoanghai1803/spectrum/internal/ai"
	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/models"
)

func article(source string, lean models.Lean, title, text string) models.Article {
	return models.Article{
		SourceName: source,
		Lean:       lean,
		Title:      title,
		URL:        "https://" + source + ".example/" + title,
		Text:       text,
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		in   Signals
		want models.ImportanceScores
	}{
		{
			name: "no signals",
			in:   Signals{},
			want: models.ImportanceScores{Impact: 2, Conflict: 1, Ramifications: 1.5, Accountability: 1, InformedPublic: 1},
		},
		{
			name: "saturated dimensions are clamped",
			in:   Signals{Size: 6, Diversity: 1, Numbers: 40},
			want: models.ImportanceScores{Impact: 10, Conflict: 10, Ramifications: 1.5, Accountability: 1, InformedPublic: 2.5},
		},
		{
			name: "mixed signals",
			in: Signals{
				Size: 3, Diversity: 0.5, Numbers: 20, Conflict: 5, PublicInfo: 4,
				Wrongdoing: 6, Transparency: 3, Ramification: 9, Civic: true,
			},
			want: models.ImportanceScores{
				Impact: 10, Conflict: 10, Ramifications: 6.5, Accountability: 6,
				InformedPublic: 6.8, CitizenResponsibility: 5.8, Transparency: 5,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.in)
			if got != tt.want {
				t.Errorf("Score() = %+v, want %+v", got, tt.want)
			}
			for _, v := range got.Values() {
				if v < 0 || v > 10 {
					t.Errorf("dimension %v out of [0,10]", v)
				}
			}
		})
	}
}

func TestExtract(t *testing.T) {
	story := &models.Story{Articles: []models.Article{
		article("a", models.LeanLeft, "Senate passes sweeping fraud investigation bill", "The Senate voted 52 to 48 on a $5 billion plan"),
	}}
	got := Extract(story)

	want := Signals{
		Size: 1, Diversity: Diversity(story.Articles),
		Numbers: 3, Money: 2, Government: 2, Ramification: 1, Wrongdoing: 2, Civic: true,
	}
	if got != want {
		t.Errorf("Extract() = %+v, want %+v", got, want)
	}
}

func TestDiversity(t *testing.T) {
	tests := []struct {
		name     string
		articles []models.Article
		want     float64
	}{
		{
			name: "four outlets three leans",
			articles: []models.Article{
				article("a", models.LeanLeft, "t", ""),
				article("b", models.LeanCenter, "t", ""),
				article("c", models.LeanRight, "t", ""),
				article("d", models.LeanRight, "t", ""),
			},
			want: 1,
		},
		{
			name: "two outlets two leans",
			articles: []models.Article{
				article("a", models.LeanLeft, "t", ""),
				article("b", models.LeanRight, "t", ""),
			},
			want: (2.0/4 + 2.0/3) / 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Diversity(tt.articles); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Diversity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBundle_CapsText(t *testing.T) {
	long := make([]byte, 3000)
	for i := range long {
		long[i] = 'x'
	}
	story := &models.Story{Articles: []models.Article{
		article("a", models.LeanLeft, "First", string(long)),
		article("b", models.LeanRight, "Second", ""),
	}}
	story.Articles[1].Excerpt = "excerpt only"

	got := Bundle(story, 6000)
	want := "First\n" + string(long[:1000]) + "\nSecond\nexcerpt only"
	if got != want {
		t.Errorf("Bundle() has %d chars, want %d", len(got), len(want))
	}
	if got := Bundle(story, 10); got != "First\nxxxx" {
		t.Errorf("Bundle(10) = %q", got)
	}
}

func TestBuildStories(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	articles := []models.Article{
		article("alpha", models.LeanLeft, "A1", ""),
		article("alpha", models.LeanLeft, "A2", ""),
		article("beta", models.LeanRight, "B1", ""),
		article("gamma", models.LeanCenter, "C1", ""),
	}

	got := BuildStories(articles, [][]int{{0, 1, 2}, {0, 1}, {3, 2}}, 2, now)
	if len(got) != 2 {
		t.Fatalf("BuildStories() returned %d stories, want 2", len(got))
	}

	first := got[0]
	if first.Title != "A1" {
		t.Errorf("Title = %q, want first member title", first.Title)
	}
	if first.ClusterSize != 2 || len(first.Sources) != 2 {
		t.Errorf("ClusterSize = %d, sources = %d, want 2 distinct sources", first.ClusterSize, len(first.Sources))
	}
	if first.Sources[0].URL != articles[0].URL || first.Sources[1].Name != "beta" {
		t.Errorf("Sources = %+v, want one entry per outlet in member order", first.Sources)
	}
	if len(first.Articles) != 3 {
		t.Errorf("Articles = %d, want all 3 members", len(first.Articles))
	}
	if !first.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", first.Timestamp, now)
	}
	if got[1].Title != "C1" {
		t.Errorf("second story title = %q, want C1", got[1].Title)
	}
}

type fixedRefiner struct {
	scores []models.ImportanceScores
	calls  int
}

func (f *fixedRefiner) Refine(_ context.Context, _ models.ImportanceScores, _ *models.Story) models.ImportanceScores {
	s := f.scores[f.calls]
	f.calls++
	return s
}

func uniform(v float64) models.ImportanceScores {
	var s models.ImportanceScores
	for _, dim := range models.Dimensions {
		s.Set(dim, v)
	}
	return s
}

func stories(n int) []models.Story {
	out := make([]models.Story, n)
	for i := range out {
		out[i] = models.Story{
			Title: string(rune('A' + i)),
			Articles: []models.Article{
				article("a", models.LeanLeft, "t", ""),
				article("b", models.LeanRight, "t", ""),
			},
		}
	}
	return out
}

func TestScorer_ThresholdFilter(t *testing.T) {
	refiner := &fixedRefiner{scores: []models.ImportanceScores{uniform(6), uniform(5.9), uniform(9)}}
	s := NewScorer(refiner, Options{Threshold: DefaultThreshold, RefineTopN: 3})

	kept := s.Score(context.Background(), stories(3))
	if len(kept) != 2 {
		t.Fatalf("kept %d stories, want 2", len(kept))
	}
	if kept[0].Title != "A" || kept[1].Title != "C" {
		t.Errorf("kept %q and %q, want A and C in input order", kept[0].Title, kept[1].Title)
	}
	for _, story := range kept {
		if story.Average < DefaultThreshold {
			t.Errorf("story %q kept with average %v", story.Title, story.Average)
		}
		if story.Average != story.Scores.Mean() {
			t.Errorf("Average = %v, want mean %v", story.Average, story.Scores.Mean())
		}
	}
}

func TestScorer_MinAnyCriterion(t *testing.T) {
	lopsided := uniform(9)
	lopsided.Transparency = 1
	s := NewScorer(&fixedRefiner{scores: []models.ImportanceScores{lopsided}}, Options{
		Threshold:       DefaultThreshold,
		MinAnyCriterion: 2,
		RefineTopN:      1,
	})
	if kept := s.Score(context.Background(), stories(1)); len(kept) != 0 {
		t.Errorf("kept %d stories, want 0 when a dimension is under the floor", len(kept))
	}
	if !s.Passes(uniform(6)) {
		t.Error("Passes(uniform 6) = false, want true")
	}
}

func TestScorer_RefinesOnlyTopN(t *testing.T) {
	refiner := &fixedRefiner{scores: []models.ImportanceScores{uniform(10), uniform(10)}}
	s := NewScorer(refiner, Options{Threshold: 0, RefineTopN: 2})

	kept := s.Score(context.Background(), stories(4))
	if refiner.calls != 2 {
		t.Errorf("refiner called %d times, want 2", refiner.calls)
	}
	if len(kept) != 4 {
		t.Fatalf("kept %d stories, want 4", len(kept))
	}
	if kept[3].Scores != Heuristic(&kept[3]) {
		t.Errorf("unrefined story scores = %+v, want heuristic", kept[3].Scores)
	}
}

func TestScorer_MaxCandidates(t *testing.T) {
	s := NewScorer(nil, Options{Threshold: 0, MaxCandidates: 2})
	if kept := s.Score(context.Background(), stories(5)); len(kept) != 2 {
		t.Errorf("kept %d stories, want 2", len(kept))
	}
}

type fakeProvider struct {
	rating map[string]float64
	err    error
	calls  int
}

func (f *fakeProvider) SummarizeStory(context.Context, []ai.StoryArticle) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeProvider) RateImportance(context.Context, string) (map[string]float64, error) {
	f.calls++
	return f.rating, f.err
}

func (f *fakeProvider) Model() string { return "fake-model" }

func TestLLMRefiner(t *testing.T) {
	now := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	heuristic := uniform(3)

	t.Run("rating replaces heuristic and is cached", func(t *testing.T) {
		provider := &fakeProvider{rating: map[string]float64{
			models.DimImpact: 12, models.DimConflict: 7.25, models.DimTransparency: -1,
		}}
		store := cache.NewMemory()
		r := NewLLMRefiner(provider, store, time.Hour).WithClock(func() time.Time { return now })
		story := &stories(1)[0]

		got := r.Refine(context.Background(), heuristic, story)
		want := models.ImportanceScores{Impact: 10, Conflict: 7.3}
		if got != want {
			t.Errorf("Refine() = %+v, want %+v", got, want)
		}
		if again := r.Refine(context.Background(), heuristic, story); again != want {
			t.Errorf("cached Refine() = %+v, want %+v", again, want)
		}
		if provider.calls != 1 {
			t.Errorf("provider called %d times, want 1", provider.calls)
		}
	})

	t.Run("failure keeps heuristic", func(t *testing.T) {
		provider := &fakeProvider{err: &ai.APIError{Provider: "fake", StatusCode: 500}}
		r := NewLLMRefiner(provider, nil, time.Hour)
		story := &stories(1)[0]

		if got := r.Refine(context.Background(), heuristic, story); got != heuristic {
			t.Errorf("Refine() = %+v, want heuristic %+v", got, heuristic)
		}
		if provider.calls != 1 {
			t.Errorf("provider called %d times, want exactly 1 (no retries)", provider.calls)
		}
	})
}
