// Package pipeline runs one batch: ingest, vectorize, cluster, score,
// summarize and publish. Every stage consumes the complete output of the
// previous one.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hoanghai1803/spectrum/internal/cluster"
	"github.com/hoanghai1803/spectrum/internal/features"
	"github.com/hoanghai1803/spectrum/internal/feeds"
	"github.com/hoanghai1803/spectrum/internal/importance"
	"github.com/hoanghai1803/spectrum/internal/models"
	"github.com/hoanghai1803/spectrum/internal/publish"
	"github.com/hoanghai1803/spectrum/internal/summarize"
)

// RunRecorder persists run history. storage.Store implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.Run) error
}

// Stages holds the components of a run. Runs is optional.
type Stages struct {
	Fetcher    *feeds.Fetcher
	Resolver   *feeds.Resolver
	Features   *features.Extractor
	Cluster    cluster.Options
	Scorer     *importance.Scorer
	Summarizer *summarize.Summarizer
	Publisher  *publish.Publisher
	Runs       RunRecorder
}

// Pipeline executes runs over a fixed source list.
type Pipeline struct {
	sources []models.Source
	stages  Stages
}

// New creates a Pipeline.
func New(sources []models.Source, stages Stages) *Pipeline {
	return &Pipeline{sources: sources, stages: stages}
}

// Report summarizes a finished run.
type Report struct {
	Run       models.Run
	Stories   []models.Story
	Failed    []feeds.FailedFeed
	Published *publish.Result
}

// Run executes one batch dated now. Failures inside a stage are absorbed
// there; only cancellation and publish I/O errors are returned.
func (p *Pipeline) Run(ctx context.Context, now time.Time) (*Report, error) {
	run := models.Run{
		ID:        uuid.NewString(),
		RunDate:   now.Format(time.DateOnly),
		StartedAt: time.Now().UTC(),
	}
	log := slog.With("run_id", run.ID)
	log.Info("run started", "date", run.RunDate, "sources", len(p.sources))

	ingested, err := p.stages.Fetcher.Ingest(ctx, p.sources, p.stages.Resolver)
	if err != nil {
		return nil, fmt.Errorf("ingesting: %w", err)
	}
	run.ItemsFetched = ingested.ItemsFetched
	run.ArticlesIngested = len(ingested.Articles)
	for _, f := range ingested.Failed {
		run.FailedSources = append(run.FailedSources, f.Source)
	}

	vectors := p.stages.Features.Extract(ctx, ingested.Articles)
	run.FeatureMethod = vectors.Method
	clustered := make([]models.Article, len(vectors.Included))
	for i, idx := range vectors.Included {
		clustered[i] = ingested.Articles[idx]
	}

	groups := cluster.Cluster(vectors.Vectors, p.stages.Cluster)
	run.Clusters = len(groups)
	candidates := importance.BuildStories(clustered, groups, p.stages.Cluster.MinSize, now.UTC())
	log.Info("clustering complete",
		"articles", len(clustered),
		"method", vectors.Method,
		"clusters", len(groups),
		"candidates", len(candidates),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	retained := p.stages.Scorer.Score(ctx, candidates)
	stories := p.stages.Summarizer.Summarize(ctx, retained, now)
	publish.AssignIDs(stories, now)

	published, err := p.stages.Publisher.Publish(ctx, stories, now)
	if err != nil {
		return nil, fmt.Errorf("publishing: %w", err)
	}

	run.StoriesPublished = len(stories)
	run.FinishedAt = time.Now().UTC()
	if p.stages.Runs != nil {
		if err := p.stages.Runs.CreateRun(ctx, &run); err != nil {
			log.Warn("failed to record run", "error", err)
		}
	}

	log.Info("run complete",
		"articles", run.ArticlesIngested,
		"clusters", run.Clusters,
		"stories", run.StoriesPublished,
		"failed_sources", len(run.FailedSources),
		"duration", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
	)
	return &Report{Run: run, Stories: stories, Failed: ingested.Failed, Published: published}, nil
}
