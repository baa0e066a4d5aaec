package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hoanghai1803/spectrum/internal/ai"
	"github.com/hoanghai1803/spectrum/internal/cache"
	"github.com/hoanghai1803/spectrum/internal/cluster"
	"github.com/hoanghai1803/spectrum/internal/config"
	"github.com/hoanghai1803/spectrum/internal/features"
	"github.com/hoanghai1803/spectrum/internal/feeds"
	"github.com/hoanghai1803/spectrum/internal/importance"
	"github.com/hoanghai1803/spectrum/internal/pipeline"
	"github.com/hoanghai1803/spectrum/internal/publish"
	"github.com/hoanghai1803/spectrum/internal/retry"
	"github.com/hoanghai1803/spectrum/internal/storage"
	"github.com/hoanghai1803/spectrum/internal/summarize"
)

// backend is the opened cache plus the SQLite store that always keeps the
// run history.
type backend struct {
	db    *storage.Store
	cache cache.Store
	close func()
}

// openBackend opens the SQLite database and the configured cache store.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	db, err := storage.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	b := &backend{db: db, cache: db, close: func() { db.Close() }}
	switch cfg.Cache.Backend {
	case "memory":
		b.cache = cache.NewMemory()
	case "redis":
		rdb, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword,
			cfg.Cache.RedisDB, cfg.Cache.RedisPrefix, cfg.Cache.SummaryTTL())
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("opening redis cache: %w", err)
		}
		b.cache = rdb
		b.close = func() {
			rdb.Close()
			db.Close()
		}
	}
	slog.Debug("cache opened", "backend", cfg.Cache.Backend)
	return b, nil
}

func retryPolicy(cfg config.RetryConfig, attemptTimeout time.Duration) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      time.Duration(cfg.BaseDelayMS) * time.Millisecond,
		Multiplier:     cfg.Multiplier,
		Jitter:         cfg.Jitter,
		AttemptTimeout: attemptTimeout,
	}
}

// buildPipeline wires every stage from the configuration.
func buildPipeline(ctx context.Context, cfg *config.Config, b *backend) (*pipeline.Pipeline, error) {
	httpTimeout := time.Duration(cfg.Ingest.HTTPTimeoutSeconds) * time.Second
	aiTimeout := time.Duration(cfg.AI.TimeoutSeconds) * time.Second

	fetcher := feeds.NewFetcher(feeds.Options{
		UserAgent:    cfg.Ingest.UserAgent,
		HTTPTimeout:  httpTimeout,
		Workers:      cfg.Ingest.Workers,
		RateLimit:    time.Duration(cfg.Ingest.RateLimitMS) * time.Millisecond,
		FetchCap:     cfg.Ingest.FetchCap,
		ExcerptChars: cfg.Ingest.ExcerptChars,
		Retry:        retryPolicy(cfg.Retry, httpTimeout),
	})
	resolver := feeds.NewResolver(b.cache, fetcher, feeds.ResolverOptions{
		TTL:            cfg.Cache.TTL(),
		MaxChars:       cfg.Ingest.MaxTextChars,
		MinChars:       cfg.Ingest.MinChars,
		MinUsableChars: cfg.Ingest.MinUsableChars,
	})

	var embedder ai.Embedder
	if cfg.Embedding.Provider != "none" && cfg.Embedding.APIKey != "" {
		e, err := ai.NewEmbedder(ai.EmbedderConfig{
			Provider: cfg.Embedding.Provider,
			APIKey:   cfg.Embedding.APIKey,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			Timeout:  aiTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
		embedder = e
		slog.Info("embedding provider configured", "provider", cfg.Embedding.Provider, "model", cfg.Embedding.Model)
	}

	// Nil when no API key is configured; the scorer and summarizer then stay
	// local.
	var provider ai.Provider
	if cfg.AI.Enabled() {
		p, err := ai.NewProvider(ai.ProviderConfig{
			Provider: cfg.AI.Provider,
			APIKey:   cfg.AI.APIKey,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
			Timeout:  aiTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
		provider = p
		slog.Info("AI provider configured", "provider", cfg.AI.Provider, "model", cfg.AI.Model)
	} else {
		slog.Warn("no AI provider API key configured, using local scoring and summaries")
	}

	var refiner importance.Refiner = importance.NopRefiner{}
	if provider != nil && cfg.Importance.UseLLM {
		refiner = importance.NewLLMRefiner(provider, b.cache, cfg.Cache.SummaryTTL())
	}

	var mirror publish.Mirror
	if cfg.Publish.S3Bucket != "" {
		m, err := publish.NewS3Mirror(ctx, publish.S3Config{
			Bucket:       cfg.Publish.S3Bucket,
			Prefix:       cfg.Publish.S3Prefix,
			Region:       cfg.Publish.S3Region,
			Profile:      cfg.Publish.S3Profile,
			Endpoint:     cfg.Publish.S3Endpoint,
			UsePathStyle: cfg.Publish.S3Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("creating S3 mirror: %w", err)
		}
		mirror = m
	}

	return pipeline.New(cfg.Sources, pipeline.Stages{
		Fetcher:  fetcher,
		Resolver: resolver,
		Features: features.NewExtractor(embedder, features.Options{
			MaxItems:  cfg.Embedding.MaxItems,
			BatchSize: cfg.Embedding.BatchSize,
			Overflow:  cfg.Embedding.Overflow,
			Retry:     retryPolicy(cfg.Retry, aiTimeout),
		}),
		Cluster: cluster.Options{
			Threshold:        cfg.Cluster.SimilarityThreshold,
			TightenThreshold: cfg.Cluster.TightenThreshold,
			MinSize:          cfg.Cluster.MinClusterSize,
		},
		Scorer: importance.NewScorer(refiner, importance.Options{
			Threshold:       cfg.Importance.Threshold,
			MinAnyCriterion: cfg.Importance.MinAnyCriterion,
			RefineTopN:      cfg.Importance.LLMTopN,
			MaxCandidates:   cfg.Importance.MaxCandidates,
		}),
		Summarizer: summarize.New(provider, b.cache, summarize.Options{
			LLMTopN:        cfg.Summary.LLMTopN,
			MaxInputChars:  cfg.Summary.MaxInputChars,
			MaxRepsPerLean: cfg.Summary.MaxRepsPerLean,
			CacheTTL:       cfg.Cache.SummaryTTL(),
			Retry:          retryPolicy(cfg.Retry, aiTimeout),
		}),
		Publisher: publish.New(publish.Options{
			Dir:          cfg.PublishDir(),
			MaxFeedItems: cfg.Publish.MaxFeedItems,
			FeedLink:     cfg.Publish.FeedLink,
		}, mirror),
		Runs: b.db,
	}), nil
}
