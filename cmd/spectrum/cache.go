package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/spectrum/internal/cache"
)

var flagPruneOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the article and summary cache",
}

var cacheResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.close()

		r, ok := b.cache.(cache.Resetter)
		if !ok {
			return fmt.Errorf("cache backend %q cannot be reset", cfg.Cache.Backend)
		}
		if err := r.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("resetting cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cache reset (%s).\n", cfg.Cache.Backend)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove cache entries older than the summary TTL",
	Long: `Delete cache entries written before the cutoff. The default cutoff is
cache.summary_ttl_hours, the longest lifetime of any entry. Redis expires
entries on its own and needs no pruning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.close()

		p, ok := b.cache.(cache.Pruner)
		if !ok {
			fmt.Fprintf(cmd.OutOrStdout(), "Cache backend %q expires entries itself.\n", cfg.Cache.Backend)
			return nil
		}

		olderThan := cfg.Cache.SummaryTTL()
		if flagPruneOlderThan > 0 {
			olderThan = flagPruneOlderThan
		}
		deleted, err := p.Prune(cmd.Context(), time.Now().Add(-olderThan))
		if err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}

		if deleted == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune.")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d entries older than %s.\n", deleted, olderThan)
		}
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show SQLite cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := openBackend(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer b.close()

		stats, err := b.db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
		fmt.Fprintf(out, "Entries: %d\n", stats.Entries)
		if stats.Entries > 0 {
			fmt.Fprintf(out, "Oldest: %s\n", stats.Oldest.Format(time.RFC3339))
			fmt.Fprintf(out, "Newest: %s\n", stats.Newest.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&flagPruneOlderThan, "older-than", 0, "override the cutoff age (e.g. 48h)")

	cacheCmd.AddCommand(cacheResetCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
}
