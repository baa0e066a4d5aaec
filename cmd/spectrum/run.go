package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var flagRunDate string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and publish today's stories",
	Long: `Fetch every configured feed, cluster the coverage, score and summarize the
stories and publish stories/<date>.json, stories.json, feed.xml and the
index.json manifest. Re-running on the same date overwrites that date's
artifacts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		now, err := parseRunDate(flagRunDate, time.Now())
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.close()

		p, err := buildPipeline(ctx, cfg, b)
		if err != nil {
			return err
		}

		report, err := p.Run(ctx, now)
		if err != nil {
			return fmt.Errorf("running pipeline: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Published %d stories for %s (%d articles, %d clusters, %s features).\n",
			len(report.Stories), report.Run.RunDate, report.Run.ArticlesIngested,
			report.Run.Clusters, report.Run.FeatureMethod)
		for _, f := range report.Failed {
			fmt.Fprintf(out, "  failed: %s: %s\n", f.Source, f.Error)
		}
		if report.Published != nil {
			fmt.Fprintf(out, "Artifacts: %s\n", report.Published.StoriesPath)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&flagRunDate, "date", "", "run date as YYYY-MM-DD (default today)")
}

// parseRunDate returns now for an empty value, otherwise the given date at
// the current time of day in UTC.
func parseRunDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", s)
	}
	now = now.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC), nil
}
