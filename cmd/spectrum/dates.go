package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/spectrum/internal/publish"
)

var datesCmd = &cobra.Command{
	Use:   "dates",
	Short: "List the published run dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		m, err := publish.ReadManifest(cfg.PublishDir())
		if errors.Is(err, publish.ErrNoArtifact) {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing published yet.")
			return nil
		}
		if err != nil {
			return err
		}

		for _, r := range m.Runs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %3d stories  generated %s\n",
				r.Date, r.Stories, r.GeneratedAt.Format("2006-01-02 15:04 MST"))
		}
		return nil
	},
}
