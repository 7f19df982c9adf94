// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/facts"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/logging"
)

// newFactsCommand groups fact-store operations.
func newFactsCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Compute and inspect per-CVE risk facts",
	}
	cmd.AddCommand(newFactsRunCommand(root))
	return cmd
}

func newFactsRunCommand(root *rootOptions) *cobra.Command {
	var batchSize, workers, maxInFlight int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Rebuild the fact store from the loaded feeds",
		Long: `Warms the in-memory source cache from every auxiliary feed, streams the
primary NVD collection, and rebuilds the fact store: one record per CVE with
the weighted risk score and the extracted threat attributes. The fact store
is truncated and fully replaced on every run.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(root)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			cfg := facts.PipelineConfig{
				BatchSize:   rt.cfg.Pipeline.BatchSize,
				Workers:     rt.cfg.Pipeline.Workers,
				MaxInFlight: rt.cfg.Pipeline.MaxInFlight,
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if maxInFlight > 0 {
				cfg.MaxInFlight = maxInFlight
			}

			log := logging.Component(rt.log, "facts")

			// Warm the cache fully before the pipeline touches the
			// fact collection; the join is only correct against a
			// complete cache.
			cache, err := feeds.Warm(rt.store, log)
			if err != nil {
				return err
			}

			pipeline := facts.NewPipeline(rt.store, cache, cfg, log)
			if _, err := pipeline.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&batchSize, "batch-size", 0, "Records per batch (overrides config)")
	flags.IntVar(&workers, "workers", 0, "Worker goroutines (overrides config)")
	flags.IntVar(&maxInFlight, "max-in-flight", 0, "In-flight batch cap (overrides config)")

	return cmd
}
