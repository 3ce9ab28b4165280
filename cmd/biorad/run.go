package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmedalbuni/biorad/experiment"
	"github.com/ahmedalbuni/biorad/pkg/errors"
	"github.com/ahmedalbuni/biorad/pkg/log"
	"github.com/ahmedalbuni/biorad/report"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every seed × pipeline experiment, resuming from checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			staleLock, _ := cmd.Flags().GetDuration("stale-lock")

			ds, err := loadCSV(cfg.Dataset, cfg.LabelColumn)
			if err != nil {
				return err
			}
			_, nFeatures := ds.X.Dims()
			entries, err := cfg.Entries(nFeatures, cfg.MasterSeed)
			if err != nil {
				return err
			}
			seeds, err := experiment.SeedsFrom(cfg.MasterSeed, cfg.NumReps)
			if err != nil {
				return err
			}
			store, err := experiment.NewFileStore(cfg.Runtime.CheckpointDir,
				experiment.WithStaleLockAfter(staleLock),
				experiment.WithStoreLogger(logger),
			)
			if err != nil {
				return err
			}
			runner, err := experiment.NewRunner(store,
				append(cfg.RunnerOptions(), experiment.WithLogger(logger))...)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting sweep",
				log.SamplesKey, len(ds.Y),
				log.FeaturesKey, nFeatures,
				"pipelines", len(entries),
				"seeds", len(seeds),
			)
			outcomes, err := experiment.Sweep(ctx, runner, entries, seeds, ds.X, ds.Y, cfg.Runtime.Parallel)
			if err != nil {
				return err
			}

			records := make([]*experiment.Record, 0, len(outcomes))
			for _, o := range outcomes {
				if errors.Is(o.Err, errors.ErrNoValidConfiguration) {
					logger.Warn("No valid configuration", log.CheckpointKeyKey, o.Key.String())
				}
				if o.Record != nil {
					records = append(records, o.Record)
				}
			}
			return writeReport(cmd, cfg, records)
		},
	}
	cmd.Flags().Duration("stale-lock", 6*time.Hour, "break checkpoint locks older than this (0 disables)")
	return cmd
}

// writeReport prints the summary table and saves the box plot into the
// output directory.
func writeReport(cmd *cobra.Command, cfg *experiment.Config, records []*experiment.Record) error {
	summaries := experiment.Summarize(records)
	if err := report.WriteTable(cmd.OutOrStdout(), summaries); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}
	path := filepath.Join(cfg.OutputDir, "bbc_scores.png")
	err := report.SaveBoxPlot(path, summaries, fmt.Sprintf("BBC-CV %s", cfg.Scoring))
	if errors.Is(err, errors.ErrEmptyData) {
		fmt.Fprintln(cmd.ErrOrStderr(), "no valid scores to plot")
		return nil
	}
	return err
}
