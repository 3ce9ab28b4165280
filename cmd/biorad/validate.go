package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ahmedalbuni/biorad/experiment"
	"github.com/ahmedalbuni/biorad/sampling"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and dataset without running anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ds, err := loadCSV(cfg.Dataset, cfg.LabelColumn)
			if err != nil {
				return err
			}
			n, nFeatures := ds.X.Dims()
			entries, err := cfg.Entries(nFeatures, cfg.MasterSeed)
			if err != nil {
				return err
			}
			if _, err := experiment.SeedsFrom(cfg.MasterSeed, cfg.NumReps); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dataset: %d samples, %d features, class counts %v\n", n, nFeatures, sampling.Counts(ds.Y))
			for _, e := range entries {
				fmt.Fprintf(out, "pipeline %s: %s\n", e.ID, e.Space)
			}
			fmt.Fprintf(out, "%d experiments (%d seeds × %d pipelines), %d evaluations each\n",
				cfg.NumReps*len(entries), cfg.NumReps, len(entries), cfg.MaxEvals)
			return nil
		},
	}
}
