package main

import (
	"github.com/spf13/cobra"

	"github.com/ahmedalbuni/biorad/experiment"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarise the checkpoints written by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := experiment.NewFileStore(cfg.Runtime.CheckpointDir, experiment.WithStoreLogger(logger))
			if err != nil {
				return err
			}
			records, err := store.List()
			if err != nil {
				return err
			}
			return writeReport(cmd, cfg, records)
		},
	}
}
