package main

import (
	"github.com/spf13/cobra"

	"github.com/ahmedalbuni/biorad/experiment"
	"github.com/ahmedalbuni/biorad/pkg/log"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "biorad",
		Short:        "Compare feature selection and classification pipelines with BBC-CV",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "biorad.yaml", "experiment config file")
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newReportCmd())
	return root
}

// loadConfig reads --config and installs the configured logger.
func loadConfig(cmd *cobra.Command) (*experiment.Config, log.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := experiment.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := log.Setup(cfg.Runtime.LogLevel, cfg.Runtime.Pretty)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
