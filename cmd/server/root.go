package main

import (
	"github.com/spf13/cobra"

	"warish/internal/platform/config"
)

func newRootCmd() *cobra.Command {
	var envFiles []string
	cmd := &cobra.Command{
		Use:          "warish",
		Short:        "Inheritance-certificate application workflow service",
		SilenceUsage: true,
		// Configuration is loaded exactly once, before any subcommand runs.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			_, err := config.Init(envFiles...)
			return err
		},
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", config.DefaultEnvFiles,
		"dotenv files to load before reading the environment; missing files are skipped")

	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newTokenCmd())
	return cmd
}
