package main

import (
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report pipeline counters and per-source totals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := env.Pipeline.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(statusWithAdapters{
			StatusReport: report,
			Adapters:     env.Adapters.Describe(),
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
