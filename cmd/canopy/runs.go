package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run history",
}

var runsListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List recorded runs, most recent first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		return cli.ListRuns(cmd.Context(), cmd.OutOrStdout(), cfg, jsonMode)
	},
}

var runsInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Show the report of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonMode, _ := cmd.Flags().GetBool("json")
		return cli.InspectRun(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], jsonMode)
	},
}

var runsRemoveCmd = &cobra.Command{
	Use:     "rm <run-id>...",
	Aliases: []string{"delete"},
	Short:   "Delete recorded runs",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.DeleteRuns(cmd.Context(), cmd.OutOrStdout(), cfg, args...)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd, runsInspectCmd, runsRemoveCmd)
	runsListCmd.Flags().Bool("json", false, "Print runs as JSON")
	runsInspectCmd.Flags().Bool("json", false, "Print the run record as JSON")
}
