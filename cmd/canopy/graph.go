package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [task]...",
	Short: "Export the task graph visualization",
	Long: `Outputs a Mermaid diagram (graph TD) of the task graph, or of the tasks the
given targets would run. With --run, tasks are coloured by the final states of
a recorded run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		runID, _ := cmd.Flags().GetString("run")
		return cli.PrintGraph(cmd.Context(), cmd.OutOrStdout(), cli.GraphOptions{
			Config:  cfg,
			Targets: args,
			RunID:   runID,
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("run", "", "Overlay the states of this run")
}
