package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the workspace for configuration errors",
	Long: `Loads every manifest and compiles the task graph, reporting unknown child
tasks, unresolvable projects, duplicates and alias cycles without running anything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
