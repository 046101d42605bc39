package main

import (
	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [project]",
	Short: "List the tasks of the workspace",
	Long:  `Lists tasks with their kind, group and description. Tasks without a group are shown with --all.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		jsonMode, _ := cmd.Flags().GetBool("json")
		opts := cli.TasksOptions{Config: cfg, All: all, JSON: jsonMode}
		if len(args) > 0 {
			opts.Project = args[0]
		}
		return cli.ListTasks(cmd.OutOrStdout(), opts)
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().BoolP("all", "a", false, "Include tasks without a group")
	tasksCmd.Flags().Bool("json", false, "Print tasks as JSON")
}
