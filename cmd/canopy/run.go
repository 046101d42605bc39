package main

import (
	"context"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <task>...",
	Short: "Run tasks and everything they depend on",
	Long: `Runs the given tasks. A reference is 'project/path:task'; a bare name such as
'assembleAllDebug' refers to a task of the root project.

The command exits non-zero when any required task fails, naming the first
failing task.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cont, _ := cmd.Flags().GetBool("continue")
		parallel, _ := cmd.Flags().GetInt("parallel")
		terminate, _ := cmd.Flags().GetBool("terminate")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")
		watch, _ := cmd.Flags().GetBool("watch")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Execute(sigCtx, cli.RunOptions{
			Config:  cfg,
			Targets: args,
			Run: domain.RunOptions{
				ContinueOnFailure: cont,
				Parallelism:       parallel,
				TerminateRunning:  terminate,
			},
			JSON:   jsonMode,
			Quiet:  quiet,
			Watch:  watch,
			Stdout: cmd.OutOrStdout(),
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("continue", "k", false, "Keep running independent tasks after a failure")
	runCmd.Flags().IntP("parallel", "j", 0, "Maximum tasks running at once (0 = number of CPUs)")
	runCmd.Flags().Bool("terminate", false, "Terminate running tasks on failure or interrupt instead of waiting")
	runCmd.Flags().Bool("json", false, "Print the run record as JSON")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print progress or the report")
	runCmd.Flags().BoolP("watch", "w", false, "Run again whenever a manifest changes")
}
