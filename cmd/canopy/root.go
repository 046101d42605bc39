package main

import (
	"fmt"
	"os"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/spf13/cobra"
)

// cfg is resolved from flags, CANOPY_* variables and .canopy/config.yaml
// before any subcommand runs.
var cfg cli.Config

var rootCmd = &cobra.Command{
	Use:   "canopy",
	Short: "Canopy runs tasks across a tree of nested projects",
	Long: `Canopy assembles a workspace of nested projects from canopy.yaml files and
runs their tasks as one build. Aggregate tasks at each level depend on the
matching task of every child, so 'canopy run assembleAllDebug' at the root
builds every leaf project.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		v, err := cli.NewViper(dir)
		if err != nil {
			return err
		}
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err = cli.LoadConfig(v, dir)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	def := cli.DefaultConfig()

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.String("dir", def.Dir, "Workspace root directory")
	flags.String("log-level", def.LogLevel, "Log level: debug, info, warn or error")
	flags.String("log-format", def.LogFormat, "Log format: text or json")
	flags.String("loader", def.Loader, "Workspace source: yaml (canopy.yaml files) or loam (markdown documents)")
	flags.String("store", def.Store, "Run history store: memory, file or redis")
	flags.String("runs-dir", "", "Directory of the file store (default <dir>/.canopy/runs)")
	flags.String("redis-addr", def.RedisAddr, "Redis address for the redis store")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database")
	flags.String("redis-prefix", "", "Redis key prefix (default canopy:)")
	flags.Duration("redis-ttl", 0, "Expire run records after this duration (0 keeps them)")
	flags.StringSlice("redact", nil, "Regular expressions masked in failure messages before runs are saved")
}
