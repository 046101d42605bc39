package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of canopy",
	Run: func(cmd *cobra.Command, args []string) {
		if banner, _ := cmd.Flags().GetBool("banner"); banner {
			tui.PrintBanner(cmd.OutOrStdout(), canopy.Version)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "canopy version %s\n", strings.TrimSpace(canopy.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("banner", false, "Print the banner")
}
