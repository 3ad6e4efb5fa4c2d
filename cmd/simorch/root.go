package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "simorch",
	Short: "Step-based simulation orchestrator",
	Long: `simorch runs simulation models in lockstep rounds. Models declare
dependencies on each other; every round steps them level by level over a
shared context, with the models of one level running concurrently.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "simorch %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	rootCmd.Version = Version
	rootCmd.AddCommand(runCmd, validateCmd, versionCmd)
}
