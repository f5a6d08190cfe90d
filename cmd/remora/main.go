// Remora — remote-controlled execution agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "remora",
	Short: "Remora — remote-controlled execution agent.",
	Long: `Remora registers with one or more control planes and executes the
commands they queue: shell execution, file transfer, and process
inspection, behind a local safety boundary that blocks destructive
commands and protected paths.`,
	RunE:          runAgent, // Default to agent mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(agentCmd, checkCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
