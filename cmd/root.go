// Package cmd implements the pantheon CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "⚡"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "pantheon",
	Short: logo + " pantheon — chat relay for the service bots",
	Long: logo + ` pantheon — orchestration relay bridging the group chat
to the gaia/thoth/chronos service bots`,
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(settingsCmd)
}
