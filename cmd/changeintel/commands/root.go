package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moolen-fork/changeintel/internal/logging"
)

// Version is the application version.
const Version = "0.1.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:     "changeintel",
	Short:   "Change Intelligence Service - correlate deployments with incidents",
	Long:    `changeintel ingests change events (deploys, config edits, feature flags), maintains a service dependency graph, and answers blastRadius/correlate/triage queries to speed up incident root-causing.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(serverCmd)
}

// HandleError prints msg and err to stderr and exits non-zero.
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}

func setupLog() error {
	return logging.Initialize(logLevel)
}
