// Docfindd is the docfind daemon: retrieval-augmented search over council
// meeting documents.
//
// The binary runs in two roles. "serve" starts the HTTP API (chat, session,
// and pipeline job endpoints); "worker" runs the Temporal document pipeline
// worker. "migrate" applies the database schema.
//
// Configuration is loaded from a YAML file plus DOCFIND_* environment
// variables. See internal/config for details.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag shared by every subcommand.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docfindd",
	Short: "docfind daemon",
	Long: `docfindd runs the docfind retrieval service for council meeting documents.

Subcommands:
  serve     Start the HTTP API server
  worker    Run the document pipeline worker
  migrate   Apply the database schema
  version   Show version information`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docfindd\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
