// Package cmd implements the profilescout command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "profilescout",
	Short: "Crawl public profile search results and extract qualifying profiles",
	Long: `profilescout walks a paginated people search, renders each result with a
headless browser when needed, and emits structured records for profiles whose
education history matches the configured country and field keywords.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file")
}
