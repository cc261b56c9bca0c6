// Package cmd defines and implements the CLI commands for the scraper
// executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rightmove-scraper",
		Short: "Extracts structured property listings from rendered pages.",
		Long: `rightmove-scraper drives one extraction run: it renders property
pages headlessly, validates and normalizes the extracted records, persists
them to the configured sink, and reports lifecycle events to webhook
subscribers with bounded retry.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
