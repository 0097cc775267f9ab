package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weapifinder",
	Short: "weapifinder - bulk dotted-API usage scanner for browser extension corpora",
	Long: `weapifinder compiles a set of dotted WebExtension API queries (e.g.
"tabs.create", "storage.local.get") into regex-backed patterns and scans a
corpus of extension directories for usage of any of them.

Extension roots are read one per line from stdin; the path of any extension
whose scripts use at least one of the given queries is written to stdout.`,
}

func init() {
	rootCmd.AddCommand(queryCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
