// Lexd ingests color-annotated legal documents and answers questions
// about them through iterative retrieval over a vector store.
//
// The extractor drops one JSON file per document (full text, color spans,
// optional entity candidates); lexd classifies the annotations, merges the
// entity candidates, chunks the text with annotation metadata, and embeds
// the chunks. Queries run a bounded retrieval loop with intent-derived
// metadata filters and optional LLM gap analysis and answer synthesis.
//
// Usage:
//
//	# Start the HTTP daemon
//	lexd serve
//
//	# Ingest a directory of extractor documents
//	lexd ingest ./extracted
//
//	# Ask a question from the command line
//	lexd query "What is the purchase price?"
//
// Configuration loads from ~/.config/lexd/config.yaml, overridden by
// LEXD_* environment variables. See internal/config for details.
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

// configPath is the --config flag value; empty uses the default path.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lexd",
	Short: "Color-annotation aware retrieval over legal documents",
	Long: `lexd turns color-annotated legal documents into a queryable corpus.

Annotated entities (amounts, parties, dates, ...) become chunk metadata in
the vector store, so retrieval can filter on what a human highlighted
rather than on text alone.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/lexd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lexd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
