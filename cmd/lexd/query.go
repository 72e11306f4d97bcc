package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query \"question\"",
	Short: "Query the ingested documents",
	Long: `Runs one retrieval query against the ingested documents and prints
the answer with its sources. Without a configured LLM the retrieval is
single-pass and only sources are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd.Context(), args[0])
	},
}

func init() {
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the raw JSON response")
}

func runQuery(ctx context.Context, query string) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.engine.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	printAnswer(answer.Answer, answer.Partial, answer.Insufficient)
	if len(answer.Sources) > 0 {
		fmt.Printf("\nSources (%d, intent %s, %d iterations):\n",
			len(answer.Sources), answer.Intent, answer.Iterations)
		for i, src := range answer.Sources {
			title := src.Title
			if title == "" {
				title = src.DocumentID
			}
			fmt.Printf("  %2d. %s (chunk %d, relevance %.2f)\n", i+1, title, src.ChunkIndex, src.Relevance)
			if snippet := strings.TrimSpace(src.Snippet); snippet != "" {
				fmt.Printf("      %s\n", snippet)
			}
		}
	}
	return nil
}

func printAnswer(answer string, partial, insufficient bool) {
	switch {
	case answer == "" && insufficient:
		fmt.Println("No relevant context found for this query.")
	case answer == "":
		fmt.Println("No answer synthesized (LLM disabled); see sources below.")
	case partial:
		fmt.Printf("%s\n\n(partial answer: retrieval hit its iteration bound before the context was complete)\n", answer)
	default:
		fmt.Println(answer)
	}
}
