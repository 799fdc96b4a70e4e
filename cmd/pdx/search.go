package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matsen/paperdex/internal/semantic"
	"github.com/spf13/cobra"
)

var searchK int

func init() {
	searchCmd.Flags().IntVarP(&searchK, "k", "k", semantic.DefaultK, "Number of nearest chunks to consider")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find papers by meaning",
	Long: `Find papers whose content is closest in meaning to the query.

The query is embedded and compared with every indexed chunk. The papers owning
the k nearest chunks are returned best first, each paper once, so fewer than k
papers may come back.

Examples:
  pdx search "1-bit transformer quantization"
  pdx search "soil carbon measurement" -k 10 --human`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

// SearchResult is one paper in the search response.
type SearchResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Link       string   `json:"link,omitempty"`
	Summary    string   `json:"summary"`
	Similarity float32  `json:"similarity"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(args[0])
	if query == "" {
		// Nothing to search for
		if humanOutput {
			outputHuman("No query given.\n")
		} else {
			outputJSON([]SearchResult{})
		}
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lib := mustOpenLibrary()
	defer lib.Close()

	results, err := lib.engine().SearchWithScores(ctx, query, searchK)
	if err != nil {
		if code := exitCodeFor(err); code == ExitConfigError {
			exitWithError(code, "%v\n\nRun 'pdx reindex' to re-embed the library with the configured model.", err)
		}
		exitWithError(exitCodeFor(err), "searching: %v", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:         r.Paper.ID,
			Title:      r.Paper.Title,
			Authors:    r.Paper.Authors,
			Link:       r.Paper.Link,
			Summary:    r.Paper.Summary,
			Similarity: r.Similarity,
		}
	}

	if humanOutput {
		if len(out) == 0 {
			fmt.Println("No matching papers.")
			return nil
		}
		for i, r := range out {
			fmt.Printf("%d. [%.2f] %s\n", i+1, r.Similarity, r.ID)
			fmt.Printf("   %s\n", truncateString(r.Title, SearchTitleMaxLen))
			fmt.Printf("   %s\n\n", formatAuthorsShort(r.Authors, 3))
		}
		return nil
	}

	return outputJSON(out)
}
