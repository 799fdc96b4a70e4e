package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/semantic"
	"github.com/spf13/cobra"
)

var reindexNoProgress bool

func init() {
	reindexCmd.Flags().BoolVar(&reindexNoProgress, "no-progress", false, "Suppress progress output")
	rootCmd.AddCommand(reindexCmd)
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Re-embed every chunk with the configured embedding model",
	Long: `Re-embed every stored chunk with the configured embedding model.

Needed after changing embedding_model: searching a collection built with a
different model is refused because the distances would be meaningless.
No PDF is read again; the stored chunk text is reused.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

// ReindexResult is the response for the reindex command.
type ReindexResult struct {
	Status          string  `json:"status"`
	PapersIndexed   int     `json:"papers_indexed"`
	ChunksIndexed   int     `json:"chunks_indexed"`
	Model           string  `json:"model"`
	DurationSeconds float64 `json:"duration_seconds"`
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lib := mustOpenLibrary()
	defer lib.Close()
	mustValidateOllama(ctx, lib, "")

	builder := semantic.NewBuilder(lib.index)
	showProgress := humanOutput && !reindexNoProgress
	if showProgress {
		builder.SetProgressReporter(semantic.ProgressFunc(printProgress))
		fmt.Fprintf(os.Stderr, "Re-embedding chunks with %s...\n", lib.provider.ModelName())
	}

	stats, err := builder.Rebuild(ctx)
	if showProgress {
		clearProgress()
	}
	if err != nil {
		exitWithError(exitCodeFor(err), "reindexing: %v", err)
	}

	if humanOutput {
		fmt.Printf("Reindex complete:\n")
		fmt.Printf("  Papers: %d\n", stats.PapersIndexed)
		fmt.Printf("  Chunks: %d\n", stats.ChunksIndexed)
		fmt.Printf("  Model: %s\n", stats.Model)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		return nil
	}
	return outputJSON(ReindexResult{
		Status:          "complete",
		PapersIndexed:   stats.PapersIndexed,
		ChunksIndexed:   stats.ChunksIndexed,
		Model:           stats.Model,
		DurationSeconds: stats.Duration.Seconds(),
	})
}
