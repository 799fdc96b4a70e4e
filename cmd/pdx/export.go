package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/matsen/paperdex/internal/storage"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(applyCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export all paper metadata as JSONL",
	Long: `Write every paper's metadata to a JSONL file, one paper per line.

The file can be edited and applied back with 'pdx apply'.

Examples:
  pdx export papers.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var applyCmd = &cobra.Command{
	Use:   "apply <path>",
	Short: "Apply metadata edits from an exported JSONL file",
	Long: `Replace the metadata of every paper listed in a JSONL file written by
'pdx export'. Papers are matched by id; ids not in the library are reported
and skipped. Chunks are not touched and no paper is created.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

// ApplyResult is the response for the apply command.
type ApplyResult struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped"`
}

func runExport(cmd *cobra.Command, args []string) error {
	lib := mustOpenLibrary()
	defer lib.Close()

	papers, err := lib.db.GetAll(context.Background())
	if err != nil {
		exitWithError(ExitDataError, "listing papers: %v", err)
	}

	if err := storage.WriteAll(args[0], papers); err != nil {
		exitWithError(ExitDataError, "exporting: %v", err)
	}

	if humanOutput {
		outputHuman("Exported %d papers to %s\n", len(papers), args[0])
		return nil
	}
	return outputJSON(StatusResponse{Status: "exported", Path: args[0], Count: len(papers)})
}

func runApply(cmd *cobra.Command, args []string) error {
	papers, err := readApplyFile(args[0])
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	ctx := context.Background()
	lib := mustOpenLibrary()
	defer lib.Close()

	coord := lib.coordinator()
	result := ApplyResult{Skipped: []string{}}
	for _, p := range papers {
		err := coord.Update(ctx, p.ID, p.Metadata)
		switch {
		case err == nil:
			result.Updated++
		case errors.Is(err, paper.ErrNotFound):
			result.Skipped = append(result.Skipped, p.ID)
		default:
			exitWithError(exitCodeFor(err), "updating %s: %v", p.ID, err)
		}
	}

	if humanOutput {
		outputHuman("Updated %d papers\n", result.Updated)
		for _, id := range result.Skipped {
			fmt.Fprintf(os.Stderr, "skipped unknown id %s\n", id)
		}
		return nil
	}
	return outputJSON(result)
}

// readApplyFile reads an exported JSONL file. Unlike storage.ReadAll, a missing
// file is an error here; an empty one is not.
func readApplyFile(path string) ([]paper.Paper, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	papers, err := storage.ReadAll(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return papers, nil
}
