package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/paper"
	"github.com/spf13/cobra"
)

var (
	editFile    string
	editTitle   string
	editSummary string
	editAuthors string
	editLink    string
)

func init() {
	editCmd.Flags().StringVar(&editFile, "file", "", "JSON file with the complete replacement metadata")
	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&editSummary, "summary", "", "New summary")
	editCmd.Flags().StringVar(&editAuthors, "authors", "", "New comma-separated authors")
	editCmd.Flags().StringVar(&editLink, "link", "", "New link")
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a paper's metadata",
	Long: `Edit a paper's metadata.

With --file, the paper's metadata is replaced by the JSON object in the file;
fields missing from the file become empty. Otherwise only the fields given as
flags change. Chunks and embeddings are not touched.

Examples:
  pdx get 3f2a... > meta.json && $EDITOR meta.json && pdx edit 3f2a... --file meta.json
  pdx edit 3f2a... --title "BitNet: Scaling 1-bit Transformers"`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	id := args[0]
	flagsSet := cmd.Flags().Changed("title") || cmd.Flags().Changed("summary") ||
		cmd.Flags().Changed("authors") || cmd.Flags().Changed("link")
	if editFile == "" && !flagsSet {
		exitWithError(ExitError, "nothing to edit: pass --file or at least one field flag")
	}
	if editFile != "" && flagsSet {
		exitWithError(ExitError, "--file cannot be combined with field flags")
	}

	ctx := context.Background()
	lib := mustOpenLibrary()
	defer lib.Close()

	var meta paper.Metadata
	if editFile != "" {
		var err error
		meta, err = readMetadataFile(editFile)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
	} else {
		current, err := lib.db.GetByID(ctx, id)
		if err != nil {
			exitWithError(ExitDataError, "getting paper: %v", err)
		}
		if current == nil {
			exitWithError(ExitNotFound, "paper not found: %s", id)
		}
		meta = current.Metadata
		if cmd.Flags().Changed("title") {
			meta.Title = editTitle
		}
		if cmd.Flags().Changed("summary") {
			meta.Summary = editSummary
		}
		if cmd.Flags().Changed("authors") {
			meta.Authors = splitList(editAuthors)
		}
		if cmd.Flags().Changed("link") {
			meta.Link = editLink
		}
	}

	if err := lib.coordinator().Update(ctx, id, meta); err != nil {
		exitWithError(exitCodeFor(err), "updating paper: %v", err)
	}

	if humanOutput {
		outputHuman("Updated %s\n", id)
		return nil
	}
	return outputJSON(StatusResponse{Status: "updated", ID: id})
}

// readMetadataFile reads a metadata object. A full paper as printed by
// 'pdx get' is accepted; its id and indexed fields are ignored.
func readMetadataFile(path string) (paper.Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return paper.Metadata{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var meta paper.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return paper.Metadata{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return meta, nil
}
