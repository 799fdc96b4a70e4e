package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/ingest"
	"github.com/matsen/paperdex/internal/semantic"
	"github.com/spf13/cobra"
)

var (
	addModel      string
	addTitle      string
	addAuthors    string
	addLink       string
	addNoProgress bool
)

func init() {
	addCmd.Flags().StringVar(&addModel, "model", "", "Generation model (default from config)")
	addCmd.Flags().StringVar(&addTitle, "title", "", "Use this title instead of the generated one (single file only)")
	addCmd.Flags().StringVar(&addAuthors, "authors", "", "Comma-separated authors (single file only)")
	addCmd.Flags().StringVar(&addLink, "link", "", "Source URL (single file only; default: DOI found in the PDF)")
	addCmd.Flags().BoolVar(&addNoProgress, "no-progress", false, "Suppress progress output")
	rootCmd.AddCommand(addCmd)
}

var addCmd = &cobra.Command{
	Use:   "add <pdf>...",
	Short: "Ingest PDF papers",
	Long: `Ingest one or more PDF papers.

Each file is extracted, summarized into structured metadata by the generation
model, chunked and embedded. Papers are processed one at a time; a failure
affects only that paper. A paper becomes searchable only after all its chunks
are indexed.

Exits with code 5 if some papers failed.

Examples:
  pdx add paper.pdf
  pdx add ~/Downloads/*.pdf
  pdx add bitnet.pdf --authors "Hongyu Wang, Shuming Ma" --link https://arxiv.org/abs/2310.11453`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

// AddResult is one entry of the add command's response.
type AddResult struct {
	Source string `json:"source"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// AddResponse is the response for the add command.
type AddResponse struct {
	Ingested int         `json:"ingested"`
	Failed   int         `json:"failed"`
	Results  []AddResult `json:"results"`
}

func runAdd(cmd *cobra.Command, args []string) error {
	overrides := ingest.Overrides{
		Title:   addTitle,
		Authors: splitList(addAuthors),
		Link:    addLink,
	}
	if len(args) > 1 && (overrides.Title != "" || len(overrides.Authors) > 0 || overrides.Link != "") {
		exitWithError(ExitError, "--title, --authors and --link apply to a single file")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	lib := mustOpenLibrary()
	defer lib.Close()

	model := addModel
	if model == "" {
		model = lib.cfg.GenerationModel
	}
	mustValidateOllama(ctx, lib, model)

	sources := make([]ingest.Source, len(args))
	for i, path := range args {
		sources[i] = ingest.Source{Path: path, Model: model, Overrides: overrides}
	}

	var progress semantic.ProgressReporter
	showProgress := humanOutput && !addNoProgress && len(sources) > 1
	if showProgress {
		progress = semantic.ProgressFunc(printProgress)
	}

	results := lib.coordinator().IngestBatch(ctx, sources, progress)
	if showProgress {
		clearProgress()
	}

	resp := AddResponse{Results: make([]AddResult, len(results))}
	for i, r := range results {
		resp.Results[i] = AddResult{Source: r.Source, ID: r.PaperID}
		if r.Err != nil {
			resp.Failed++
			resp.Results[i].Error = r.Err.Error()
			var ierr *ingest.Error
			if errors.As(r.Err, &ierr) {
				resp.Results[i].Stage = string(ierr.Stage)
			}
		} else {
			resp.Ingested++
		}
	}

	if humanOutput {
		for _, r := range resp.Results {
			if r.Error != "" {
				fmt.Fprintf(os.Stderr, "FAILED %s: %s\n", r.Source, r.Error)
			} else {
				fmt.Printf("Added %s as %s\n", r.Source, r.ID)
			}
		}
		fmt.Printf("\n%d ingested, %d failed\n", resp.Ingested, resp.Failed)
	} else {
		outputJSON(resp)
	}

	if resp.Failed > 0 {
		lib.Close() // os.Exit skips deferred calls
		os.Exit(ExitPartialIngest)
	}
	return nil
}
