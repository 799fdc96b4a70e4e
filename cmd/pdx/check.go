package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matsen/paperdex/internal/ingest"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(repairCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the metadata store and the chunk index agree",
	Long: `Compare the metadata store with the chunk index and report:

  unindexed       papers whose ingestion never completed
  missing_chunks  papers marked indexed that have no chunks
  orphan_chunks   chunks whose paper no longer exists

Nothing is modified; run 'pdx repair' to fix what is found.
Exits with code 6 if issues are found.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Remove inconsistent papers and orphan chunks",
	Long: `Run the same comparison as 'pdx check', then delete orphan chunks and
remove unindexed or chunkless papers from both stores so they can be added again.`,
	Args: cobra.NoArgs,
	RunE: runRepair,
}

// CheckResult is the response for the check command.
type CheckResult struct {
	Status string         `json:"status"`
	Report *ingest.Report `json:"report"`
}

// RepairResult is the response for the repair command.
type RepairResult struct {
	Status   string                 `json:"status"`
	Report   *ingest.Report         `json:"report"`
	Repaired *ingest.ReconcileStats `json:"repaired"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	lib := mustOpenLibrary()
	defer lib.Close()

	report, err := lib.coordinator().Audit(context.Background())
	if err != nil {
		exitWithError(exitCodeFor(err), "checking stores: %v", err)
	}

	status := "ok"
	if !report.Clean() {
		status = "issues_found"
	}

	if humanOutput {
		printReportHuman(report)
	} else {
		outputJSON(CheckResult{Status: status, Report: report})
	}

	if !report.Clean() {
		lib.Close() // os.Exit skips deferred calls
		os.Exit(ExitAuditIssues)
	}
	return nil
}

func runRepair(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lib := mustOpenLibrary()
	defer lib.Close()

	coord := lib.coordinator()
	report, err := coord.Audit(ctx)
	if err != nil {
		exitWithError(exitCodeFor(err), "checking stores: %v", err)
	}

	stats, err := coord.Reconcile(ctx, report)
	if err != nil {
		exitWithError(exitCodeFor(err), "repairing stores: %v", err)
	}

	if humanOutput {
		printReportHuman(report)
		fmt.Printf("\nRemoved %d paper(s) and %d orphan chunk group(s)\n",
			stats.PapersRemoved, stats.ChunkGroupsRemoved)
		return nil
	}
	return outputJSON(RepairResult{Status: "repaired", Report: report, Repaired: stats})
}

func printReportHuman(report *ingest.Report) {
	if report.Clean() {
		fmt.Println("Stores are consistent.")
		return
	}

	sections := []struct {
		name string
		ids  []string
	}{
		{"Unindexed papers", report.Unindexed},
		{"Papers without chunks", report.MissingChunks},
		{"Orphan chunks (paper ids)", report.OrphanChunks},
	}
	for _, s := range sections {
		if len(s.ids) == 0 {
			continue
		}
		fmt.Printf("%s (%d):\n", s.name, len(s.ids))
		for _, id := range s.ids {
			fmt.Printf("  %s\n", id)
		}
	}
}
