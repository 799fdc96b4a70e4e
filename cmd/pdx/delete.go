package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetYes bool

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm deleting every paper")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(resetCmd)
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete papers and their chunks",
	Long: `Delete papers from the library. Chunks are removed from the index first,
then the metadata. Unknown ids are ignored.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDelete,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every paper",
	Long: `Delete every paper and drop the chunk index.

Asks for confirmation unless --yes is given.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lib := mustOpenLibrary()
	defer lib.Close()

	coord := lib.coordinator()
	for _, id := range args {
		if err := coord.Delete(ctx, id); err != nil {
			exitWithError(exitCodeFor(err), "deleting %s: %v", id, err)
		}
	}

	if humanOutput {
		outputHuman("Deleted %d paper(s)\n", len(args))
		return nil
	}
	return outputJSON(StatusResponse{Status: "deleted", Count: len(args)})
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes && !confirm("Delete every paper and all chunks?") {
		exitWithError(ExitError, "reset cancelled")
	}

	lib := mustOpenLibrary()
	defer lib.Close()

	if err := lib.coordinator().DeleteAll(context.Background()); err != nil {
		exitWithError(exitCodeFor(err), "resetting library: %v", err)
	}

	if humanOutput {
		outputHuman("Library reset\n")
		return nil
	}
	return outputJSON(StatusResponse{Status: "reset"})
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
