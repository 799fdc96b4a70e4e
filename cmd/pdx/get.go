package main

import (
	"context"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a paper's metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	lib := mustOpenLibrary()
	defer lib.Close()

	p, err := lib.db.GetByID(context.Background(), args[0])
	if err != nil {
		exitWithError(ExitDataError, "getting paper: %v", err)
	}
	if p == nil {
		exitWithError(ExitNotFound, "paper not found: %s", args[0])
	}

	if humanOutput {
		printPaperHuman(*p)
		return nil
	}
	return outputJSON(p)
}
