package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all papers",
	Long:  `List every paper in the library in the order it was added.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	lib := mustOpenLibrary()
	defer lib.Close()

	papers, err := lib.db.GetAll(context.Background())
	if err != nil {
		exitWithError(ExitDataError, "listing papers: %v", err)
	}

	if humanOutput {
		if len(papers) == 0 {
			fmt.Println("No papers. Add one with 'pdx add <pdf>'.")
			return nil
		}
		for _, p := range papers {
			marker := ""
			if !p.Indexed {
				marker = " (not indexed)"
			}
			fmt.Printf("%s  %s%s\n", p.ID, truncateString(p.Title, ListTitleMaxLen), marker)
		}
		fmt.Printf("\n%d papers\n", len(papers))
		return nil
	}

	return outputJSON(summarize(papers))
}
