package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(modelsCmd)
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List Ollama models and the ones pdx is configured to use",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

// ModelsResult is the response for the models command.
type ModelsResult struct {
	Available        []string `json:"available"`
	GenerationModel  string   `json:"generation_model"`
	GenerationReady  bool     `json:"generation_ready"`
	EmbeddingModel   string   `json:"embedding_model"`
	EmbeddingReady   bool     `json:"embedding_ready"`
	IndexedWithModel string   `json:"indexed_with_model,omitempty"`
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	lib := mustOpenLibrary()
	defer lib.Close()

	available, err := lib.generator.ListModels(ctx)
	if err != nil {
		exitWithError(ExitDataError, "Ollama is not reachable at %s: %v", lib.cfg.OllamaURL, err)
	}

	result := ModelsResult{
		Available:       available,
		GenerationModel: lib.generator.Model(),
		GenerationReady: containsModel(available, lib.generator.Model()),
		EmbeddingModel:  lib.provider.ModelName(),
		EmbeddingReady:  containsModel(available, lib.provider.ModelName()),
	}

	info, err := lib.vectors.Model(ctx)
	if err != nil {
		exitWithError(ExitDataError, "reading collection model: %v", err)
	}
	if info != nil {
		result.IndexedWithModel = info.Model
	}

	if humanOutput {
		for _, m := range available {
			fmt.Printf("  %s\n", m)
		}
		fmt.Printf("\nGeneration: %s %s\n", result.GenerationModel, readiness(result.GenerationReady))
		fmt.Printf("Embedding:  %s %s\n", result.EmbeddingModel, readiness(result.EmbeddingReady))
		if result.IndexedWithModel != "" && result.IndexedWithModel != result.EmbeddingModel {
			fmt.Printf("\nIndex was built with %s; run 'pdx reindex' before searching.\n", result.IndexedWithModel)
		}
		return nil
	}
	return outputJSON(result)
}

func readiness(ok bool) string {
	if ok {
		return "(available)"
	}
	return "(missing, run 'ollama pull')"
}
