// Package main provides the pdx CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/matsen/paperdex/internal/config"
	"github.com/matsen/paperdex/internal/embedding"
	"github.com/matsen/paperdex/internal/generate"
	"github.com/matsen/paperdex/internal/ingest"
	"github.com/matsen/paperdex/internal/paper"
	"github.com/matsen/paperdex/internal/pdf"
	"github.com/matsen/paperdex/internal/retrieval"
	"github.com/matsen/paperdex/internal/semantic"
	"github.com/matsen/paperdex/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	configPath  string
)

// logger is replaced by a development logger when --verbose is set.
var logger = zap.NewNop()

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pdx",
	Short: "Ingest research papers and search them by meaning",
	Long: `pdx ingests PDF papers into a local library and retrieves them by free-text query.

Each paper is summarized by a local language model into structured metadata
(title, summary, datasets, metrics, methods, applications, limitations), and
its text is split into chunks embedded into a vector index. Search embeds the
query, finds the nearest chunks and returns the papers they belong to.

Requires a running Ollama server for generation and embeddings.
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional
		_ = godotenv.Load()

		if verbose {
			l, err := zap.NewDevelopment()
			if err == nil {
				logger = l
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/pdx/config.yml)")
	rootCmd.Version = Version
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	path := configPath
	if path == "" {
		path = config.ConfigPath()
	}

	cfg, err := config.Load(path)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v\n\n%s", err, config.HelpfulConfigMessage())
	}
	return cfg
}

// library bundles the stores and services a command works with.
type library struct {
	cfg       *config.Config
	db        *storage.DB
	vectors   *semantic.Store
	index     *semantic.Index
	provider  *embedding.OllamaProvider
	generator *generate.OllamaGenerator
}

// mustOpenLibrary opens both stores, exits on error.
// The caller is responsible for calling Close() on the returned library.
func mustOpenLibrary() *library {
	cfg := mustLoadConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	db, err := storage.OpenDB(config.MetadataDBPath(cfg.DataDir))
	if err != nil {
		exitWithError(ExitDataError, "opening metadata database: %v", err)
	}

	vectors, err := semantic.OpenStore(config.VectorDBPath(cfg.DataDir), cfg.Collection)
	if err != nil {
		db.Close()
		exitWithError(ExitDataError, "opening vector database: %v", err)
	}
	vectors.SetLogger(logger)

	provider := embedding.NewOllamaProvider(
		embedding.WithBaseURL(cfg.OllamaURL),
		embedding.WithModel(cfg.EmbeddingModel),
		embedding.WithDimensions(cfg.EmbeddingDimensions),
		embedding.WithRateLimit(cfg.RequestsPerSecond),
	)
	generator := generate.NewOllamaGenerator(
		generate.WithBaseURL(cfg.OllamaURL),
		generate.WithModel(cfg.GenerationModel),
		generate.WithRateLimit(cfg.RequestsPerSecond),
	)

	logger.Debug("library opened",
		zap.String("data_dir", cfg.DataDir),
		zap.String("collection", cfg.Collection),
		zap.String("embedding_model", cfg.EmbeddingModel))

	return &library{
		cfg:       cfg,
		db:        db,
		vectors:   vectors,
		index:     semantic.NewIndex(vectors, provider),
		provider:  provider,
		generator: generator,
	}
}

// Close closes both stores.
func (l *library) Close() {
	l.vectors.Close()
	l.db.Close()
}

// coordinator returns an ingestion coordinator over the library's stores.
func (l *library) coordinator() *ingest.Coordinator {
	chunker := pdf.NewChunker(
		pdf.WithChunkSize(l.cfg.ChunkSize),
		pdf.WithChunkOverlap(l.cfg.ChunkOverlap),
	)
	return ingest.New(l.db, l.index, l.generator,
		ingest.WithExtractor(pdf.NewReader(chunker)),
		ingest.WithLogger(logger),
	)
}

// engine returns a retrieval engine over the library's stores.
func (l *library) engine() *retrieval.Engine {
	return retrieval.NewEngine(l.index, l.db, logger)
}

// validationError carries the exit code a failed Ollama check should produce.
type validationError struct {
	code int
	msg  string
}

func (e *validationError) Error() string { return e.msg }

// validateOllama checks that Ollama is running and has the embedding model and,
// when generationModel is non-empty, that generation model too.
func validateOllama(ctx context.Context, l *library, generationModel string) error {
	if err := l.provider.IsAvailable(ctx); err != nil {
		return &validationError{ExitDataError, fmt.Sprintf(
			"Ollama is not reachable at %s\n\nStart Ollama with 'ollama serve' or set %s.",
			l.cfg.OllamaURL, config.EnvOllamaHost)}
	}

	hasModel, err := l.provider.HasModel(ctx)
	if err != nil {
		return &validationError{ExitDataError, fmt.Sprintf("checking model availability: %v", err)}
	}
	if !hasModel {
		return &validationError{ExitConfigError, fmt.Sprintf(
			"embedding model %q not found\n\nRun 'ollama pull %s' to download it.",
			l.provider.ModelName(), l.provider.ModelName())}
	}

	if generationModel == "" {
		return nil
	}
	models, err := l.generator.ListModels(ctx)
	if err != nil {
		return &validationError{ExitDataError, fmt.Sprintf("listing models: %v", err)}
	}
	if !containsModel(models, generationModel) {
		return &validationError{ExitConfigError, fmt.Sprintf(
			"generation model %q not found\n\nRun 'ollama pull %s' to download it.",
			generationModel, generationModel)}
	}
	return nil
}

// mustValidateOllama runs validateOllama and exits on failure.
func mustValidateOllama(ctx context.Context, l *library, generationModel string) {
	if err := validateOllama(ctx, l, generationModel); err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			exitWithError(verr.code, "%s", verr.msg)
		}
		exitWithError(ExitDataError, "%v", err)
	}
}

// exitCodeFor maps an error to the exit code a script can act on.
func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, paper.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, semantic.ErrModelMismatch):
		return ExitConfigError
	case errors.Is(err, context.Canceled):
		return ExitError
	default:
		return ExitDataError
	}
}
