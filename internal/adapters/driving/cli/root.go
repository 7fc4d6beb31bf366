// Package cli implements the quarry command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/pointstore/qdrant"
	"github.com/custodia-labs/quarry-cli/internal/adapters/driven/pointstore/sqlite"
	"github.com/custodia-labs/quarry-cli/internal/corpus"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driven"
	"github.com/custodia-labs/quarry-cli/internal/core/ports/driving"
	"github.com/custodia-labs/quarry-cli/internal/core/services"
	"github.com/custodia-labs/quarry-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	verbose    bool
	configPath string
)

// Services shared by the commands, constructed lazily by initServices.
var (
	appConfig        file.Config
	storeService     driving.StoreService
	askService       driving.AskService
	indexService     driving.IndexService
	embeddingService driven.EmbeddingService
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Hybrid retrieval and incremental indexing for a documentation corpus",
	Long: `Quarry indexes a corpus of documentation and code into a hybrid vector
store (a remote Qdrant collection plus an optional embedded local copy)
and answers questions against it with intent-aware retrieval, section
expansion, reranking and per-intent answer synthesis.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.quarry/quarry.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initServices builds the service graph from configuration. Idempotent;
// commands that need services call it from their RunE.
func initServices() error {
	if storeService != nil {
		return nil
	}

	path := configPath
	if path == "" {
		var err error
		path, err = file.DefaultPath()
		if err != nil {
			return err
		}
	}

	cfg, err := file.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	appConfig = cfg

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	primary, err := qdrant.New(qdrant.Config{
		URL:        cfg.Backends.Qdrant.URL,
		APIKey:     cfg.Backends.Qdrant.APIKey,
		Collection: cfg.Backends.Qdrant.Collection,
	}, embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("connecting primary backend: %w", err)
	}

	var secondary driven.PointBackend
	if cfg.Backends.Local.Enabled {
		local, err := sqlite.NewBackend(cfg.Backends.Local.DataDir, embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("opening local backend: %w", err)
		}
		secondary = local
	}

	store, err := services.NewHybridStore(primary, secondary, embedder, services.HybridStoreConfig{
		TopK:         cfg.Retrieval.TopK,
		RerankTopK:   cfg.Retrieval.RerankTopK,
		BM25Weight:   cfg.Retrieval.BM25Weight,
		VectorWeight: cfg.Retrieval.VectorWeight,
	})
	if err != nil {
		return fmt.Errorf("building hybrid store: %w", err)
	}

	scanner := corpus.NewScanner(cfg.Corpus.Extensions)

	embeddingService = embedder
	storeService = store
	indexService = services.NewIndexer(store, scanner, embedder)
	askService = services.NewAskPipeline(
		store,
		services.NewQueryAnalyzer(),
		services.NewReranker(embedder),
		services.NewAnswerSynthesizer(),
		services.DefaultAskConfig(),
	)

	return nil
}

func buildEmbedder(cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:     cfg.BaseURL,
			DocModel:    cfg.DocModel,
			CodeModel:   cfg.CodeModel,
			RerankModel: cfg.RerankModel,
			Dimensions:  cfg.Dimensions,
		}), nil
	case "openai":
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.DocModel,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, errors.New("unknown embedding provider: " + cfg.Provider)
	}
}

// corpusRoot resolves the corpus root: an explicit argument wins, then the
// configured root, then the working directory.
func corpusRoot(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if appConfig.Corpus.Root != "" {
		return appConfig.Corpus.Root, nil
	}
	return os.Getwd()
}
