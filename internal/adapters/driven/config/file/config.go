// Package file provides file-based configuration for the quarry CLI.
// Configuration is stored as TOML in the quarry config directory.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultCollection = "quarry"
	DefaultQdrantURL  = "http://localhost:6333"
	DefaultProvider   = "ollama"
)

// Config is the full quarry configuration tree.
type Config struct {
	Corpus    CorpusConfig    `toml:"corpus"`
	Backends  BackendsConfig  `toml:"backends"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// CorpusConfig locates and scopes the indexed corpus.
type CorpusConfig struct {
	// Root is the directory to index. Defaults to the working directory.
	Root string `toml:"root"`

	// Extensions restricts the scan to the listed file extensions
	// (with leading dot). Empty means the built-in default set.
	Extensions []string `toml:"extensions"`
}

// BackendsConfig wires the primary and secondary point stores.
type BackendsConfig struct {
	Qdrant QdrantConfig `toml:"qdrant"`
	Local  LocalConfig  `toml:"local"`
}

// QdrantConfig configures the remote primary backend.
type QdrantConfig struct {
	URL        string `toml:"url"`
	APIKey     string `toml:"api_key"`
	Collection string `toml:"collection"`
}

// LocalConfig configures the embedded secondary backend.
type LocalConfig struct {
	// Enabled turns the secondary backend on. When false the hybrid
	// store runs against the primary alone.
	Enabled bool `toml:"enabled"`

	// DataDir holds the local database. Defaults to ~/.quarry/data.
	DataDir string `toml:"data_dir"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates against providers that need one.
	APIKey string `toml:"api_key"`

	// DocModel, CodeModel and RerankModel route embedding requests by
	// content kind. Unset models fall back to the provider defaults.
	DocModel    string `toml:"doc_model"`
	CodeModel   string `toml:"code_model"`
	RerankModel string `toml:"rerank_model"`

	// Dimensions is the embedding vector size (model-dependent).
	Dimensions int `toml:"dimensions"`
}

// RetrievalConfig tunes the hybrid retrieval pipeline.
type RetrievalConfig struct {
	// TopK is the default number of results per search.
	TopK int `toml:"top_k"`

	// RerankTopK caps results after section expansion and reranking.
	RerankTopK int `toml:"rerank_top_k"`

	// BM25Weight and VectorWeight blend the scoring components and
	// must sum to 1.0.
	BM25Weight   float64 `toml:"bm25_weight"`
	VectorWeight float64 `toml:"vector_weight"`
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() Config {
	return Config{
		Backends: BackendsConfig{
			Qdrant: QdrantConfig{
				URL:        DefaultQdrantURL,
				Collection: DefaultCollection,
			},
			Local: LocalConfig{Enabled: true},
		},
		Embedding: EmbeddingConfig{
			Provider: DefaultProvider,
		},
		Retrieval: RetrievalConfig{
			TopK:         5,
			RerankTopK:   10,
			BM25Weight:   0.3,
			VectorWeight: 0.7,
		},
	}
}

// DefaultPath returns the standard config file location,
// ~/.quarry/quarry.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".quarry", "quarry.toml"), nil
}

// Load reads configuration from the TOML file at path. A missing file
// yields the defaults; values present in the file override them.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the TOML file at path, creating the
// parent directory if needed.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	// Write with restricted permissions; the file may hold API keys.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks the configuration for inconsistent values.
func (c Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "openai":
	case "":
		return fmt.Errorf("embedding provider is required")
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("openai provider requires an API key")
	}

	if c.Backends.Qdrant.URL == "" {
		return fmt.Errorf("qdrant URL is required")
	}

	if c.Retrieval.TopK < 0 || c.Retrieval.RerankTopK < 0 {
		return fmt.Errorf("retrieval limits must not be negative")
	}

	sum := c.Retrieval.BM25Weight + c.Retrieval.VectorWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("bm25_weight and vector_weight must sum to 1.0, got %.3f", sum)
	}

	return nil
}
