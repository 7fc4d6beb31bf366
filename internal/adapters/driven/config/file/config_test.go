package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultQdrantURL, cfg.Backends.Qdrant.URL)
	assert.Equal(t, DefaultCollection, cfg.Backends.Qdrant.Collection)
	assert.Equal(t, DefaultProvider, cfg.Embedding.Provider)
	assert.True(t, cfg.Backends.Local.Enabled)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 10, cfg.Retrieval.RerankTopK)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[backends.qdrant]
url = "https://qdrant.example.com:6333"
collection = "docs"

[backends.local]
enabled = false

[embedding]
provider = "openai"
api_key = "sk-test"
doc_model = "text-embedding-3-large"

[retrieval]
top_k = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://qdrant.example.com:6333", cfg.Backends.Qdrant.URL)
	assert.Equal(t, "docs", cfg.Backends.Qdrant.Collection)
	assert.False(t, cfg.Backends.Local.Enabled)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedding.DocModel)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Untouched sections keep defaults.
	assert.Equal(t, 10, cfg.Retrieval.RerankTopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.VectorWeight, 1e-9)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[embedding]
provider = "openai"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Corpus.Root = "/srv/docs"
	cfg.Embedding.DocModel = "nomic-embed-text"
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateWeights(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Retrieval.BM25Weight = 0.5
	cfg.Retrieval.VectorWeight = 0.7
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "bedrock"
	assert.Error(t, cfg.Validate())
}
