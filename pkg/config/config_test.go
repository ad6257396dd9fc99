package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
server:
  addr: ":9090"

log:
  level: "debug"
  format: "json"

llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3.1"
  max_tokens: 1000
  temperature: 0.5

embedding:
  provider: "openai"
  base_url: "http://tei:8081"
  model: "bge-small-en-v1.5"

store:
  provider: "pgvector"
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 384

chunker:
  chunk_size: 500
  chunk_overlap: 100

retrieval:
  k: 5
  score_threshold: 0.5

anonymizer:
  ner_url: "http://localhost:9000/entities"
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "llama3.1", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "openai", config.Embedding.Provider)
	assert.Equal(t, "http://tei:8081", config.Embedding.BaseURL)
	assert.Equal(t, "pgvector", config.Store.Provider)
	assert.Equal(t, "test_chunks", config.Store.TableName)
	assert.Equal(t, 384, config.Store.VectorDim)
	assert.Equal(t, 500, config.Chunker.ChunkSize)
	assert.Equal(t, 5, config.Retrieval.K)
	assert.Equal(t, 0.5, config.Retrieval.ScoreThreshold)
	assert.Equal(t, "http://localhost:9000/entities", config.Anonymizer.NERURL)
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "llama3.2", config.LLM.Model)
	assert.Equal(t, "chromem", config.Store.Provider)
	assert.Equal(t, 800, config.Chunker.ChunkSize)
	assert.Equal(t, 20, config.Chunker.ChunkOverlap)
	assert.Equal(t, 3, config.Retrieval.K)
	assert.Equal(t, 0.6, config.Retrieval.ScoreThreshold)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		errorMessages []string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name: "bad llm settings",
			mutate: func(c *Config) {
				c.LLM.Provider = "banana"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
			},
			errorMessages: []string{
				`llm.provider: unknown provider "banana"`,
				"llm.max_tokens: max_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
			},
		},
		{
			name: "pgvector without connection string",
			mutate: func(c *Config) {
				c.Store.Provider = "pgvector"
				c.Store.URL = ""
				c.Store.VectorDim = -1
			},
			errorMessages: []string{
				"store.url: pgvector store requires a connection string",
				"store.vector_dim: vector_dim must be positive",
			},
		},
		{
			name: "overlap at chunk size",
			mutate: func(c *Config) {
				c.Chunker.ChunkSize = 100
				c.Chunker.ChunkOverlap = 100
			},
			errorMessages: []string{
				"chunker.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
			},
		},
		{
			name: "retrieval out of range",
			mutate: func(c *Config) {
				c.Retrieval.K = 0
				c.Retrieval.ScoreThreshold = 1.5
			},
			errorMessages: []string{
				"retrieval.k: k must be positive",
				"retrieval.score_threshold: score_threshold must be between 0 and 1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := getDefaultConfig()
			require.NoError(t, err)
			tt.mutate(config)

			errs := config.Validate()
			require.Len(t, errs, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errs[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NER_URL", "http://ner:9000/entities")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedding.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "sk-test", config.Embedding.APIKey)
	assert.Equal(t, "http://ner:9000/entities", config.Anonymizer.NERURL)
}

func TestEnvironmentOverrides_OpenAIEmbeddingKeepsBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")

	config := &Config{}
	config.Embedding.Provider = "openai"
	config.Embedding.BaseURL = "http://tei:8081"
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://tei:8081", config.Embedding.BaseURL)
}
