package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/docquery/docquery/pkg/logging"
)

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider"` // ollama or openai
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama or openai (OpenAI-compatible, incl. TEI)
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
}

type StoreConfig struct {
	Provider   string `yaml:"provider"` // chromem or pgvector
	Path       string `yaml:"path"`     // chromem persistence directory
	Collection string `yaml:"collection"`
	URL        string `yaml:"url"` // pgvector connection string
	TableName  string `yaml:"table_name"`
	VectorDim  int    `yaml:"vector_dim"`
}

type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	K              int     `yaml:"k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

type AnonymizerConfig struct {
	NERURL string `yaml:"ner_url"` // optional entity recognizer endpoint
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        logging.Config   `yaml:"log"`
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Store      StoreConfig      `yaml:"store"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Anonymizer AnonymizerConfig `yaml:"anonymizer"`
}

// LoadConfig reads a YAML config file, merges environment overrides and
// applies defaults. With an empty path it tries the default locations and
// falls back to a pure defaults-plus-env config.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docquery/config.yaml"),
			"/etc/docquery/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "llama3.2"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text:latest"
	}
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}

	if config.Store.Provider == "" {
		config.Store.Provider = "chromem"
	}
	if config.Store.Path == "" {
		config.Store.Path = "docquery_vecdb"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "documents"
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 800
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 20
	}

	if config.Retrieval.K == 0 {
		config.Retrieval.K = 3
	}
	if config.Retrieval.ScoreThreshold == 0 {
		config.Retrieval.ScoreThreshold = 0.6
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		if config.Embedding.Provider == "" || config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
		config.Embedding.APIKey = key
	}
	if nerURL := os.Getenv("NER_URL"); nerURL != "" {
		config.Anonymizer.NERURL = nerURL
	}
}
