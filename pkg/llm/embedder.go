package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// EmbedderConfig configures the embedding model.
type EmbedderConfig struct {
	Provider string // "ollama" (default) or "openai" (OpenAI-compatible, incl. TEI)
	Model    string
	BaseURL  string
	APIKey   string
}

// embeddingClient is satisfied by both ollama.LLM and openai.LLM.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder computes embeddings through a langchaingo model. Build it once
// in the composition root and share it; model construction is the
// expensive part.
type Embedder struct {
	config EmbedderConfig
	client embeddingClient
}

// NewEmbedder creates an Embedder for the configured provider.
func NewEmbedder(config EmbedderConfig) (*Embedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}

	var (
		client embeddingClient
		err    error
	)
	switch config.Provider {
	case "", "ollama":
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		client, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case "openai":
		opts := []openai.Option{
			openai.WithEmbeddingModel(config.Model),
			openai.WithToken(config.APIKey),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &Embedder{config: config, client: client}, nil
}

// EmbedDocuments implements types.Embedder with one provider call for the
// whole batch.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	embeddings, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding generation failed: got %d vectors for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// EmbedQuery implements types.Embedder.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("embedding generation failed: empty result")
	}
	return embeddings[0], nil
}
