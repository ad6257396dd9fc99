// Package app composes the pipeline from configuration. Both binaries
// build their stack here so they cannot drift apart.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/types"
	"github.com/docquery/docquery/pkg/anonymizer"
	"github.com/docquery/docquery/pkg/anonymizer/nerclient"
	"github.com/docquery/docquery/pkg/chunker"
	"github.com/docquery/docquery/pkg/config"
	"github.com/docquery/docquery/pkg/extract"
	"github.com/docquery/docquery/pkg/llm"
	"github.com/docquery/docquery/pkg/pipeline"
	"github.com/docquery/docquery/pkg/store"
)

// Build wires every collaborator from the validated config. The returned
// store is handed back separately so the caller owns its shutdown.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, types.VectorStore, error) {
	ck, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.ChunkOverlap)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}

	chat, err := llm.NewChatEngine(llm.ChatConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	vstore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	var recognizer types.EntityRecognizer
	if cfg.Anonymizer.NERURL != "" {
		recognizer = nerclient.New(cfg.Anonymizer.NERURL)
	}
	anon := anonymizer.New(recognizer, logger)

	pipe := pipeline.New(ck, embedder, vstore, chat, extract.NewPDF(), anon,
		pipeline.Options{
			DefaultK:         cfg.Retrieval.K,
			DefaultThreshold: cfg.Retrieval.ScoreThreshold,
		}, logger)

	return pipe, vstore, nil
}

func buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (types.VectorStore, error) {
	switch cfg.Store.Provider {
	case "chromem":
		return store.NewChromemStore(store.ChromemConfig{
			Path:       cfg.Store.Path,
			Collection: cfg.Store.Collection,
		}, logger)
	case "pgvector":
		return store.NewPgStore(ctx, store.PgConfig{
			ConnString: cfg.Store.URL,
			TableName:  cfg.Store.TableName,
			VectorDim:  cfg.Store.VectorDim,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}
