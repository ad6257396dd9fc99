// Package types declares the collaborator interfaces the pipelines depend
// on. Implementations live in pkg/, fakes live next to the tests.
package types

import (
	"context"

	"github.com/docquery/docquery/internal/models"
)

// Embedder turns texts into fixed-dimension vectors. EmbedDocuments is
// called once per ingest batch; EmbedQuery once per question.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore persists chunk records and answers nearest-neighbor queries.
// Upsert replaces records that share an ID. Query returns hits in the
// store's native ranking order; filter may be nil.
type VectorStore interface {
	Upsert(ctx context.Context, records []models.Record) error
	Query(ctx context.Context, embedding []float32, k int, filter *models.Filter) ([]models.Hit, error)
	Close() error
}

// ChatModel is the chat completion capability of the language model.
type ChatModel interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// PageExtractor splits a PDF file into per-page paragraph units.
type PageExtractor interface {
	Extract(ctx context.Context, path string) ([]models.Page, error)
}

// EntityRecognizer detects named entities for the anonymizer's optional
// second pass. Errors are tolerated by callers; recognition is best-effort.
type EntityRecognizer interface {
	Entities(ctx context.Context, text string) ([]models.Entity, error)
}
