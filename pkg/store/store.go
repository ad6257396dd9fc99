// Package store provides the vector store backends. ChromemStore is the
// embedded default; PgStore targets PostgreSQL with the pgvector extension.
// Both implement types.VectorStore and take embeddings as given rather than
// computing their own.
package store

import "errors"

var (
	// ErrInvalidConfig indicates a store was constructed with unusable
	// configuration.
	ErrInvalidConfig = errors.New("invalid store config")

	// ErrEmptyBatch indicates Upsert was called with no records.
	ErrEmptyBatch = errors.New("empty record batch")
)
