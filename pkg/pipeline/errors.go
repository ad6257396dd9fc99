package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFiles indicates Ingest was called with an empty file set.
	ErrNoFiles = errors.New("no files provided")

	// ErrEmbedding wraps embedding provider failures.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore wraps vector store failures.
	ErrStore = errors.New("store failed")
)

// ExtractionError names the file that failed during ingestion. One bad file
// aborts the whole batch.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed processing %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
