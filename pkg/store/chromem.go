package store

import (
	"context"
	"fmt"
	"os"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
)

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means in-memory
	// only, which is what the tests use.
	Path       string
	Collection string
	Compress   bool
}

func (c *ChromemConfig) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "docquery"
	}
}

// ChromemStore keeps chunks in a chromem-go collection. All embeddings are
// supplied by the caller; the collection's own embedding function is a stub
// that always errors so an accidental text-only add fails loudly instead of
// silently embedding with the wrong model.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewChromemStore opens (or creates) the collection under config.Path.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()

	var (
		db  *chromem.DB
		err error
	)
	if config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(config.Path, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating directory %s: %v", ErrInvalidConfig, config.Path, err)
		}
		db, err = chromem.NewPersistentDB(config.Path, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem DB: %w", err)
		}
	}

	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", config.Path),
		zap.String("collection", config.Collection))

	return &ChromemStore{db: db, collection: collection, logger: logger}, nil
}

func rejectEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("store does not embed; records must carry embeddings")
}

// Upsert implements types.VectorStore. chromem's AddDocuments replaces
// documents that share an ID, so re-adding is an update.
func (s *ChromemStore) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		metadata := map[string]string{
			"source":      rec.Chunk.Source,
			"chunk_index": strconv.Itoa(rec.Chunk.ChunkIndex),
			"date_added":  rec.Chunk.DateAdded,
		}
		if rec.Chunk.PageNumber > 0 {
			metadata["page_number"] = strconv.Itoa(rec.Chunk.PageNumber)
		}
		docs = append(docs, chromem.Document{
			ID:        rec.Chunk.ID,
			Content:   rec.Chunk.Content,
			Embedding: rec.Embedding,
			Metadata:  metadata,
		})
	}

	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Query implements types.VectorStore. chromem reports cosine similarity;
// hits carry it converted to distance so both backends speak the same unit.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int, filter *models.Filter) ([]models.Hit, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if k < 1 {
		return nil, nil
	}

	var where map[string]string
	if filter != nil {
		if filter.Source != "" {
			where = map[string]string{"source": filter.Source}
		} else if filter.PageNumber > 0 {
			where = map[string]string{"page_number": strconv.Itoa(filter.PageNumber)}
		}
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	hits := make([]models.Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, models.Hit{
			Chunk: models.Chunk{
				ID:         res.ID,
				Content:    res.Content,
				Source:     res.Metadata["source"],
				PageNumber: atoiOrZero(res.Metadata["page_number"]),
				ChunkIndex: atoiOrZero(res.Metadata["chunk_index"]),
				DateAdded:  res.Metadata["date_added"],
			},
			Distance: 1 - float64(res.Similarity),
		})
	}
	return hits, nil
}

// Close implements types.VectorStore. chromem persists on every write, so
// there is nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
