package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
)

// PgConfig holds configuration for the PostgreSQL + pgvector backend.
type PgConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

func (c *PgConfig) applyDefaults() {
	if c.TableName == "" {
		c.TableName = "chunks"
	}
	if c.VectorDim == 0 {
		c.VectorDim = 768 // nomic-embed-text
	}
}

// PgStore keeps chunks in a pgvector table. Cosine distance ordering via
// the <=> operator matches the distances the retrieval layer expects.
type PgStore struct {
	config PgConfig
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStore connects to the database and ensures the extension, table and
// index exist.
func NewPgStore(ctx context.Context, config PgConfig, logger *zap.Logger) (*PgStore, error) {
	if config.ConnString == "" {
		return nil, fmt.Errorf("%w: connection string is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ps := &PgStore{config: config, pool: pool, logger: logger}
	if err := ps.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("pgvector store initialized",
		zap.String("table", config.TableName),
		zap.Int("vector_dim", config.VectorDim))

	return ps, nil
}

func (ps *PgStore) initialize(ctx context.Context) error {
	if _, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			page_number INTEGER,
			chunk_index INTEGER NOT NULL,
			date_added TEXT NOT NULL,
			embedding vector(%d)
		)`, ps.config.TableName, ps.config.VectorDim)
	if _, err := ps.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		ps.config.TableName, ps.config.TableName)
	if _, err := ps.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Upsert implements types.VectorStore. The whole batch runs in one
// transaction, so a failed insert rolls back everything before it.
func (ps *PgStore) Upsert(ctx context.Context, records []models.Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, content, source, page_number, chunk_index, date_added, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			source = EXCLUDED.source,
			page_number = EXCLUDED.page_number,
			chunk_index = EXCLUDED.chunk_index,
			date_added = EXCLUDED.date_added,
			embedding = EXCLUDED.embedding`,
		ps.config.TableName)

	for _, rec := range records {
		var page any
		if rec.Chunk.PageNumber > 0 {
			page = rec.Chunk.PageNumber
		}
		_, err := tx.Exec(ctx, stmt,
			rec.Chunk.ID,
			rec.Chunk.Content,
			rec.Chunk.Source,
			page,
			rec.Chunk.ChunkIndex,
			rec.Chunk.DateAdded,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", rec.Chunk.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Query implements types.VectorStore.
func (ps *PgStore) Query(ctx context.Context, embedding []float32, k int, filter *models.Filter) ([]models.Hit, error) {
	if k < 1 {
		return nil, nil
	}

	query, args := ps.buildQuery(embedding, k, filter)

	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.Hit
	for rows.Next() {
		var (
			hit  models.Hit
			page *int
		)
		err := rows.Scan(
			&hit.Chunk.ID,
			&hit.Chunk.Content,
			&hit.Chunk.Source,
			&page,
			&hit.Chunk.ChunkIndex,
			&hit.Chunk.DateAdded,
			&hit.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if page != nil {
			hit.Chunk.PageNumber = *page
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return hits, nil
}

// buildQuery assembles the nearest-neighbor SQL with the optional equality
// filter. Source wins over PageNumber when both are set.
func (ps *PgStore) buildQuery(embedding []float32, k int, filter *models.Filter) (string, []any) {
	args := []any{pgvector.NewVector(embedding)}
	where := ""
	if filter != nil {
		if filter.Source != "" {
			where = "WHERE source = $2"
			args = append(args, filter.Source)
		} else if filter.PageNumber > 0 {
			where = "WHERE page_number = $2"
			args = append(args, filter.PageNumber)
		}
	}
	args = append(args, k)

	query := fmt.Sprintf(`
		SELECT id, content, source, page_number, chunk_index, date_added,
		       embedding <=> $1 AS distance
		FROM %s
		%s
		ORDER BY distance
		LIMIT $%d`,
		ps.config.TableName, where, len(args))
	return query, args
}

// Close implements types.VectorStore.
func (ps *PgStore) Close() error {
	if ps.pool != nil {
		ps.pool.Close()
	}
	return nil
}
