// Package pipeline orchestrates ingestion and retrieval: documents in,
// chunk records out; questions in, answers with sources out.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
	"github.com/docquery/docquery/internal/types"
	"github.com/docquery/docquery/pkg/chunker"
)

// Pipeline wires the collaborators for both ingestion and retrieval. Build
// one per process and share it across requests.
type Pipeline struct {
	chunker    *chunker.Chunker
	embedder   types.Embedder
	store      types.VectorStore
	chat       types.ChatModel
	extractor  types.PageExtractor
	anonymizer Anonymizer
	logger     *zap.Logger

	defaultK         int
	defaultThreshold float64
}

// Anonymizer redacts sensitive content before it reaches the language
// model. Anonymization is best-effort and never fails.
type Anonymizer interface {
	Anonymize(ctx context.Context, text string) string
}

// Options carries the retrieval defaults applied when a query leaves them
// unset.
type Options struct {
	DefaultK         int
	DefaultThreshold float64
}

// New builds a Pipeline. The extractor may be nil when PDF ingestion is not
// needed; the anonymizer may be nil to pass context through unredacted.
func New(ck *chunker.Chunker, embedder types.Embedder, store types.VectorStore,
	chat types.ChatModel, extractor types.PageExtractor, anon Anonymizer,
	opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultK < 1 {
		opts.DefaultK = 3
	}
	if opts.DefaultThreshold == 0 {
		opts.DefaultThreshold = 0.6
	}
	return &Pipeline{
		chunker:          ck,
		embedder:         embedder,
		store:            store,
		chat:             chat,
		extractor:        extractor,
		anonymizer:       anon,
		logger:           logger,
		defaultK:         opts.DefaultK,
		defaultThreshold: opts.DefaultThreshold,
	}
}

// Ingest chunks every file, embeds the whole batch with one provider call
// and persists it with one store call. A failure at any stage aborts the
// batch: extraction errors name the file, embedding and store errors wrap
// the matching sentinel.
func (p *Pipeline) Ingest(ctx context.Context, files []models.File) (models.IngestSummary, error) {
	var summary models.IngestSummary

	if len(files) == 0 {
		return summary, ErrNoFiles
	}

	var chunks []models.Chunk
	totalTokens := 0
	now := time.Now().UTC().Format(time.RFC3339)

	for _, f := range files {
		fileChunks, err := p.chunkFile(ctx, f, now)
		if err != nil {
			p.logger.Error("file processing failed",
				zap.String("file", f.Name), zap.Error(err))
			return summary, &ExtractionError{File: f.Name, Err: err}
		}
		for _, c := range fileChunks {
			totalTokens += chunker.ApproxTokens(c.Content)
		}
		chunks = append(chunks, fileChunks...)
	}

	if len(chunks) == 0 {
		p.logger.Info("ingest produced no chunks", zap.Int("files", len(files)))
		summary.ChunkIDs = []string{}
		return summary, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Error("embedding generation failed", zap.Error(err))
		return summary, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	records := make([]models.Record, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		records[i] = models.Record{Chunk: c, Embedding: embeddings[i]}
		ids[i] = c.ID
	}

	if err := p.store.Upsert(ctx, records); err != nil {
		p.logger.Error("store upsert failed", zap.Error(err))
		return summary, fmt.Errorf("%w: %v", ErrStore, err)
	}

	summary = models.IngestSummary{
		InsertedChunks:    len(chunks),
		TotalTokensApprox: totalTokens,
		VectorDim:         len(embeddings[0]),
		ChunkIDs:          ids,
	}
	p.logger.Info("ingest complete",
		zap.Int("files", len(files)),
		zap.Int("chunks", summary.InsertedChunks),
		zap.Int("vector_dim", summary.VectorDim))
	return summary, nil
}

// chunkFile turns one file into chunks. PDFs keep their extracted
// paragraphs as chunks, indexed per page; everything else is treated as
// UTF-8 text and split by the chunker, indexed per file.
func (p *Pipeline) chunkFile(ctx context.Context, f models.File, dateAdded string) ([]models.Chunk, error) {
	if strings.EqualFold(filepath.Ext(f.Name), ".pdf") {
		return p.chunkPDF(ctx, f, dateAdded)
	}

	text := sanitizeUTF8(string(f.Data))
	var chunks []models.Chunk
	for i, content := range p.chunker.Split(text) {
		chunks = append(chunks, models.Chunk{
			ID:         chunker.ChunkID(f.Name, 0, i),
			Content:    content,
			Source:     f.Name,
			PageNumber: 0,
			ChunkIndex: i,
			DateAdded:  dateAdded,
		})
	}
	return chunks, nil
}

func (p *Pipeline) chunkPDF(ctx context.Context, f models.File, dateAdded string) ([]models.Chunk, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("pdf extraction is not configured")
	}

	tmp, err := os.CreateTemp("", "ingest-*.pdf")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	units, err := p.extractor.Extract(ctx, tmp.Name())
	if err != nil {
		return nil, err
	}

	var chunks []models.Chunk
	pageIndex := map[int]int{}
	for _, unit := range units {
		idx := pageIndex[unit.Number]
		pageIndex[unit.Number] = idx + 1
		chunks = append(chunks, models.Chunk{
			ID:         chunker.ChunkID(f.Name, unit.Number, idx),
			Content:    sanitizeUTF8(unit.Text),
			Source:     f.Name,
			PageNumber: unit.Number,
			ChunkIndex: idx,
			DateAdded:  dateAdded,
		})
	}
	return chunks, nil
}

// sanitizeUTF8 drops invalid byte sequences so the store and the embedding
// provider only ever see valid UTF-8.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
