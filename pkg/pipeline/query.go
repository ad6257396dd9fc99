package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/docquery/docquery/internal/models"
)

// NoContextAnswer is returned when retrieval yields no candidates at all.
const NoContextAnswer = "No relevant context found."

const promptTemplate = "You are an assistant for question-answering. " +
	"Use the retrieved context to answer concisely (<= 3 sentences). " +
	"If the answer is not in the context, say 'I don't know'.\n\n" +
	"Context:\n%s\n\nQuestion:\n%s"

const snippetLimit = 400

// Query answers one question. Embedding and store failures abort the call;
// an LLM failure degrades to an answer string describing it, with the
// sources intact. The degradation ladder is: filtered store query, then one
// unfiltered retry, then threshold, then first-k fallback — each step
// logged when taken.
func (p *Pipeline) Query(ctx context.Context, req models.QueryRequest) (models.QueryResponse, error) {
	var resp models.QueryResponse

	if strings.TrimSpace(req.Question) == "" {
		return resp, fmt.Errorf("question is required")
	}

	k := req.K
	if k < 1 {
		k = p.defaultK
	}
	threshold := p.defaultThreshold
	if req.ScoreThreshold != nil {
		threshold = *req.ScoreThreshold
	}

	embedding, err := p.embedder.EmbedQuery(ctx, req.Question)
	if err != nil {
		p.logger.Error("query embedding failed", zap.Error(err))
		return resp, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	hits, err := p.retrieve(ctx, embedding, k, req.Filter)
	if err != nil {
		return resp, err
	}

	candidates := p.postFilter(hits, req.Filter)

	final := thresholdCandidates(candidates, threshold)
	if len(final) == 0 && len(candidates) > 0 {
		p.logger.Info("no candidates met threshold, falling back to top results",
			zap.Float64("threshold", threshold), zap.Int("candidates", len(candidates)))
		if len(candidates) > k {
			candidates = candidates[:k]
		}
		final = candidates
	}

	if len(final) == 0 {
		return models.QueryResponse{Answer: NoContextAnswer, Sources: []models.SourceItem{}}, nil
	}

	answer := p.synthesize(ctx, req.Question, final)

	sources := make([]models.SourceItem, len(final))
	for i, c := range final {
		sources[i] = models.SourceItem{
			ChunkID:    c.hit.Chunk.ID,
			Source:     c.hit.Chunk.Source,
			PageNumber: c.hit.Chunk.PageNumber,
			DateAdded:  c.hit.Chunk.DateAdded,
			Similarity: math.Round(c.similarity*10000) / 10000,
			Snippet:    snippet(c.hit.Chunk.Content),
		}
	}

	return models.QueryResponse{Answer: answer, Sources: sources}, nil
}

// retrieve runs the nearest-neighbor search. With any filter requested it
// over-fetches 3x k to leave margin for post-filtering; a store failure
// triggers one unfiltered retry at k before giving up.
func (p *Pipeline) retrieve(ctx context.Context, embedding []float32, k int, filter *models.QueryFilter) ([]models.Hit, error) {
	n := k
	if filter != nil {
		n = k * 3
	}

	hits, err := p.store.Query(ctx, embedding, n, nativeFilter(filter))
	if err == nil {
		return hits, nil
	}
	p.logger.Warn("store query with filter failed, retrying without filter", zap.Error(err))

	hits, err = p.store.Query(ctx, embedding, k, nil)
	if err != nil {
		p.logger.Error("store query failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return hits, nil
}

// nativeFilter maps the request filter onto the equality filter the store
// understands: source if given, else an exact single-page match. Page
// ranges stay in-process.
func nativeFilter(filter *models.QueryFilter) *models.Filter {
	if filter == nil {
		return nil
	}
	if filter.Source != "" {
		return &models.Filter{Source: filter.Source}
	}
	if filter.MinPage > 0 && filter.MinPage == filter.MaxPage {
		return &models.Filter{PageNumber: filter.MinPage}
	}
	return nil
}

type candidate struct {
	hit        models.Hit
	similarity float64
}

// postFilter applies the page-range bounds in-process and converts distance
// to similarity. Chunks without a page number pass the range checks;
// malformed distances count as maximally distant.
func (p *Pipeline) postFilter(hits []models.Hit, filter *models.QueryFilter) []candidate {
	candidates := make([]candidate, 0, len(hits))
	for _, hit := range hits {
		if filter != nil && hit.Chunk.PageNumber > 0 {
			if filter.MinPage > 0 && hit.Chunk.PageNumber < filter.MinPage {
				continue
			}
			if filter.MaxPage > 0 && hit.Chunk.PageNumber > filter.MaxPage {
				continue
			}
		}
		dist := hit.Distance
		if math.IsNaN(dist) || math.IsInf(dist, 0) {
			dist = 1.0
		}
		candidates = append(candidates, candidate{hit: hit, similarity: 1.0 - dist})
	}
	return candidates
}

func thresholdCandidates(candidates []candidate, threshold float64) []candidate {
	var kept []candidate
	for _, c := range candidates {
		if c.similarity >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// synthesize anonymizes the ranked context, assembles the prompt and asks
// the model. The model failing is not an error here: the answer text
// carries the failure instead.
func (p *Pipeline) synthesize(ctx context.Context, question string, final []candidate) string {
	contexts := make([]string, len(final))
	for i, c := range final {
		contexts[i] = p.anonymize(ctx, c.hit.Chunk.Content)
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(contexts, "\n\n"), question)

	answer, err := p.chat.Chat(ctx, prompt)
	if err != nil {
		p.logger.Error("LLM call failed", zap.Error(err))
		return fmt.Sprintf("LLM call failed: %v", err)
	}
	return answer
}

func (p *Pipeline) anonymize(ctx context.Context, text string) string {
	if p.anonymizer == nil {
		return text
	}
	return p.anonymizer.Anonymize(ctx, text)
}

// snippet cuts at snippetLimit characters, not bytes, so multibyte
// content never gets sliced mid-rune.
func snippet(content string) string {
	if utf8.RuneCountInString(content) <= snippetLimit {
		return content
	}
	runes := []rune(content)
	return string(runes[:snippetLimit]) + "..."
}
