package models

// File is one uploaded or locally read document, identified by filename.
type File struct {
	Name string
	Data []byte
}

// Page is a paragraph-level unit extracted from a PDF page.
type Page struct {
	Number int
	Text   string
}

// Entity is a named entity span reported by a recognizer. Offsets are byte
// offsets into the text the recognizer was given.
type Entity struct {
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Chunk is the atomic retrievable unit. PageNumber 0 means the chunk came
// from non-paginated text. Content is immutable once stored; re-ingesting
// the same document produces new IDs.
type Chunk struct {
	ID         string
	Content    string
	Source     string
	PageNumber int
	ChunkIndex int
	DateAdded  string
}

// Record pairs a chunk with its embedding for storage.
type Record struct {
	Chunk     Chunk
	Embedding []float32
}

// Hit is one nearest-neighbor result. Distance is the store's reported
// dissimilarity (cosine distance, lower is closer).
type Hit struct {
	Chunk    Chunk
	Distance float64
}

// Filter is the equality-only metadata filter passed natively to the store.
// The zero value means no filter. Source takes precedence over PageNumber.
type Filter struct {
	Source     string
	PageNumber int
}

// IngestSummary reports the outcome of one ingest batch. VectorDim is 0
// when the batch produced no chunks.
type IngestSummary struct {
	InsertedChunks    int      `json:"inserted_chunks"`
	TotalTokensApprox int      `json:"total_tokens_approx"`
	VectorDim         int      `json:"vector_dim"`
	ChunkIDs          []string `json:"chunk_ids"`
}

// QueryFilter narrows retrieval by source name and/or an inclusive page
// range. Zero fields are unset.
type QueryFilter struct {
	Source  string `json:"source,omitempty"`
	MinPage int    `json:"min_page,omitempty"`
	MaxPage int    `json:"max_page,omitempty"`
}

// QueryRequest is one question with optional retrieval parameters.
// ScoreThreshold distinguishes "absent" (nil, default 0.6) from an explicit
// zero.
type QueryRequest struct {
	Question       string       `json:"question"`
	K              int          `json:"k,omitempty"`
	ScoreThreshold *float64     `json:"score_threshold,omitempty"`
	Filter         *QueryFilter `json:"filter,omitempty"`
}

// SourceItem is one retrieved chunk as presented to the caller.
type SourceItem struct {
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"`
	PageNumber int     `json:"page_number,omitempty"`
	DateAdded  string  `json:"date_added,omitempty"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}

// QueryResponse carries the synthesized answer and its evidence, in store
// ranking order.
type QueryResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceItem `json:"sources"`
}
