// Package chunker splits raw text into overlapping fixed-size chunks and
// assigns chunk identifiers.
package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Chunker emits character-offset slices of size ChunkSize, advancing by
// ChunkSize-ChunkOverlap each step. It has no awareness of word or sentence
// boundaries; retrieval grain is approximate by design.
type Chunker struct {
	size    int
	overlap int
}

// New returns a Chunker. An overlap at or above the chunk size would stall
// the walk, so it is rejected here rather than looping forever at split
// time.
func New(size, overlap int) (*Chunker, error) {
	if size < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Split returns the ordered chunks of text. Empty text yields no chunks;
// text shorter than the chunk size yields exactly one.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	for start := 0; start < len(text); start += c.size - c.overlap {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
	}
	return chunks
}

// ChunkID produces a unique hex identifier for a chunk. The wall clock is
// mixed into the digest, so re-ingesting identical content yields fresh IDs;
// only uniqueness within a batch is guaranteed. Page 0 marks non-paginated
// text.
func ChunkID(source string, page, index int) string {
	base := fmt.Sprintf("%s|%d|%d|%d", source, page, index, time.Now().UnixNano())
	sum := sha1.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}

// ApproxTokens estimates token count by whitespace splitting, minimum 1.
func ApproxTokens(text string) int {
	n := len(strings.Fields(text))
	if n < 1 {
		return 1
	}
	return n
}
