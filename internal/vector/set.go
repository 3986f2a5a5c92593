// Package vector implements the similarity search engine: cosine
// scoring over per-knowledge sets of pre-embedded chunks, with
// threshold filtering, stable ranking, and an LRU query-embedding
// cache.
//
// The engine is a linear scan by design; it treats embeddings as opaque
// float vectors and never builds an index.
package vector

import "time"

// EmbeddedChunk is one chunk of text with its embedding vector. The
// vector dimensionality is provider-defined and opaque except for
// cosine similarity. Immutable once created.
type EmbeddedChunk struct {
	Content   string         `json:"content"`
	Embedding []float32      `json:"embedding"`
	Metadata  map[string]any `json:"metadata"`
}

// Set groups all embedded chunks of one knowledge item. It is the unit
// of persistence and of search-time loading: (re)indexed wholesale,
// deleted wholesale, never partially mutated.
type Set struct {
	KnowledgeID string          `json:"knowledgeId"`
	Chunks      []EmbeddedChunk `json:"chunks"`
	CreatedAt   time.Time       `json:"timestamp"`
}

// Candidate is a single scored search result. Transient: produced per
// query and discarded after the response is returned.
type Candidate struct {
	Content     string
	Score       float64 // cosine similarity in [-1, 1]
	Metadata    map[string]any
	KnowledgeID string
	ChunkID     string
}
