package embed

import (
	"context"
	"crypto/sha256"
	"math"
)

// HashDimensions is the vector size produced by HashEmbedder.
const HashDimensions = 16

// HashEmbedder is a deterministic embedder that hashes text into a
// fixed small unit vector. Identical texts always produce identical
// vectors, so a query equal to an indexed chunk scores cosine 1.0.
// Used by tests and as an offline provider; it carries no semantic
// meaning.
type HashEmbedder struct{}

// NewHashEmbedder creates a hash embedder.
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// EmbedBatch embeds each text independently.
func (h *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashVector(text)
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (h *HashEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return hashVector(text), nil
}

// hashVector maps text to a normalized HashDimensions-length vector
// derived from its SHA-256 digest.
func hashVector(text string) []float32 {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float32, HashDimensions)
	var norm float64
	for i := 0; i < HashDimensions; i++ {
		// Center around zero so vectors spread over the full sphere.
		v := float64(digest[i]) - 127.5
		vec[i] = float32(v)
		norm += v * v
	}

	norm = math.Sqrt(norm)
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
