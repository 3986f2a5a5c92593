package embed

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/finchley/ragkit/internal/batch"
)

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface
// and classifies provider failures for the batch executor.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// FromGenkit wraps a Genkit embedder.
func FromGenkit(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// EmbedBatch embeds all texts in one request.
func (g *GenkitEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	docs := make([]*ai.Document, len(texts))
	for i, text := range texts {
		docs[i] = ai.DocumentFromText(text, nil)
	}

	resp, err := g.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		out[i] = emb.Embedding
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (g *GenkitEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// classify maps provider errors onto the executor's retry sentinels.
// Rate-limit signals become ErrThrottled, server-side faults become
// ErrTransient, everything else passes through as terminal.
func classify(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", batch.ErrThrottled, err)
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "internal error"),
		strings.Contains(msg, "deadline exceeded"):
		return fmt.Errorf("%w: %v", batch.ErrTransient, err)
	default:
		return err
	}
}
