// Package embed defines the embedding provider abstraction and its
// implementations: a bridge to Genkit embedders and a deterministic
// hash embedder for tests and offline use.
//
// Provider failures are classified by wrapping the batch package's
// sentinel errors so the executor's retry loop can recognize throttling
// and transient faults.
package embed

import "context"

// Embedder produces embedding vectors for texts. Implementations must
// return one vector per input text, in input order, and should classify
// retryable failures by wrapping batch.ErrThrottled or
// batch.ErrTransient.
type Embedder interface {
	// EmbedBatch embeds texts in a single provider call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}
