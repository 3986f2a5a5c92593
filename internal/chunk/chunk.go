// Package chunk splits raw text into token-bounded chunks suitable for
// embedding.
//
// Splitting follows an ordered separator hierarchy (paragraph breaks
// first, then lines, sentences, clauses, words, finally raw characters)
// and re-injects a configurable overlap between consecutive chunks so
// retrieval does not lose context at chunk boundaries.
//
// Token counts are estimated from character length; no tokenizer is
// required. The package is pure computation: deterministic, no I/O.
package chunk

import (
	"fmt"
	"math"
)

// Character-per-token ratios. The two constants are intentionally
// different: 3.7 tunes the token estimate used for the short-circuit
// check, 3.5 tunes the token-to-character budget conversion. Changing
// either shifts chunk boundaries for existing corpora.
const (
	charsPerTokenEstimate = 3.7
	charsPerTokenBudget   = 3.5
)

// Defaults used by New when no options are given.
const (
	// DefaultMaxTokens is the per-chunk token budget.
	DefaultMaxTokens = 450

	// DefaultOverlapChars is the desired character overlap between
	// consecutive chunks.
	DefaultOverlapChars = 50
)

// DefaultSeparators is the break-string priority list, most preferred
// first. The trailing empty string is the character-level fallback.
var DefaultSeparators = []string{
	"\n\n", // paragraph break
	"\n",   // line break
	". ", "! ", "? ", // sentence terminators
	"; ", ", ", // clause separators
	" ", // word boundary
	"",  // character fallback
}

// FallbackDocumentID is used for chunk IDs when the source metadata
// carries no documentId.
const FallbackDocumentID = "doc"

// Chunk is a bounded slice of source text with positional metadata.
// Chunks are immutable once produced; ownership passes to whatever
// indexes them.
type Chunk struct {
	Content     string
	Index       int
	TotalChunks int
	Metadata    map[string]any
}

// EstimateTokens returns the estimated token count of text, computed as
// ceil(len(text)/3.7). It is an estimate for budgeting, not a tokenizer.
func EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / charsPerTokenEstimate))
}

// chunkID derives a stable chunk identifier from the source document ID
// and the chunk index.
func chunkID(meta map[string]any, index int) string {
	docID := FallbackDocumentID
	if meta != nil {
		if v, ok := meta["documentId"]; ok {
			docID = fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("%s-%d", docID, index)
}
