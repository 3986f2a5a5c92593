package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// ErrNoEmbedder indicates a search was attempted without a query
// embedder and without a caller-supplied query vector.
var ErrNoEmbedder = errors.New("search engine has no query embedder")

// QueryEmbedder computes the embedding for a query text.
type QueryEmbedder func(ctx context.Context, text string) ([]float32, error)

// DefaultTopK is the default maximum number of search results.
const DefaultTopK = 5

// Engine scores query embeddings against knowledge vector sets.
// Safe for concurrent use.
type Engine struct {
	embed  QueryEmbedder
	cache  *queryCache
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCacheSize sets the query-embedding cache capacity.
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		e.cache = newQueryCache(n)
	}
}

// NewEngine creates a search engine. embed may be nil if every search
// supplies its own query vector; logger nil means slog.Default().
func NewEngine(embed QueryEmbedder, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		embed:  embed,
		cache:  newQueryCache(DefaultCacheSize),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// searchConfig holds per-search settings, built from SearchOptions.
type searchConfig struct {
	topK        int
	threshold   float64
	queryVector []float32
	knowledgeIn map[string]struct{} // pre-score allow-list, nil = all
	documentID  string              // post-score restriction, "" = none
}

// SearchOption configures a single search call.
type SearchOption func(*searchConfig)

// WithTopK caps the number of results. Default DefaultTopK.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithThreshold sets the minimum (inclusive) similarity for a candidate
// to be kept. Default 0.
func WithThreshold(t float64) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

// WithQueryVector supplies a precomputed query embedding, bypassing the
// embedder and the cache.
func WithQueryVector(v []float32) SearchOption {
	return func(c *searchConfig) {
		c.queryVector = v
	}
}

// WithKnowledgeFilter restricts scoring to sets whose knowledge ID is
// in ids. Applied before scoring; the scoring loop itself carries no
// filter policy.
func WithKnowledgeFilter(ids ...string) SearchOption {
	return func(c *searchConfig) {
		c.knowledgeIn = make(map[string]struct{}, len(ids))
		for _, id := range ids {
			c.knowledgeIn[id] = struct{}{}
		}
	}
}

// WithDocumentFilter keeps only candidates whose chunk metadata carries
// the given documentId. Applied after scoring.
func WithDocumentFilter(documentID string) SearchOption {
	return func(c *searchConfig) {
		c.documentID = documentID
	}
}

// Response carries ranked candidates plus scan diagnostics. Scanned
// counts every chunk visited, including ones skipped for missing or
// malformed embeddings.
type Response struct {
	Results    []Candidate
	SearchTime time.Duration
	Scanned    int
}

// Search scores query against every chunk of every eligible set,
// keeps candidates at or above the threshold, and returns them sorted
// by descending score (ties keep encounter order), truncated to topK.
//
// Chunks with a missing or empty embedding are skipped and counted in
// diagnostics. A dimension mismatch between the query and a candidate
// aborts the whole call.
func (e *Engine) Search(ctx context.Context, query string, sets []Set, opts ...SearchOption) (*Response, error) {
	cfg := &searchConfig{topK: DefaultTopK}
	for _, opt := range opts {
		opt(cfg)
	}

	start := time.Now()

	queryVec, err := e.queryEmbedding(ctx, query, cfg)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	scanned := 0

	for _, set := range sets {
		if cfg.knowledgeIn != nil {
			if _, ok := cfg.knowledgeIn[set.KnowledgeID]; !ok {
				continue
			}
		}

		for _, ch := range set.Chunks {
			scanned++
			if len(ch.Embedding) == 0 {
				continue
			}

			score, err := Cosine(queryVec, ch.Embedding)
			if err != nil {
				return nil, fmt.Errorf("scoring chunk in knowledge %q: %w", set.KnowledgeID, err)
			}
			if score < cfg.threshold {
				continue
			}

			candidates = append(candidates, Candidate{
				Content:     ch.Content,
				Score:       score,
				Metadata:    ch.Metadata,
				KnowledgeID: set.KnowledgeID,
				ChunkID:     chunkIDFromMetadata(ch.Metadata),
			})
		}
	}

	if cfg.documentID != "" {
		candidates = filterByDocument(candidates, cfg.documentID)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > cfg.topK {
		candidates = candidates[:cfg.topK]
	}

	elapsed := time.Since(start)
	e.logger.Debug("search complete",
		"scanned", scanned,
		"results", len(candidates),
		"elapsed", elapsed)

	return &Response{
		Results:    candidates,
		SearchTime: elapsed,
		Scanned:    scanned,
	}, nil
}

// queryEmbedding resolves the query vector: caller-supplied, cached, or
// freshly computed and cached.
func (e *Engine) queryEmbedding(ctx context.Context, query string, cfg *searchConfig) ([]float32, error) {
	if cfg.queryVector != nil {
		return cfg.queryVector, nil
	}
	if e.embed == nil {
		return nil, ErrNoEmbedder
	}

	if vec, ok := e.cache.get(query); ok {
		return vec, nil
	}

	vec, err := e.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	e.cache.put(query, vec)
	return vec, nil
}

func chunkIDFromMetadata(meta map[string]any) string {
	if meta == nil {
		return ""
	}
	if id, ok := meta["id"].(string); ok {
		return id
	}
	return ""
}

func filterByDocument(candidates []Candidate, documentID string) []Candidate {
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Metadata == nil {
			continue
		}
		if fmt.Sprintf("%v", c.Metadata["documentId"]) == documentID {
			kept = append(kept, c)
		}
	}
	return kept
}
