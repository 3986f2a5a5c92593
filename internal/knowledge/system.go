// Package knowledge ties the chunker, the rate-limited batch executor,
// an embedding provider, and a vector store into one indexing and
// search surface.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/finchley/ragkit/internal/batch"
	"github.com/finchley/ragkit/internal/chunk"
	"github.com/finchley/ragkit/internal/embed"
	"github.com/finchley/ragkit/internal/vector"
)

// Store is the persistence contract the system consumes. Interface
// defined here, by the consumer; implementations live in
// internal/store.
type Store interface {
	// Load reads the vector set for a knowledge id.
	Load(ctx context.Context, knowledgeID string) (*vector.Set, error)

	// Save writes a vector set wholesale, replacing any previous one.
	Save(ctx context.Context, set vector.Set) error

	// Delete removes a vector set wholesale.
	Delete(ctx context.Context, knowledgeID string) error

	// List returns all stored knowledge ids.
	List(ctx context.Context) ([]string, error)
}

var (
	// ErrNotInitialized indicates the system was used before its
	// dependencies were wired. Raised synchronously, before any work.
	ErrNotInitialized = errors.New("knowledge system not initialized")

	// ErrPartialEmbedding indicates some chunks failed to embed. The
	// set is not saved: a sparse vector set would silently lose
	// retrieval coverage.
	ErrPartialEmbedding = errors.New("some chunks failed to embed")
)

// System orchestrates indexing, search, and removal of knowledge items.
// Safe for concurrent use.
type System struct {
	store    Store
	embedder embed.Embedder
	splitter *chunk.Splitter
	runner   *batch.Runner[string, []float32]
	engine   *vector.Engine
	logger   *slog.Logger
}

// New wires a knowledge system. splitter and runner may be nil to use
// defaults; store and embedder are required.
func New(store Store, embedder embed.Embedder, splitter *chunk.Splitter, runner *batch.Runner[string, []float32], logger *slog.Logger) (*System, error) {
	if store == nil || embedder == nil {
		return nil, ErrNotInitialized
	}
	if logger == nil {
		logger = slog.Default()
	}
	if splitter == nil {
		splitter = chunk.New()
	}
	if runner == nil {
		r, err := batch.NewRunner[string, []float32](batch.DefaultConfig(), nil, logger)
		if err != nil {
			return nil, err
		}
		runner = r
	}

	return &System{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		runner:   runner,
		engine:   vector.NewEngine(embedder.EmbedOne, logger.With("component", "search")),
		logger:   logger,
	}, nil
}

// ready guards against use of a zero-value System.
func (s *System) ready() error {
	if s == nil || s.store == nil || s.embedder == nil {
		return ErrNotInitialized
	}
	return nil
}

// Index chunks text, embeds the chunks in rate-limited batches, and
// saves the resulting vector set wholesale under knowledgeID,
// overwriting any previous version. meta is attached to every chunk; a
// documentId is generated when absent. Returns the chunk count.
func (s *System) Index(ctx context.Context, knowledgeID, text string, meta map[string]any) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}

	// Work on a copy so the generated documentId never leaks into the
	// caller's map.
	m := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	if _, ok := m["documentId"]; !ok {
		m["documentId"] = uuid.NewString()
	}
	meta = m

	chunks := s.splitter.SplitWithMetadata(text, meta)
	if len(chunks) == 0 {
		s.logger.Debug("nothing to index", "knowledge_id", knowledgeID)
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}

	result, err := s.runner.Execute(ctx, texts,
		func(ctx context.Context, items []string) ([][]float32, error) {
			return s.embedder.EmbedBatch(ctx, items)
		},
		func(text string) string { return text })
	if err != nil {
		return 0, fmt.Errorf("embedding chunks of %q: %w", knowledgeID, err)
	}
	if result.Failed() {
		failed := 0
		for _, f := range result.Failures {
			failed += f.Count
		}
		return 0, fmt.Errorf("%w: %d of %d chunks in %q (first failure: %v)",
			ErrPartialEmbedding, failed, len(chunks), knowledgeID, result.Failures[0].Err)
	}

	set := vector.Set{
		KnowledgeID: knowledgeID,
		Chunks:      make([]vector.EmbeddedChunk, len(chunks)),
		CreatedAt:   time.Now(),
	}
	for i, ch := range chunks {
		set.Chunks[i] = vector.EmbeddedChunk{
			Content:   ch.Content,
			Embedding: result.Outputs[i],
			Metadata:  ch.Metadata,
		}
	}

	if err := s.store.Save(ctx, set); err != nil {
		return 0, fmt.Errorf("saving vector set %q: %w", knowledgeID, err)
	}

	s.logger.Info("indexed knowledge",
		"knowledge_id", knowledgeID,
		"chunks", len(chunks),
		"characters", len(text))
	return len(chunks), nil
}

// LoadFailure records a knowledge item whose vector set could not be
// loaded for a search.
type LoadFailure struct {
	KnowledgeID string
	Err         error
}

// SearchResult is a ranked search response plus per-knowledge load
// failures. A failed load does not abort the search and zero results is
// not an error.
type SearchResult struct {
	Response    *vector.Response
	FailedLoads []LoadFailure
}

// Search loads the requested vector sets (all stored sets when
// knowledgeIDs is empty) and scores query against them. opts pass
// through to the search engine (top-K, threshold, filters).
func (s *System) Search(ctx context.Context, query string, knowledgeIDs []string, opts ...vector.SearchOption) (*SearchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	ids := knowledgeIDs
	if len(ids) == 0 {
		all, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing knowledge ids: %w", err)
		}
		ids = all
	}

	var (
		sets     []vector.Set
		failures []LoadFailure
	)
	for _, id := range ids {
		set, err := s.store.Load(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unloadable knowledge", "knowledge_id", id, "error", err)
			failures = append(failures, LoadFailure{KnowledgeID: id, Err: err})
			continue
		}
		sets = append(sets, *set)
	}

	resp, err := s.engine.Search(ctx, query, sets, opts...)
	if err != nil {
		return nil, err
	}

	return &SearchResult{Response: resp, FailedLoads: failures}, nil
}

// Remove deletes the vector set for knowledgeID wholesale.
func (s *System) Remove(ctx context.Context, knowledgeID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.Delete(ctx, knowledgeID)
}

// List returns all stored knowledge ids.
func (s *System) List(ctx context.Context) ([]string, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}
