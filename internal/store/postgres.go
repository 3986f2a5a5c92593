package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/finchley/ragkit/internal/vector"
)

// PostgresStore persists knowledge vector sets in PostgreSQL with the
// pgvector extension, one row per chunk. Save is delete-then-insert in
// a single transaction, preserving the wholesale-replacement lifecycle.
//
// Schema lives in internal/database/migrations; run them before first
// use.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore wraps an existing connection pool. The pool is owned
// by the caller.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Save replaces all chunks of the set inside one transaction.
func (s *PostgresStore) Save(ctx context.Context, set vector.Set) error {
	createdAt := set.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning save of %q: %w", set.KnowledgeID, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE knowledge_id = $1`, set.KnowledgeID); err != nil {
		return fmt.Errorf("clearing previous chunks of %q: %w", set.KnowledgeID, err)
	}

	for i, ch := range set.Chunks {
		metadata, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("encoding metadata of chunk %d in %q: %w", i, set.KnowledgeID, err)
		}
		embedding := pgvector.NewVector(ch.Embedding)

		if _, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks (knowledge_id, position, content, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			set.KnowledgeID, i, ch.Content, embedding, metadata, createdAt); err != nil {
			return fmt.Errorf("inserting chunk %d of %q: %w", i, set.KnowledgeID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing save of %q: %w", set.KnowledgeID, err)
	}

	s.logger.Debug("saved vector set", "knowledge_id", set.KnowledgeID, "chunks", len(set.Chunks))
	return nil
}

// Load reads all chunks of knowledgeID in position order. Returns
// ErrNotFound when no rows exist.
func (s *PostgresStore) Load(ctx context.Context, knowledgeID string) (*vector.Set, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT content, embedding, metadata, created_at
		 FROM knowledge_chunks WHERE knowledge_id = $1 ORDER BY position`, knowledgeID)
	if err != nil {
		return nil, fmt.Errorf("loading vector set %q: %w", knowledgeID, err)
	}
	defer rows.Close()

	set := &vector.Set{KnowledgeID: knowledgeID}
	for rows.Next() {
		var (
			content   string
			embedding pgvector.Vector
			metadata  []byte
			createdAt time.Time
		)
		if err := rows.Scan(&content, &embedding, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning chunk of %q: %w", knowledgeID, err)
		}

		var meta map[string]any
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &meta); err != nil {
				s.logger.Warn("dropping unparsable chunk metadata",
					"knowledge_id", knowledgeID, "error", err)
				meta = nil
			}
		}

		if set.CreatedAt.IsZero() {
			set.CreatedAt = createdAt
		}
		set.Chunks = append(set.Chunks, vector.EmbeddedChunk{
			Content:   content,
			Embedding: embedding.Slice(),
			Metadata:  meta,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks of %q: %w", knowledgeID, err)
	}

	if len(set.Chunks) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, knowledgeID)
	}
	return set, nil
}

// Delete removes all chunks of knowledgeID. Returns ErrNotFound when
// nothing was stored.
func (s *PostgresStore) Delete(ctx context.Context, knowledgeID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE knowledge_id = $1`, knowledgeID)
	if err != nil {
		return fmt.Errorf("deleting vector set %q: %w", knowledgeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, knowledgeID)
	}

	s.logger.Debug("deleted vector set", "knowledge_id", knowledgeID)
	return nil
}

// List returns all distinct knowledge ids.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT knowledge_id FROM knowledge_chunks ORDER BY knowledge_id`)
	if err != nil {
		return nil, fmt.Errorf("listing knowledge ids: %w", err)
	}
	defer rows.Close()

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting knowledge ids: %w", err)
	}
	return ids, nil
}

// IsNotFound reports whether err is the store's not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
