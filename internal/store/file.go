package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/finchley/ragkit/internal/vector"
)

const setFileExt = ".json"

// FileStore persists each knowledge vector set as one JSON document
// under a data directory. Writes go through a temp file plus rename and
// are serialized per set with an advisory file lock, so concurrent
// indexers of the same knowledge id cannot interleave partial writes.
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the data directory if needed and returns a
// store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating vector store directory: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Save writes set wholesale, replacing any previous version.
func (s *FileStore) Save(ctx context.Context, set vector.Set) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now()
	}

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encoding vector set %q: %w", set.KnowledgeID, err)
	}

	path := s.path(set.KnowledgeID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking vector set %q: %w", set.KnowledgeID, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("writing vector set %q: %w", set.KnowledgeID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing vector set %q: %w", set.KnowledgeID, err)
	}

	s.logger.Debug("saved vector set",
		"knowledge_id", set.KnowledgeID,
		"chunks", len(set.Chunks),
		"bytes", len(data))
	return nil
}

// Load reads the set for knowledgeID. Returns ErrNotFound when no set
// exists.
func (s *FileStore) Load(ctx context.Context, knowledgeID string) (*vector.Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(knowledgeID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, knowledgeID)
		}
		return nil, fmt.Errorf("reading vector set %q: %w", knowledgeID, err)
	}

	var set vector.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decoding vector set %q: %w", knowledgeID, err)
	}
	return &set, nil
}

// Delete removes the set wholesale. Returns ErrNotFound when no set
// exists.
func (s *FileStore) Delete(ctx context.Context, knowledgeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(s.path(knowledgeID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %q", ErrNotFound, knowledgeID)
		}
		return fmt.Errorf("deleting vector set %q: %w", knowledgeID, err)
	}
	_ = os.Remove(s.path(knowledgeID) + ".lock")

	s.logger.Debug("deleted vector set", "knowledge_id", knowledgeID)
	return nil
}

// List returns the knowledge ids of all stored sets, in directory
// order.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing vector store: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, setFileExt) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, setFileExt))
		if err != nil {
			s.logger.Warn("skipping undecodable vector set file", "file", name, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// path maps a knowledge id to its file. IDs are escaped so arbitrary
// strings cannot traverse outside the data directory.
func (s *FileStore) path(knowledgeID string) string {
	return filepath.Join(s.dir, url.PathEscape(knowledgeID)+setFileExt)
}
