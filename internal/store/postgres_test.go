package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/finchley/ragkit/internal/testutil"
	"github.com/finchley/ragkit/internal/vector"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	pool, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	s := NewPostgresStore(pool, testutil.Logger())
	ctx := context.Background()

	want := vector.Set{
		KnowledgeID: "pg-notes",
		CreatedAt:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Chunks: []vector.EmbeddedChunk{
			{
				Content:   "first chunk",
				Embedding: []float32{0.25, -0.5, 0.125},
				Metadata:  map[string]any{"id": "pg-notes-0", "documentId": "doc-1"},
			},
			{
				Content:   "second chunk",
				Embedding: []float32{1, 0, -1},
				Metadata:  map[string]any{"id": "pg-notes-1", "documentId": "doc-1"},
			},
		},
	}

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "pg-notes")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.KnowledgeID != want.KnowledgeID {
		t.Errorf("KnowledgeID = %q, want %q", got.KnowledgeID, want.KnowledgeID)
	}
	if len(got.Chunks) != len(want.Chunks) {
		t.Fatalf("got %d chunks, want %d", len(got.Chunks), len(want.Chunks))
	}
	for i := range want.Chunks {
		if got.Chunks[i].Content != want.Chunks[i].Content {
			t.Errorf("chunk %d content = %q, want %q", i, got.Chunks[i].Content, want.Chunks[i].Content)
		}
		if !reflect.DeepEqual(got.Chunks[i].Embedding, want.Chunks[i].Embedding) {
			t.Errorf("chunk %d embedding = %v, want %v", i, got.Chunks[i].Embedding, want.Chunks[i].Embedding)
		}
		if got.Chunks[i].Metadata["id"] != want.Chunks[i].Metadata["id"] {
			t.Errorf("chunk %d metadata id = %v", i, got.Chunks[i].Metadata["id"])
		}
	}

	// Wholesale replacement.
	replacement := vector.Set{
		KnowledgeID: "pg-notes",
		Chunks:      []vector.EmbeddedChunk{{Content: "replaced", Embedding: []float32{1, 1, 1}}},
	}
	if err := s.Save(ctx, replacement); err != nil {
		t.Fatalf("Save replacement: %v", err)
	}
	got, err = s.Load(ctx, "pg-notes")
	if err != nil {
		t.Fatalf("Load after replacement: %v", err)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].Content != "replaced" {
		t.Errorf("replacement not wholesale: %+v", got.Chunks)
	}

	// List across additional sets.
	if err := s.Save(ctx, vector.Set{
		KnowledgeID: "pg-other",
		Chunks:      []vector.EmbeddedChunk{{Content: "x", Embedding: []float32{0, 0, 1}}},
	}); err != nil {
		t.Fatalf("Save second set: %v", err)
	}
	ids, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"pg-notes", "pg-other"}) {
		t.Errorf("List = %v, want [pg-notes pg-other]", ids)
	}

	// Delete and not-found behavior.
	if err := s.Delete(ctx, "pg-notes"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "pg-notes"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "pg-notes"); !IsNotFound(err) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
}
