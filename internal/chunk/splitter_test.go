package chunk

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single char", "a", 1},
		{"exact boundary", strings.Repeat("a", 37), 10}, // 37/3.7 = 10
		{"just over boundary", strings.Repeat("a", 38), 11},
		{"hundred chars", strings.Repeat("a", 100), 28}, // ceil(100/3.7)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokens(tt.text); got != tt.want {
				t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tt.text), got, tt.want)
			}
		})
	}
}

func TestSplitEmptyInput(t *testing.T) {
	s := New()

	for _, text := range []string{"", "   ", "\n\n\t  \n", strings.Repeat("\n", 5000)} {
		if got := s.Split(text); got != nil {
			t.Errorf("Split(%q) = %v, want nil", text, got)
		}
	}
}

func TestSplitShortTextIsIdempotent(t *testing.T) {
	s := New(WithMaxTokens(100))

	text := "  A short paragraph that fits comfortably in one chunk.  "
	got := s.Split(text)

	want := []string{strings.TrimSpace(text)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split short text = %v, want %v", got, want)
	}
}

// buildDocument produces a ~2000 character document of uniform
// sentences for boundary tests.
func buildDocument(sentences int) string {
	var b strings.Builder
	for i := 0; i < sentences; i++ {
		fmt.Fprintf(&b, "The quick brown fox jumps over the lazy dog in test %02d. ", i)
	}
	return b.String()
}

func TestSplitLongDocument(t *testing.T) {
	const (
		maxTokens = 100
		overlap   = 20
	)
	s := New(WithMaxTokens(maxTokens), WithOverlap(overlap))

	text := buildDocument(36) // ~2000 characters
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(chunks))
	}

	for i, c := range chunks {
		if got := EstimateTokens(c); got > maxTokens {
			t.Errorf("chunk %d: %d estimated tokens exceeds budget %d", i, got, maxTokens)
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestSplitOverlapProperty(t *testing.T) {
	s := New(WithMaxTokens(100), WithOverlap(20))

	chunks := s.Split(buildDocument(36))
	if len(chunks) < 2 {
		t.Fatalf("need at least 2 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		if !sharesOverlap(chunks[i-1], chunks[i]) {
			t.Errorf("chunk %d does not begin with a tail of chunk %d:\nprev: ...%s\ncurr: %s...",
				i, i-1, tail(chunks[i-1], 40), head(chunks[i], 40))
		}
	}
}

// sharesOverlap reports whether some non-trivial prefix of curr is a
// suffix of prev.
func sharesOverlap(prev, curr string) bool {
	max := len(curr)
	if max > 80 {
		max = 80
	}
	for k := max; k >= 5; k-- {
		if strings.HasSuffix(prev, curr[:k]) {
			return true
		}
	}
	return false
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func TestSplitOverlapRespectsBudgetWithLongWords(t *testing.T) {
	const (
		maxTokens = 100
		overlap   = 50
	)
	s := New(WithMaxTokens(maxTokens), WithOverlap(overlap))

	// Sentences ending in a word much longer than the overlap: the
	// overlap cut always lands inside that word, and including the
	// whole word would inflate the next chunk far past its budget.
	var b strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&b, "Run %02d %s. ", i, strings.Repeat("z", 105))
	}

	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if got := EstimateTokens(c); got > maxTokens {
			t.Errorf("chunk %d: %d estimated tokens > %d (len %d chars)",
				i, got, maxTokens, len(c))
		}
	}
}

func TestTailAtWordBoundary(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"cut on boundary", "the quick brown fox", 3, "fox"},
		{"cut mid-word drops it", "the quick brown fox", 5, "fox"},
		{"n covers whole text", "short", 10, "short"},
		{"single unfinished word", strings.Repeat("x", 40), 10, ""},
		{"long word then short tail", strings.Repeat("x", 40) + " end", 20, "end"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tailAtWordBoundary(tt.text, tt.n)
			if got != tt.want {
				t.Errorf("tailAtWordBoundary(%q, %d) = %q, want %q", tt.text, tt.n, got, tt.want)
			}
			if len(got) > tt.n && tt.n < len(tt.text) {
				t.Errorf("overlap %q exceeds requested %d chars", got, tt.n)
			}
		})
	}
}

func TestSplitReconstructsContent(t *testing.T) {
	s := New(WithMaxTokens(60), WithOverlap(0))

	text := buildDocument(20)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("need multiple chunks, got %d", len(chunks))
	}

	// With zero overlap, re-joining chunks must reproduce the original
	// content up to whitespace normalization.
	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), " ")
	}
	joined := normalize(strings.Join(chunks, " "))
	if joined != normalize(text) {
		t.Errorf("re-joined chunks do not reconstruct the source\ngot:  %s\nwant: %s",
			head(joined, 120), head(normalize(text), 120))
	}
}

func TestSplitDeterminism(t *testing.T) {
	s := New(WithMaxTokens(80), WithOverlap(30))
	text := buildDocument(30)

	first := s.Split(text)
	second := s.Split(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs produced different chunk sequences")
	}
}

func TestSplitDegenerateSingleWord(t *testing.T) {
	// A single 5000-char token has no separator boundaries at all; it
	// must fall through to forced character slicing without looping.
	s := New(WithMaxTokens(50), WithOverlap(10))

	text := strings.Repeat("x", 5000)
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected forced slicing to produce multiple chunks, got %d", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		if c == "" {
			t.Fatalf("chunk %d is empty", i)
		}
		total += len(c)
	}
	if total < len(text) {
		t.Errorf("chunks cover %d of %d source characters", total, len(text))
	}
}

func TestSplitOverlapLargerThanBudget(t *testing.T) {
	// overlap >= maxChars must still make strictly positive progress.
	s := New(WithMaxTokens(2), WithOverlap(1000))

	chunks := s.Split(strings.Repeat("y", 200))
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
}

func TestSplitWithMetadata(t *testing.T) {
	s := New(WithMaxTokens(60), WithOverlap(10))
	text := buildDocument(20)

	meta := map[string]any{"documentId": "report-7", "source_type": "file"}
	chunks := s.SplitWithMetadata(text, meta)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d: Index = %d", i, ch.Index)
		}
		if ch.TotalChunks != len(chunks) {
			t.Errorf("chunk %d: TotalChunks = %d, want %d", i, ch.TotalChunks, len(chunks))
		}
		wantID := fmt.Sprintf("report-7-%d", i)
		if ch.Metadata["id"] != wantID {
			t.Errorf("chunk %d: id = %v, want %s", i, ch.Metadata["id"], wantID)
		}
		if ch.Metadata["source_type"] != "file" {
			t.Errorf("chunk %d: source metadata not carried over", i)
		}
		if ch.Metadata["chunkIndex"] != i {
			t.Errorf("chunk %d: chunkIndex = %v", i, ch.Metadata["chunkIndex"])
		}
	}

	// Source metadata must not be mutated.
	if len(meta) != 2 {
		t.Errorf("source metadata was modified: %v", meta)
	}
}

func TestSplitWithMetadataFallbackID(t *testing.T) {
	s := New()

	chunks := s.SplitWithMetadata("tiny text", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata["id"] != "doc-0" {
		t.Errorf("fallback id = %v, want doc-0", chunks[0].Metadata["id"])
	}
}

func TestSplitCustomSeparators(t *testing.T) {
	// A separator list without the empty-string fallback gets one
	// appended so degenerate fragments can still be sliced.
	s := New(WithMaxTokens(10), WithSeparators([]string{"|"}))

	chunks := s.Split(strings.Repeat("abc|", 50))
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
}

func TestSplitPreservesSentenceTerminators(t *testing.T) {
	s := New(WithMaxTokens(12), WithOverlap(0))

	text := "First sentence here now. Second sentence here now. Third sentence here now. Fourth sentence here now."
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected sentence-level split, got %d chunks", len(chunks))
	}

	// All but the final chunk should keep their terminator.
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %d lost its sentence terminator: %q", i, c)
		}
	}
}
