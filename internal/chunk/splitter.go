package chunk

import (
	"strings"
)

// Splitter performs recursive separator-hierarchy text splitting.
//
// A Splitter is immutable after construction and safe for concurrent
// use.
type Splitter struct {
	maxTokens    int
	overlapChars int
	separators   []string
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithMaxTokens sets the per-chunk token budget. Values below 1 are
// ignored.
func WithMaxTokens(n int) Option {
	return func(s *Splitter) {
		if n >= 1 {
			s.maxTokens = n
		}
	}
}

// WithOverlap sets the desired character overlap between consecutive
// chunks. Negative values are ignored.
func WithOverlap(n int) Option {
	return func(s *Splitter) {
		if n >= 0 {
			s.overlapChars = n
		}
	}
}

// WithSeparators replaces the separator priority list. The list should
// end with the empty string so splitting can always fall through to
// character slicing; one is appended if missing.
func WithSeparators(seps []string) Option {
	return func(s *Splitter) {
		if len(seps) == 0 {
			return
		}
		copied := make([]string, len(seps))
		copy(copied, seps)
		if copied[len(copied)-1] != "" {
			copied = append(copied, "")
		}
		s.separators = copied
	}
}

// New creates a Splitter with the given options applied over defaults.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		maxTokens:    DefaultMaxTokens,
		overlapChars: DefaultOverlapChars,
		separators:   DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Split divides text into an ordered sequence of chunk strings.
//
// Text whose estimated token count already fits the budget is returned
// as a single trimmed chunk. Empty or whitespace-only input yields nil.
// Output is byte-identical across calls for identical input.
func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	if EstimateTokens(text) <= s.maxTokens {
		return []string{trimmed}
	}

	maxChars := int(float64(s.maxTokens) * charsPerTokenBudget)

	pieces := s.split(trimmed, maxChars, s.separators)
	merged := mergePieces(pieces, maxChars)
	return s.injectOverlap(merged)
}

// SplitWithMetadata chunks text and attaches per-chunk metadata. Each
// chunk's metadata is a copy of meta extended with chunkIndex,
// totalChunks and a stable id derived from meta["documentId"] (or
// FallbackDocumentID) plus the chunk index.
func (s *Splitter) SplitWithMetadata(text string, meta map[string]any) []Chunk {
	contents := s.Split(text)
	if len(contents) == 0 {
		return nil
	}

	chunks := make([]Chunk, len(contents))
	for i, content := range contents {
		m := make(map[string]any, len(meta)+3)
		for k, v := range meta {
			m[k] = v
		}
		m["chunkIndex"] = i
		m["totalChunks"] = len(contents)
		m["id"] = chunkID(meta, i)

		chunks[i] = Chunk{
			Content:     content,
			Index:       i,
			TotalChunks: len(contents),
			Metadata:    m,
		}
	}
	return chunks
}

// split recursively breaks text into pieces no longer than maxChars,
// working down the separator priority list. Separators already consumed
// at an outer level are dropped for the recursion.
func (s *Splitter) split(text string, maxChars int, separators []string) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	// Separator list exhausted (or at the character-level fallback):
	// force fixed-size slices.
	if len(separators) == 0 || separators[0] == "" {
		return s.forceSlice(text, maxChars)
	}

	sep := separators[0]
	rest := separators[1:]

	fragments := splitKeepingSentenceEnds(text, sep)

	var pieces []string
	for _, frag := range fragments {
		if strings.TrimSpace(frag) == "" {
			continue
		}
		if len(frag) <= maxChars {
			pieces = append(pieces, frag)
			continue
		}
		pieces = append(pieces, s.split(frag, maxChars, rest)...)
	}

	if len(pieces) == 0 {
		// Text consisted solely of separator characters at this level.
		return s.forceSlice(text, maxChars)
	}
	return pieces
}

// splitKeepingSentenceEnds splits text on sep. Punctuation separators
// (". ", "! ", "; ", ...) are re-appended to the left fragment so
// sentences keep their terminators; structural separators (newlines,
// spaces) are discarded.
func splitKeepingSentenceEnds(text, sep string) []string {
	parts := strings.Split(text, sep)

	keep := keepSeparator(sep)
	if !keep {
		return parts
	}

	suffix := strings.TrimRight(sep, " ")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] != "" {
			parts[i] += suffix
		}
	}
	return parts
}

// keepSeparator reports whether sep carries meaning worth preserving in
// the output (sentence/clause punctuation) rather than pure structure.
func keepSeparator(sep string) bool {
	if sep == "" {
		return false
	}
	return strings.TrimSpace(sep) != ""
}

// forceSlice splits text into fixed windows of maxChars, stepping the
// window forward by maxChars minus the overlap. The step is clamped to
// at least one character so progress is always strictly positive, even
// for overlap >= maxChars.
func (s *Splitter) forceSlice(text string, maxChars int) []string {
	step := maxChars - s.overlapChars
	if step < 1 {
		step = 1
	}

	var out []string
	for start := 0; start < len(text); start += step {
		end := start + maxChars
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// mergePieces greedily re-coalesces consecutive pieces, joined by a
// single space, while the merged length stays within maxChars. This
// undoes over-aggressive splitting at fine separator levels.
func mergePieces(pieces []string, maxChars int) []string {
	var out []string
	var current string

	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}

		if current == "" {
			current = piece
			continue
		}

		if len(current)+1+len(piece) <= maxChars {
			current = current + " " + piece
			continue
		}

		out = append(out, current)
		current = piece
	}

	if current != "" {
		out = append(out, current)
	}
	return out
}

// injectOverlap prepends the tail of each previous chunk onto the next
// one. The tail is aligned to a word boundary without ever growing past
// the configured overlap, so a long trailing word cannot inflate a
// chunk beyond its budget. Chunks already starting with the overlap
// text are left untouched.
func (s *Splitter) injectOverlap(chunks []string) []string {
	if s.overlapChars <= 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]

	for i := 1; i < len(chunks); i++ {
		overlap := tailAtWordBoundary(chunks[i-1], s.overlapChars)
		if overlap == "" || strings.HasPrefix(chunks[i], overlap) {
			out[i] = chunks[i]
			continue
		}
		out[i] = overlap + " " + chunks[i]
	}
	return out
}

// tailAtWordBoundary returns at most the trailing n characters of
// text, aligned to a word boundary. A word straddling the cut is
// dropped rather than included, keeping the overlap bounded by n; a
// tail consisting of one unfinished word yields no overlap at all.
func tailAtWordBoundary(text string, n int) string {
	start := len(text) - n
	if start <= 0 {
		return strings.TrimSpace(text)
	}

	if text[start-1] != ' ' {
		next := strings.IndexByte(text[start:], ' ')
		if next < 0 {
			return ""
		}
		start += next + 1
	}
	return strings.TrimSpace(text[start:])
}
