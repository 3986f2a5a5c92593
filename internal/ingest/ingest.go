// Package ingest extracts plain text from files, directories, and web
// pages for indexing. It decides what to read; chunking and embedding
// happen downstream.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// defaultExtensions are the file types ingested when no custom list is
// configured.
var defaultExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".go":   true,
	".py":   true,
	".js":   true,
	".ts":   true,
	".java": true,
	".rs":   true,
	".rb":   true,
	".sh":   true,
	".yaml": true,
	".yml":  true,
	".json": true,
	".xml":  true,
	".html": true,
	".sql":  true,
}

// MaxFileSize caps a single ingested file. Larger files are skipped;
// the chunker handles size within this bound.
const MaxFileSize = 10 << 20 // 10 MiB

// fetchTimeout bounds a single URL fetch.
const fetchTimeout = 30 * time.Second

// Source is one extracted document ready for chunking.
type Source struct {
	DocumentID string
	Name       string
	Text       string
	Metadata   map[string]any
}

// Result tallies a directory walk.
type Result struct {
	Added   int
	Skipped int
	Failed  int
}

// Ingester extracts text from local files and URLs.
type Ingester struct {
	extensions map[string]bool
	client     *http.Client
	logger     *slog.Logger
}

// New creates an Ingester. extensions overrides the default supported
// file types when non-empty; logger nil means slog.Default().
func New(extensions []string, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}

	extMap := make(map[string]bool, len(defaultExtensions))
	if len(extensions) > 0 {
		for _, ext := range extensions {
			extMap[strings.ToLower(ext)] = true
		}
	} else {
		for k, v := range defaultExtensions {
			extMap[k] = v
		}
	}

	return &Ingester{
		extensions: extMap,
		client:     &http.Client{Timeout: fetchTimeout},
		logger:     logger,
	}
}

// File reads a single file and returns it as a Source.
func (ing *Ingester) File(path string) (*Source, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%q is a directory, use Directory instead", path)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if !ing.extensions[ext] {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("file %q (%d bytes) exceeds ingestion limit (%d bytes)",
			path, info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	return &Source{
		DocumentID: docID(absPath),
		Name:       filepath.Base(absPath),
		Text:       string(content),
		Metadata: map[string]any{
			"documentId":  docID(absPath),
			"source_type": "file",
			"file_path":   absPath,
			"file_name":   filepath.Base(absPath),
			"file_ext":    ext,
			"indexed_at":  time.Now().Format(time.RFC3339),
		},
	}, nil
}

// Directory walks dir and calls fn for every supported file. Per-file
// failures are tallied, not fatal; the walk continues.
func (ing *Ingester) Directory(ctx context.Context, dir string, fn func(Source) error) (*Result, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", dir, err)
	}

	result := &Result{}
	walkErr := filepath.Walk(absDir, func(path string, info os.FileInfo, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			result.Failed++
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != absDir {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !ing.extensions[ext] || info.Size() > MaxFileSize {
			result.Skipped++
			return nil
		}

		src, err := ing.File(path)
		if err != nil {
			ing.logger.Warn("skipping unreadable file", "path", path, "error", err)
			result.Failed++
			return nil
		}
		if err := fn(*src); err != nil {
			ing.logger.Warn("failed to index file", "path", path, "error", err)
			result.Failed++
			return nil
		}

		result.Added++
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walking %q: %w", dir, walkErr)
	}
	return result, nil
}

// URL fetches a web page and extracts its readable text.
func (ing *Ingester) URL(ctx context.Context, rawURL string) (*Source, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", rawURL, err)
	}

	resp, err := ing.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %q: %w", rawURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %q: unexpected status %d", rawURL, resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, MaxFileSize), parsed)
	if err != nil {
		return nil, fmt.Errorf("extracting readable text from %q: %w", rawURL, err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, fmt.Errorf("no readable text in %q", rawURL)
	}

	return &Source{
		DocumentID: docID(rawURL),
		Name:       article.Title,
		Text:       text,
		Metadata: map[string]any{
			"documentId":  docID(rawURL),
			"source_type": "url",
			"url":         rawURL,
			"title":       article.Title,
			"indexed_at":  time.Now().Format(time.RFC3339),
		},
	}, nil
}

// docID derives a stable document id from a path or URL.
func docID(source string) string {
	hash := sha256.Sum256([]byte(source))
	return "src_" + hex.EncodeToString(hash[:16])
}
