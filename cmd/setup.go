package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/finchley/ragkit/internal/batch"
	"github.com/finchley/ragkit/internal/chunk"
	"github.com/finchley/ragkit/internal/config"
	"github.com/finchley/ragkit/internal/database"
	"github.com/finchley/ragkit/internal/embed"
	"github.com/finchley/ragkit/internal/knowledge"
	"github.com/finchley/ragkit/internal/store"
)

// newSystem wires configuration, provider, executor, and storage into a
// knowledge system. The returned cleanup releases storage resources.
func newSystem(ctx context.Context, logger *slog.Logger) (*knowledge.System, *config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	splitter := chunk.New(
		chunk.WithMaxTokens(cfg.ChunkMaxTokens),
		chunk.WithOverlap(cfg.ChunkOverlapChars),
	)

	runner, err := batch.NewRunner[string, []float32](batch.Config{
		RequestsPerMinute: cfg.RequestsPerMinute,
		TokensPerMinute:   cfg.TokensPerMinute,
		Concurrency:       cfg.Concurrency,
		MaxRetries:        cfg.MaxRetries,
		BaseBackoffMs:     cfg.BaseBackoffMs,
		SafetyFactor:      cfg.SafetyFactor,
	}, nil, logger.With("component", "batch"))
	if err != nil {
		return nil, nil, nil, err
	}

	st, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	system, err := knowledge.New(st, embedder, splitter, runner, logger)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return system, cfg, cleanup, nil
}

// newEmbedder selects the embedding provider.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	switch cfg.Provider {
	case config.ProviderHash:
		return embed.NewHashEmbedder(), nil
	case config.ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable not set")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Set your API key with:")
			fmt.Fprintln(os.Stderr, "  export GEMINI_API_KEY=your-api-key")
			return nil, fmt.Errorf("GEMINI_API_KEY not set")
		}
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		return embed.FromGenkit(googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// newStore selects the storage backend.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (knowledge.Store, func(), error) {
	switch cfg.StorageBackend {
	case config.StorageFile:
		dir, err := cfg.VectorDir()
		if err != nil {
			return nil, nil, err
		}
		fs, err := store.NewFileStore(dir, logger.With("component", "store"))
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil

	case config.StoragePostgres:
		pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
		if err != nil {
			return nil, nil, err
		}
		ps := store.NewPostgresStore(pool, logger.With("component", "store"))
		return ps, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidStorage, cfg.StorageBackend)
	}
}
