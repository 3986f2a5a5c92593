package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/finchley/ragkit/internal/ingest"
)

var (
	indexID  string
	indexURL bool
)

var indexCmd = &cobra.Command{
	Use:   "index <path or URL>",
	Short: "Index a file, directory, or web page",
	Long: `Index extracts text from the given source, splits it into
token-bounded chunks, embeds them, and stores the resulting vector set.

A file or URL becomes one knowledge item; a directory becomes one
knowledge item per supported file. Re-indexing the same knowledge id
replaces its vector set wholesale.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexID, "id", "", "knowledge id (default: derived from the source)")
	indexCmd.Flags().BoolVar(&indexURL, "url", false, "treat the argument as a URL")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	system, _, cleanup, err := newSystem(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	ing := ingest.New(nil, logger.With("component", "ingest"))

	if indexURL {
		src, err := ing.URL(ctx, args[0])
		if err != nil {
			return err
		}
		return indexSource(cmd, system, *src)
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("stat %q: %w", args[0], err)
	}

	if info.IsDir() {
		if indexID != "" {
			return fmt.Errorf("--id cannot be used with a directory; each file becomes its own knowledge item")
		}
		result, err := ing.Directory(ctx, args[0], func(src ingest.Source) error {
			return indexSource(cmd, system, src)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d skipped, %d failed)\n",
			result.Added, result.Skipped, result.Failed)
		return nil
	}

	src, err := ing.File(args[0])
	if err != nil {
		return err
	}
	return indexSource(cmd, system, *src)
}

func indexSource(cmd *cobra.Command, system indexer, src ingest.Source) error {
	ctx := cmd.Context()
	id := indexID
	if id == "" {
		id = src.DocumentID
	}

	count, err := system.Index(ctx, id, src.Text, src.Metadata)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %q as %s (%d chunks)\n", src.Name, id, count)
	return nil
}

// indexer is the slice of the knowledge system runIndex needs.
type indexer interface {
	Index(ctx context.Context, knowledgeID, text string, meta map[string]any) (int, error)
}
