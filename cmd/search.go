package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/finchley/ragkit/internal/vector"
)

var (
	searchTopK      int
	searchThreshold float64
	searchKnowledge []string
	searchDocument  string
	searchJSON      bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed knowledge by similarity",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "k", 0, "maximum results (default from config)")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", -2, "minimum similarity, inclusive (default from config)")
	searchCmd.Flags().StringSliceVar(&searchKnowledge, "knowledge", nil, "restrict to these knowledge ids")
	searchCmd.Flags().StringVar(&searchDocument, "document", "", "restrict to chunks of this document id")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := newLogger()

	system, cfg, cleanup, err := newSystem(ctx, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	topK := cfg.TopK
	if searchTopK > 0 {
		topK = searchTopK
	}
	threshold := cfg.Threshold
	if searchThreshold >= -1 {
		threshold = searchThreshold
	}

	opts := []vector.SearchOption{
		vector.WithTopK(topK),
		vector.WithThreshold(threshold),
	}
	if len(searchKnowledge) > 0 {
		opts = append(opts, vector.WithKnowledgeFilter(searchKnowledge...))
	}
	if searchDocument != "" {
		opts = append(opts, vector.WithDocumentFilter(searchDocument))
	}

	result, err := system.Search(ctx, args[0], searchKnowledge, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	for _, failure := range result.FailedLoads {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load knowledge %s: %v\n",
			failure.KnowledgeID, failure.Err)
	}

	resp := result.Response
	if len(resp.Results) == 0 {
		fmt.Fprintf(out, "No results (scanned %d chunks in %s)\n", resp.Scanned, resp.SearchTime)
		return nil
	}

	for i, c := range resp.Results {
		fmt.Fprintf(out, "%2d. [%.4f] %s (%s)\n", i+1, c.Score, c.ChunkID, c.KnowledgeID)
		fmt.Fprintf(out, "    %s\n", firstLine(c.Content, 120))
	}
	fmt.Fprintf(out, "\nScanned %d chunks in %s\n", resp.Scanned, resp.SearchTime)
	return nil
}

// firstLine truncates content to a single display line, cutting only
// at rune boundaries.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
