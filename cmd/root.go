// Package cmd implements the ragkit command-line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/finchley/ragkit/internal/log"
)

var debugFlag bool

var rootCmd = &cobra.Command{
	Use:   "ragkit",
	Short: "ragkit - chunk, embed, and search your documents",
	Long: `ragkit indexes documents for retrieval-augmented generation:
it splits text into token-bounded chunks, embeds them through a
rate-limited batch pipeline, stores per-knowledge vector sets, and
answers similarity queries over them.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// newLogger builds the process logger. Logs go to stderr so stdout
// stays clean for command output.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if debugFlag || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level})
}
