// Package testutil provides shared test infrastructure: quiet loggers,
// deterministic embedders, and a PostgreSQL container harness for
// storage integration tests.
package testutil

import (
	"io"
	"log/slog"
)

// Logger returns a logger that only surfaces warnings and errors,
// keeping test output readable while still exposing real problems when
// a handler is attached.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
