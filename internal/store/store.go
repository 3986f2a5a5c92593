// Package store persists knowledge vector sets. Two backends share the
// same lifecycle contract: a JSON-file store (one document per
// knowledge id) and a PostgreSQL/pgvector store. Sets are written and
// deleted wholesale, never partially mutated.
package store

import "errors"

// ErrNotFound indicates no vector set exists for the requested
// knowledge id.
var ErrNotFound = errors.New("knowledge vector set not found")
