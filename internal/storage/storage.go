// Package storage remembers which portal tickets the watcher has already
// announced, together with the Telegram message that announced them.
//
// Two backends implement Store:
//  1. CSVStore: a CSV file mirrored in memory (the default)
//  2. SQLiteStore: a single-file sqlite database
//
// Thread-safety:
//   - Both backends are safe for concurrent use
//   - SaveMultiple writes a whole batch or nothing
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Record is one announced ticket.
//
// Fields:
//   - Ticket: Portal ticket number (e.g., "TKT-1A2B3C4D")
//   - ComplaintID: Portal complaint id, used for detail and status calls
//   - Status: Last status the watcher saw
//   - MessageID: Telegram message id for editing, empty when not sent
type Record struct {
	Ticket      string
	ComplaintID int
	Status      string
	MessageID   string
}

// Store persists Records keyed by ticket.
type Store interface {
	// IsNew reports whether ticket has never been saved.
	IsNew(ctx context.Context, ticket string) (bool, error)
	// Get returns the stored record for ticket.
	Get(ctx context.Context, ticket string) (Record, bool, error)
	// All returns every record ordered by ticket.
	All(ctx context.Context) ([]Record, error)
	// SaveMultiple inserts or replaces records in one batch.
	SaveMultiple(ctx context.Context, records []Record) error
	// RemoveIfExists deletes ticket and reports whether it was present.
	RemoveIfExists(ctx context.Context, ticket string) (bool, error)
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path.
func Open(backend, path string, logger *zap.SugaredLogger) (Store, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVStore(path, logger)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
