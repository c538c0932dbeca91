// Package storage persists reception sessions, scan readings and active
// channels in a local SQLite database.
package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"
)

// Store provides an interface for persisting receiver runs.
// It handles sessions, per-frequency scan readings and the active channels a
// sweep found. All operations that write to the database should be considered
// atomic.
type Store interface {
	// CreateSession records the start of a reception or scan run.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session to store; ID must be unique
	//   - config: Optional run configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, session *Session, config any) error

	// EndSession records the end time, frame count and final quality of a run.
	//
	// Returns:
	//   - error: If the session does not exist, the update fails or context is cancelled
	EndSession(ctx context.Context, id string, summary SessionSummary) error

	// Session retrieves a session by its ID.
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: If retrieval fails, the session does not exist or context is cancelled
	Session(ctx context.Context, id string) (*Session, error)

	// Sessions returns all stored sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreScanResult saves the quality measured on one frequency during a sweep.
	StoreScanResult(ctx context.Context, sessionID string, reading ChannelReading) error

	// StoreActiveChannel saves a channel a sweep classified as active. Storing
	// a frequency twice for one session keeps the first reading.
	StoreActiveChannel(ctx context.Context, sessionID string, reading ChannelReading) error

	// ActiveChannels returns the active channels of a session, best quality first.
	ActiveChannels(ctx context.Context, sessionID string) ([]ChannelReading, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
