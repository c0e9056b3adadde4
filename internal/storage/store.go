package storage

import (
	"context"
	"time"
)

// Store persists capture sessions and the averaged spectra they produce.
type Store interface {
	// CreateSession records a new capture run and returns its identifier.
	// Every session also gets a random run ID for correlating logs and files.
	CreateSession(ctx context.Context, s NewSession) (sessionID int64, err error)

	// Session returns a single session or an error wrapping sql.ErrNoRows.
	Session(ctx context.Context, id int64) (*Session, error)

	// Sessions returns every session, oldest first.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreSpectra saves spectra captured at the given times in one
	// transaction. timestamps and spectra must have the same length.
	StoreSpectra(ctx context.Context, sessionID int64, timestamps []time.Time, spectra [][]float32) error

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
