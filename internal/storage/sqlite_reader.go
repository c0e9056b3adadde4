package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

// ReaderOption configures a SpectrumReader with filtering criteria.
type ReaderOption func(*SpectrumReader)

// WithStartTime excludes spectra captured before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SpectrumReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes spectra captured after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SpectrumReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SpectrumReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SpectrumReader iterates over the stored spectra of one session.
//
//	for r.Next(ctx) {
//		s := r.Current()
//	}
//	if err := r.Error(); err != nil { ... }
type SpectrumReader struct {
	db *sql.DB

	sessionID int64
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *Spectrum
	rows    *sql.Rows
	err     error
}

func newSpectrumReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SpectrumReader, error) {
	r := &SpectrumReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return r, nil
}

func (r *SpectrumReader) init(ctx context.Context) error {
	if r.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: r.loadSession},
		{msg: "initializing filters", fn: r.initFilters},
		{msg: "initializing query", fn: r.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (r *SpectrumReader) loadSession(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if r.session, err = scanSession(stmt.QueryRowContext(ctx, r.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (r *SpectrumReader) initFilters(context.Context) error {
	if r.startTime != nil && r.endTime != nil && r.startTime.After(*r.endTime) {
		return fmt.Errorf("start time %s is after end time %s", r.startTime, r.endTime)
	}
	if r.startTime == nil {
		start := fromUnixNano(0)
		r.startTime = &start
	}
	if r.endTime == nil {
		end := fromUnixNano(math.MaxInt64)
		r.endTime = &end
	}
	return nil
}

func (r *SpectrumReader) initQuery(ctx context.Context) (err error) {
	r.rows, err = r.db.QueryContext(ctx, selectSpectraSQL, r.sessionID, toUnixNano(*r.startTime), toUnixNano(*r.endTime))
	return
}

// Session returns the session this reader is accessing.
func (r *SpectrumReader) Session() *Session {
	return r.session
}

// Next advances to the next spectrum. It returns false at the end of the
// data or on error; check Error to tell them apart.
func (r *SpectrumReader) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if !r.rows.Next() {
		return false
	}

	var (
		id        int64
		timestamp int64
		channels  int
		blob      []byte
	)
	if err := r.rows.Scan(&id, &timestamp, &channels, &blob); err != nil {
		r.err = fmt.Errorf("scanning spectrum: %w", err)
		return false
	}

	power := make([]float32, channels)
	if err := rawio.DecodeFloat32(blob, power); err != nil {
		r.err = fmt.Errorf("decoding spectrum %d: %w", id, err)
		return false
	}

	r.current = &Spectrum{
		ID:        id,
		SessionID: r.sessionID,
		Timestamp: fromUnixNano(timestamp),
		Power:     power,
	}
	return true
}

// Current returns the spectrum read by the last successful Next.
func (r *SpectrumReader) Current() *Spectrum {
	return r.current
}

// Error returns any error that occurred during iteration.
func (r *SpectrumReader) Error() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

// Close releases the database resources.
func (r *SpectrumReader) Close() error {
	return r.rows.Close()
}
