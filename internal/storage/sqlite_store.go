package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectral-accumulator/internal/rawio"
)

var _ Store = (*SqliteStore)(nil)

const (
	// sqliteMaxVariables is SQLITE_MAX_VARIABLE_NUMBER of the bundled
	// SQLite: the most bind parameters one statement may carry.
	sqliteMaxVariables = 32766

	spectrumColumns  = 4
	maxRowsPerInsert = sqliteMaxVariables / spectrumColumns
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the SQLite database at dbPath.
// Connections are opened on first use; the write connection creates the
// schema.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // SQLite allows a single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, ns NewSession) (sessionID int64, err error) {
	config, err := toNullString(ns.Config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(
		ctx,
		uuid.New().String(),
		toUnixNano(time.Now()),
		ns.DeviceType,
		ns.DeviceID,
		ns.CenterFrequency,
		ns.SampleRate,
		ns.Channels,
		ns.Average,
		config,
	)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if session, err = scanSession(stmt.QueryRowContext(ctx, id)); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

// StoreSpectrum saves a single spectrum.
func (s *SqliteStore) StoreSpectrum(ctx context.Context, sessionID int64, timestamp time.Time, power []float32) error {
	return s.StoreSpectra(ctx, sessionID, []time.Time{timestamp}, [][]float32{power})
}

// StoreSpectra saves spectra in one transaction, split across as many
// INSERT statements as the bind parameter limit requires.
func (s *SqliteStore) StoreSpectra(ctx context.Context, sessionID int64, timestamps []time.Time, spectra [][]float32) (err error) {
	if len(timestamps) != len(spectra) {
		return fmt.Errorf("%d timestamps for %d spectra", len(timestamps), len(spectra))
	}
	if len(spectra) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for start := 0; start < len(spectra); start += maxRowsPerInsert {
		end := min(start+maxRowsPerInsert, len(spectra))
		if err = insertSpectra(ctx, tx, sessionID, timestamps[start:end], spectra[start:end]); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// insertSpectra writes one multi-row INSERT. The caller keeps the row count
// within maxRowsPerInsert.
func insertSpectra(ctx context.Context, tx *sql.Tx, sessionID int64, timestamps []time.Time, spectra [][]float32) error {
	values := make([]any, 0, len(spectra)*spectrumColumns)

	var sb strings.Builder

	sb.WriteString(insertSpectrumSQL)

	for i, power := range spectra {
		values = append(values,
			sessionID,
			toUnixNano(timestamps[i]),
			len(power),
			rawio.AppendFloat32(nil, power),
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
	}

	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting spectra: %w", err)
	}
	return nil
}

// ReadSpectra returns a reader over the spectra of a session, oldest first.
// The reader must be closed after use.
func (s *SqliteStore) ReadSpectra(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SpectrumReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSpectrumReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
