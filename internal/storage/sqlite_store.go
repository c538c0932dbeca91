package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned when a session does not exist
var ErrNotFound = errors.New("not found")

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

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a new store backed by the Sqlite database at dbPath.
// The database and its schema are created on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

// getReadDB opens a read-only connection. The write connection is opened
// first so the database file and schema exist.
func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	if _, err := s.getWriteDB(); err != nil {
		return nil, err
	}

	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, session *Session, config any) (err error) {
	if session == nil || session.ID == "" {
		return errors.New("session ID is required")
	}

	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	data := toSessionData(session)

	if _, err = stmt.ExecContext(
		ctx,
		data.ID,
		data.Mode,
		data.Device,
		data.Frequency,
		data.DurationMS,
		data.StartTime,
		configData,
	); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	return nil
}

func (s *SqliteStore) EndSession(ctx context.Context, id string, summary SessionSummary) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, endSessionSQL, summary.EndTime.UTC(), summary.Frames, summary.Quality, id)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id string) (session *Session, err error) {
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

	data, err := scanSession(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("session %s: %w", id, ErrNotFound)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return fromSessionData(data), nil
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
		var data *sessionData
		if data, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, fromSessionData(data))
	}
	err = rows.Err()
	return
}

func scanSession(row interface{ Scan(dest ...any) error }) (*sessionData, error) {
	var data sessionData
	err := row.Scan(
		&data.ID,
		&data.Mode,
		&data.Device,
		&data.Frequency,
		&data.DurationMS,
		&data.StartTime,
		&data.EndTime,
		&data.Frames,
		&data.Quality,
		&data.Config,
	)
	return &data, err
}

func (s *SqliteStore) StoreScanResult(ctx context.Context, sessionID string, reading ChannelReading) error {
	data := toReadingData(sessionID, reading)
	return s.execInTx(ctx, insertScanResultSQL, data.SessionID, data.Timestamp, data.Frequency, data.Quality)
}

func (s *SqliteStore) StoreActiveChannel(ctx context.Context, sessionID string, reading ChannelReading) error {
	data := toReadingData(sessionID, reading)
	return s.execInTx(ctx, insertActiveChannelSQL, data.SessionID, data.Frequency, data.Quality, data.Timestamp)
}

func (s *SqliteStore) execInTx(ctx context.Context, query string, args ...any) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) ActiveChannels(ctx context.Context, sessionID string) (channels []ChannelReading, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectActiveChannelsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying active channels: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var ch ChannelReading
		if err = rows.Scan(&ch.Frequency, &ch.Quality, &ch.Timestamp); err != nil {
			err = fmt.Errorf("scanning active channel: %w", err)
			return
		}
		channels = append(channels, ch)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
