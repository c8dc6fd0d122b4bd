package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists events in an embedded SQLite database. Appends run
// in a transaction holding the version check and every insert.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a store at path. Use ":memory:" for
// an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Append serializes on the events table; a second connection would
	// only ever see "database is locked".
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq      INTEGER PRIMARY KEY AUTOINCREMENT,
		stream   TEXT NOT NULL,
		version  INTEGER NOT NULL,
		id       TEXT NOT NULL,
		type     TEXT NOT NULL,
		recorded DATETIME NOT NULL,
		data     BLOB,
		UNIQUE (stream, version)
	);
	CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream, version);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, stream string, expectedVersion int, events []*Event) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	current, err := scanVersion(tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), -1) FROM events WHERE stream = ?`, stream))
	if err != nil {
		return 0, err
	}
	if current != expectedVersion {
		return 0, ErrConcurrencyConflict
	}

	version := current
	for _, e := range events {
		version++
		e.Stream = stream
		e.Version = version
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (stream, version, id, type, recorded, data)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			stream, version, e.ID, string(e.Type), e.Recorded.UTC(), []byte(e.Data))
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *SQLiteStore) Read(ctx context.Context, stream string, fromVersion int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stream, version, id, type, recorded, data FROM events
		 WHERE stream = ? AND version >= ? ORDER BY version`, stream, fromVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) ReadAll(ctx context.Context, f Filter) ([]*Event, error) {
	query := `SELECT stream, version, id, type, recorded, data FROM events`
	var conds []string
	var args []any
	if f.Stream != "" {
		conds = append(conds, "stream = ?")
		args = append(args, f.Stream)
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "type IN ("+strings.Join(marks, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *SQLiteStore) StreamVersion(ctx context.Context, stream string) (int, error) {
	return scanVersion(s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), -1) FROM events WHERE stream = ?`, stream))
}

func (s *SQLiteStore) DeleteStream(ctx context.Context, stream string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE stream = ?`, stream)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanVersion(row *sql.Row) (int, error) {
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var out []*Event
	for rows.Next() {
		var e Event
		var typ string
		var recorded time.Time
		var data []byte
		if err := rows.Scan(&e.Stream, &e.Version, &e.ID, &typ, &recorded, &data); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		e.Recorded = recorded
		e.Data = data
		out = append(out, &e)
	}
	return out, rows.Err()
}

var _ Store = (*SQLiteStore)(nil)
