package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists events in PostgreSQL, for nodes whose journal
// must outlive the host machine. Appends take a transaction-scoped
// advisory-free path: the UNIQUE (stream, version) constraint backs the
// optimistic version check.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects with the given DSN and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq      BIGSERIAL PRIMARY KEY,
		stream   TEXT NOT NULL,
		version  INTEGER NOT NULL,
		id       TEXT NOT NULL,
		type     TEXT NOT NULL,
		recorded TIMESTAMPTZ NOT NULL,
		data     BYTEA,
		UNIQUE (stream, version)
	);
	CREATE INDEX IF NOT EXISTS idx_events_stream ON events (stream, version);
	CREATE INDEX IF NOT EXISTS idx_events_type ON events (type);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, stream string, expectedVersion int, events []*Event) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), -1) FROM events WHERE stream = $1`, stream).Scan(&current)
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
		_, err := tx.Exec(ctx,
			`INSERT INTO events (stream, version, id, type, recorded, data)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			stream, version, e.ID, string(e.Type), e.Recorded.UTC(), []byte(e.Data))
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return version, nil
}

func (s *PostgresStore) Read(ctx context.Context, stream string, fromVersion int) ([]*Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT stream, version, id, type, recorded, data FROM events
		 WHERE stream = $1 AND version >= $2 ORDER BY version`, stream, fromVersion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgEvents(rows)
}

func (s *PostgresStore) ReadAll(ctx context.Context, f Filter) ([]*Event, error) {
	query := `SELECT stream, version, id, type, recorded, data FROM events`
	var conds []string
	var args []any
	if f.Stream != "" {
		args = append(args, f.Stream)
		conds = append(conds, fmt.Sprintf("stream = $%d", len(args)))
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			args = append(args, string(t))
			marks[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, "type IN ("+strings.Join(marks, ", ")+")")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPgEvents(rows)
}

func (s *PostgresStore) StreamVersion(ctx context.Context, stream string) (int, error) {
	var version int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), -1) FROM events WHERE stream = $1`, stream).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func (s *PostgresStore) DeleteStream(ctx context.Context, stream string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE stream = $1`, stream)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgEvents(rows pgx.Rows) ([]*Event, error) {
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

var _ Store = (*PostgresStore)(nil)
