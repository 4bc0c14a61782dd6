package journal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the SQL DDL for the voice_resolutions table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS voice_resolutions (
    id          BIGSERIAL PRIMARY KEY,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    session_id  TEXT NOT NULL DEFAULT '',
    page        TEXT NOT NULL DEFAULT '',
    language    TEXT NOT NULL DEFAULT '',
    utterance   TEXT NOT NULL,
    corrected   TEXT NOT NULL DEFAULT '',
    resolved    BOOLEAN NOT NULL,
    command     TEXT NOT NULL DEFAULT '',
    arg         TEXT NOT NULL DEFAULT '',
    phrase      TEXT NOT NULL DEFAULT '',
    method      TEXT NOT NULL DEFAULT '',
    score       DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_voice_resolutions_recorded ON voice_resolutions(recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_voice_resolutions_unresolved ON voice_resolutions(corrected) WHERE NOT resolved;
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db     DB
	pool   *pgxpool.Pool // set when the store owns its pool
	closed atomic.Bool
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over db. The caller owns db and
// is responsible for calling [PostgresStore.Migrate].
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, verifies it and runs [Schema]. The
// returned store closes the pool on Close.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	s := &PostgresStore{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

// Ping checks connectivity with a trivial query. Used as a readiness check.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("journal: ping: %w", err)
	}
	return nil
}

// Write inserts e. A zero Time is set to now.
func (s *PostgresStore) Write(ctx context.Context, e Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	const query = `
		INSERT INTO voice_resolutions (
			recorded_at, session_id, page, language, utterance, corrected,
			resolved, command, arg, phrase, method, score
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

	_, err := s.db.Exec(ctx, query,
		e.Time, e.SessionID, e.Page, e.Language, e.Utterance, e.Corrected,
		e.Resolved, e.Command, e.Arg, e.Phrase, e.Method, e.Score,
	)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	const query = `
		SELECT recorded_at, session_id, page, language, utterance, corrected,
		       resolved, command, arg, phrase, method, score
		FROM voice_resolutions
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Time, &e.SessionID, &e.Page, &e.Language, &e.Utterance, &e.Corrected,
			&e.Resolved, &e.Command, &e.Arg, &e.Phrase, &e.Method, &e.Score,
		); err != nil {
			return nil, fmt.Errorf("journal: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: recent rows: %w", err)
	}
	return entries, nil
}

// Misses returns up to limit distinct unresolved utterances, most frequent
// first.
func (s *PostgresStore) Misses(ctx context.Context, limit int) ([]Miss, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	const query = `
		SELECT COALESCE(NULLIF(corrected, ''), utterance) AS text, COUNT(*) AS n
		FROM voice_resolutions
		WHERE NOT resolved
		GROUP BY text
		ORDER BY n DESC, text ASC
		LIMIT $1`

	rows, err := s.db.Query(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("journal: misses: %w", err)
	}
	defer rows.Close()

	var misses []Miss
	for rows.Next() {
		var m Miss
		var n int64
		if err := rows.Scan(&m.Text, &n); err != nil {
			return nil, fmt.Errorf("journal: scan miss: %w", err)
		}
		m.Count = int(n)
		misses = append(misses, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: misses rows: %w", err)
	}
	return misses, nil
}

// Close marks the store closed and releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 1000
	}
	return limit
}
