package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tradecal/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SessionStore = (*SQLiteStore)(nil)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
    provider    TEXT    NOT NULL,
    day         INTEGER NOT NULL,
    open_ms     INTEGER NOT NULL,
    close_ms    INTEGER NOT NULL,
    early_close INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (provider, day)
);

CREATE TABLE IF NOT EXISTS session_coverage (
    provider  TEXT    NOT NULL,
    start_day INTEGER NOT NULL,
    end_day   INTEGER NOT NULL,
    saved_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coverage_provider ON session_coverage(provider);
`

// SQLiteStore implements SessionStore backed by a SQLite database. Days are
// stored as Unix seconds of their UTC midnight.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SessionStore implementation
// ---------------------------------------------------------------------------

// SaveSessions upserts sessions and records [start, end] as covered for the
// provider, in a single transaction.
func (s *SQLiteStore) SaveSessions(ctx context.Context, provider string, start, end time.Time, sessions []domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (provider, day, open_ms, close_ms, early_close)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(provider, day) DO UPDATE SET
			open_ms     = excluded.open_ms,
			close_ms    = excluded.close_ms,
			early_close = excluded.early_close`)
	if err != nil {
		return fmt.Errorf("prepare session upsert: %w", err)
	}
	defer stmt.Close()

	for _, sess := range sessions {
		early := 0
		if sess.EarlyClose {
			early = 1
		}
		if _, err := stmt.ExecContext(ctx, provider, dayKey(sess.Day),
			sess.Open.UnixMilli(), sess.Close.UnixMilli(), early); err != nil {
			return fmt.Errorf("upsert session %s: %w", sess.Day.Format("2006-01-02"), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_coverage (provider, start_day, end_day, saved_at) VALUES (?, ?, ?, ?)`,
		provider, dayKey(start), dayKey(end), time.Now().UTC().Unix(),
	); err != nil {
		return fmt.Errorf("insert coverage: %w", err)
	}

	return tx.Commit()
}

// LoadSessions returns cached sessions in [start, end] when a single saved
// range covers the whole request.
func (s *SQLiteStore) LoadSessions(ctx context.Context, provider string, start, end time.Time) ([]domain.Session, bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM session_coverage WHERE provider = ? AND start_day <= ? AND end_day >= ?`,
		provider, dayKey(start), dayKey(end),
	).Scan(&n)
	if err != nil {
		return nil, false, fmt.Errorf("query coverage: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, open_ms, close_ms, early_close
		FROM sessions
		WHERE provider = ? AND day >= ? AND day <= ?
		ORDER BY day`,
		provider, dayKey(start), dayKey(end),
	)
	if err != nil {
		return nil, false, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var day, openMs, closeMs int64
		var early int
		if err := rows.Scan(&day, &openMs, &closeMs, &early); err != nil {
			return nil, false, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, domain.Session{
			Day:        time.Unix(day, 0).UTC(),
			Open:       time.UnixMilli(openMs).UTC(),
			Close:      time.UnixMilli(closeMs).UTC(),
			EarlyClose: early == 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, true, nil
}

// dayKey returns the Unix seconds of t's UTC calendar day.
func dayKey(t time.Time) int64 {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
