package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// dbTimeout bounds the synchronous run bookkeeping done by sessions.
const dbTimeout = 5 * time.Second

// ErrRunNotFound is returned when a run ID has no journal entry.
var ErrRunNotFound = errors.New("run not found")

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// RunRow is one play-through from start to game over (or shutdown).
type RunRow struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"sid"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Score     int        `json:"score"`
	Ticks     uint64     `json:"ticks"`
	Deaths    int        `json:"deaths"`
}

// RunEventRow is one journaled core event.
type RunEventRow struct {
	RunID  int64  `json:"run_id"`
	Tick   uint64 `json:"tick"`
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
	Points int    `json:"points"`
}

// RunSummary is a run with its per-kind event tallies.
type RunSummary struct {
	RunRow
	Kills  int            `json:"kills"`
	ByKind map[string]int `json:"by_kind"`
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// WAL lets the journal writer and HTTP readers proceed together
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		score INTEGER NOT NULL DEFAULT 0,
		ticks INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS run_events (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		entity TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
	CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// GetSetting returns a stored setting, or "" if unset.
func (db *DB) GetSetting(key string) (string, error) {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// SetSetting stores a setting, replacing any previous value.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// StartRun records the beginning of a run and returns its ID
func (db *DB) StartRun(ctx context.Context, sessionID string, at time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO runs (session_id, started_at) VALUES (?, ?)",
		sessionID, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun stores the final tally of a run
func (db *DB) FinishRun(ctx context.Context, id int64, at time.Time, score int, ticks uint64, deaths int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE runs SET ended_at = ?, score = ?, ticks = ?, deaths = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339Nano), score, ticks, deaths, id,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %d: %w", id, ErrRunNotFound)
	}
	return nil
}

// GetRun returns one run
func (db *DB) GetRun(ctx context.Context, id int64) (*RunRow, error) {
	var (
		r       RunRow
		started string
		ended   sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, session_id, started_at, ended_at, score, ticks, deaths FROM runs WHERE id = ?", id,
	).Scan(&r.ID, &r.SessionID, &started, &ended, &r.Score, &r.Ticks, &r.Deaths)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %d started_at: %w", id, err)
	}
	if ended.Valid {
		t, err := time.Parse(time.RFC3339Nano, ended.String)
		if err != nil {
			return nil, fmt.Errorf("run %d ended_at: %w", id, err)
		}
		r.EndedAt = &t
	}
	return &r, nil
}

// RunEvents returns the journaled events of a run in tick order
func (db *DB) RunEvents(ctx context.Context, id int64) ([]RunEventRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT run_id, tick, kind, entity, points FROM run_events WHERE run_id = ? ORDER BY tick, rowid", id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RunEventRow
	for rows.Next() {
		var r RunEventRow
		if err := rows.Scan(&r.RunID, &r.Tick, &r.Kind, &r.Entity, &r.Points); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// RunSummary reads back a run with kill counts per enemy kind
func (db *DB) RunSummary(ctx context.Context, id int64) (*RunSummary, error) {
	run, err := db.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT entity, COUNT(*) FROM run_events WHERE run_id = ? AND kind = 'killed' GROUP BY entity", id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sum := &RunSummary{RunRow: *run, ByKind: make(map[string]int)}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		sum.ByKind[kind] = n
		sum.Kills += n
	}
	return sum, rows.Err()
}
