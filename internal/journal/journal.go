// Package journal keeps a local history of orchestration operations.
//
// Every tool call (state reads and updates, validator runs, catalog
// listings) is recorded with its outcome so an agent can see what happened
// in earlier sessions. It uses SQLite in WAL mode; the database lives
// outside the project (~/.apex-spec by default) so projects stay clean.
//
// The journal is best-effort. Callers log recording failures and carry on;
// an operation never fails because its history could not be written.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is a package-level variable for testability.
var timeNow = time.Now

const (
	// DefaultLimit is the number of entries Recent returns when limit <= 0.
	DefaultLimit = 20
	// MaxLimit caps Recent.
	MaxLimit = 100

	dbFileName = "journal.db"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Entry is one recorded operation.
type Entry struct {
	ID         string `json:"id"`
	Tool       string `json:"tool"`
	ProjectDir string `json:"project_dir"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds journal configuration.
type Config struct {
	DataDir string
	// MaxDetailLength truncates Entry.Detail before it is stored.
	MaxDetailLength int
}

// DefaultConfig returns the default configuration for the journal.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:         filepath.Join(home, ".apex-spec"),
		MaxDetailLength: 2000,
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed journal. Safe for concurrent use.
type Store struct {
	db  *sql.DB
	cfg Config
}

// New creates the data directory if needed, opens SQLite with WAL mode and
// runs migrations.
func New(cfg Config) (*Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("journal: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, dbFileName)
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, cfg: cfg}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS operations (
			id          TEXT    PRIMARY KEY,
			tool        TEXT    NOT NULL,
			project_dir TEXT    NOT NULL DEFAULT '',
			outcome     TEXT    NOT NULL,
			detail      TEXT    NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_operations_project_created
			ON operations(project_dir, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Record stores an entry. ID and CreatedAt are filled in when empty.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Tool == "" {
		return Entry{}, fmt.Errorf("journal: tool is required")
	}
	if e.Outcome == "" {
		return Entry{}, fmt.Errorf("journal: outcome is required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == "" {
		e.CreatedAt = Now()
	}
	e.Detail = Truncate(e.Detail, s.cfg.MaxDetailLength)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (id, tool, project_dir, outcome, detail, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tool, e.ProjectDir, e.Outcome, e.Detail, e.DurationMS, e.CreatedAt,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("journal: insert: %w", err)
	}
	return e, nil
}

// Recent returns the newest entries, optionally filtered by project.
func (s *Store) Recent(ctx context.Context, projectDir string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	query := `SELECT id, tool, project_dir, outcome, detail, duration_ms, created_at
		FROM operations`
	args := []any{}
	if projectDir != "" {
		query += ` WHERE project_dir = ?`
		args = append(args, projectDir)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Tool, &e.ProjectDir, &e.Outcome, &e.Detail, &e.DurationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: rows: %w", err)
	}
	return entries, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Truncate shortens s to max runes, appending "..." when cut. max <= 0
// disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

// Now returns the current UTC time with millisecond precision, which keeps
// lexical and chronological order aligned.
func Now() string {
	return timeNow().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
