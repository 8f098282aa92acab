// Package history keeps a revision log of configuration documents in
// SQLite. Every save and every externally observed change is recorded,
// so operators can inspect what the config looked like at any point and
// restore an earlier revision after a bad edit.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tnicklin/steward/clock"
	"github.com/tnicklin/steward/logger"
)

// DefaultKeep is how many revisions are retained when none is configured.
const DefaultKeep = 100

// ErrNotFound is returned when a requested revision does not exist.
var ErrNotFound = errors.New("revision not found")

// Origin values describe what produced a revision.
const (
	OriginSave     = "save"
	OriginExternal = "external"
	OriginRestore  = "restore"
)

const schema = `
CREATE TABLE IF NOT EXISTS revisions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    origin      TEXT NOT NULL,
    saved_at    TEXT NOT NULL DEFAULT '',
    document    TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_revisions_recorded_at ON revisions(recorded_at);
`

// Revision is one recorded configuration document.
type Revision struct {
	ID         int64
	Origin     string
	SavedAt    string
	Document   []byte
	RecordedAt string
}

// Config holds the revision log settings loaded from the config file.
type Config struct {
	Path string `yaml:"path"`
	Keep int    `yaml:"keep"`
}

// Params configures a Log.
type Params struct {
	// Path is the SQLite database file.
	Path string

	// Keep bounds how many revisions are retained. Defaults to
	// DefaultKeep; negative disables pruning.
	Keep int

	// Clock stamps recorded_at. Defaults to the system clock.
	Clock clock.Clock

	// Logger for log events. Defaults to a no-op logger.
	Logger logger.Logger
}

// Log is the SQLite-backed revision log.
type Log struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	keep   int
	clock  clock.Clock
	logger logger.Logger
}

func NewLog(p Params) *Log {
	keep := p.Keep
	if keep == 0 {
		keep = DefaultKeep
	}
	ck := p.Clock
	if ck == nil {
		ck = clock.System()
	}
	return &Log{
		path:   p.Path,
		keep:   keep,
		clock:  ck,
		logger: p.Logger,
	}
}

func (l *Log) log() logger.Logger {
	if l.logger == nil {
		return nopLogger{}
	}
	return l.logger
}

// nopLogger is a no-op logger for when no logger is configured.
type nopLogger struct{}

func (nopLogger) DebugW(_ string, _ ...any) {}
func (nopLogger) InfoW(_ string, _ ...any)  {}
func (nopLogger) WarnW(_ string, _ ...any)  {}
func (nopLogger) ErrorW(_ string, _ ...any) {}
func (nopLogger) Sync() error               { return nil }

// Open opens the database file, creating it and its parent directory as
// needed, and applies the schema.
func (l *Log) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil {
		return nil
	}
	if l.path == "" {
		return errors.New("history path not configured")
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	database, err := sql.Open("sqlite3", fileDSN(l.path))
	if err != nil {
		return err
	}
	database.SetMaxOpenConns(1)
	database.SetMaxIdleConns(1)

	if err = database.PingContext(ctx); err != nil {
		_ = database.Close()
		return err
	}
	if _, err = database.ExecContext(ctx, schema); err != nil {
		_ = database.Close()
		return err
	}

	l.db = database
	return nil
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// Record inserts a revision and prunes the log down to the configured
// retention, returning the new revision's id. Recording the same bytes
// as the newest revision returns that revision's id without inserting.
func (l *Log) Record(ctx context.Context, origin, savedAt string, document []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return 0, errors.New("history log is not open")
	}
	if len(document) == 0 {
		return 0, errors.New("empty document")
	}

	// A change observed twice collapses to one revision: the writer
	// records its save directly and the watcher then sees the same bytes
	// on disk. Distinct saves never compare equal because every save
	// stamps a fresh last_saved.
	var lastID int64
	var lastDoc string
	err := l.db.QueryRowContext(ctx,
		`SELECT id, document FROM revisions ORDER BY id DESC LIMIT 1`,
	).Scan(&lastID, &lastDoc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return 0, err
	case lastDoc == string(document):
		return lastID, nil
	}

	recordedAt := l.clock.Now().Format(time.RFC3339Nano)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (origin, saved_at, document, recorded_at) VALUES (?, ?, ?, ?)`,
		origin, savedAt, string(document), recordedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		l.log().ErrorW("failed to record revision", "origin", origin, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if l.keep > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM revisions WHERE id NOT IN (SELECT id FROM revisions ORDER BY id DESC LIMIT ?)`,
			l.keep,
		)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	l.log().DebugW("revision recorded",
		"id", id,
		"origin", origin,
		"saved_at", savedAt,
	)
	return id, nil
}

// List returns the newest revisions first, at most limit of them. A
// non-positive limit returns up to the retention bound.
func (l *Log) List(ctx context.Context, limit int) ([]Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil, errors.New("history log is not open")
	}
	if limit <= 0 {
		limit = l.keep
		if limit <= 0 {
			limit = DefaultKeep
		}
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, origin, saved_at, document, recorded_at FROM revisions ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var rev Revision
		var doc string
		if err := rows.Scan(&rev.ID, &rev.Origin, &rev.SavedAt, &doc, &rev.RecordedAt); err != nil {
			return nil, err
		}
		rev.Document = []byte(doc)
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Get returns the revision with the given id, or ErrNotFound.
func (l *Log) Get(ctx context.Context, id int64) (*Revision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db == nil {
		return nil, errors.New("history log is not open")
	}

	var rev Revision
	var doc string
	err := l.db.QueryRowContext(ctx,
		`SELECT id, origin, saved_at, document, recorded_at FROM revisions WHERE id = ?`,
		id,
	).Scan(&rev.ID, &rev.Origin, &rev.SavedAt, &doc, &rev.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rev.Document = []byte(doc)
	return &rev, nil
}

func fileDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}
