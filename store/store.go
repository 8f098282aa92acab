// Package store persists the bot's configuration document as JSON on
// disk. Writes are crash-safe: the document is staged in a temp file,
// fsynced and atomically renamed over the primary, with a best-effort
// backup of the previous good state taken first. Reads fall back from
// primary to backup to built-in defaults, so a torn or corrupted file
// never takes the bot down.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tnicklin/steward/clock"
	"github.com/tnicklin/steward/events"
	"github.com/tnicklin/steward/logger"
)

// DefaultPath is the primary config file when none is configured.
const DefaultPath = "bot_config.json"

// tempPrefix names the staging files created next to the primary. The
// trailing * is replaced by a random suffix.
const tempPrefix = "config_tmp_*"

// Store is the configuration persistence interface.
type Store interface {
	// Path returns the primary config file path.
	Path() string

	// Load reads the document from disk, falling back to the backup and
	// then to defaults. Never fails; the result records what happened.
	Load() LoadResult

	// Save atomically writes doc to the primary file, stamping
	// last_saved first and backing up the previous state best-effort.
	Save(doc Document) (SaveResult, error)

	// Cached returns a copy of the last successfully loaded document,
	// reading from disk only when no load has succeeded yet.
	Cached() Document

	// Refresh drops the cache and reloads from disk, picking up edits
	// made by external writers.
	Refresh() LoadResult

	// Update sets a single top-level key and saves.
	Update(key string, value any) (Document, error)

	// GuildPrefix returns the command prefix for a guild, or the
	// default when none is set.
	GuildPrefix(guildID string) string

	// SetGuildPrefix stores a per-guild command prefix.
	SetGuildPrefix(guildID, prefix string) (string, error)
}

// Source identifies where a load got its document from.
type Source int

const (
	SourcePrimary Source = iota
	SourceBackup
	SourceDefaults
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	case SourceDefaults:
		return "defaults"
	default:
		return "unknown"
	}
}

// LoadResult carries the document a load produced and how it was
// obtained. PrimaryErr and BackupErr record the failures along the
// fallback chain; both nil with SourceDefaults means the primary file
// simply does not exist yet.
type LoadResult struct {
	Document   Document
	Source     Source
	PrimaryErr error
	BackupErr  error
}

// Degraded reports whether the primary file was present but unusable.
func (r LoadResult) Degraded() bool {
	return r.PrimaryErr != nil
}

// SaveResult reports the outcome of a save. BackupErr is non-nil when
// the best-effort backup step failed; the save itself may still have
// succeeded.
type SaveResult struct {
	SavedAt   time.Time
	LastSaved string
	BackupErr error
}

// Config holds the store settings loaded from the config file.
type Config struct {
	Path       string `yaml:"path"`
	BackupPath string `yaml:"backup_path"`
}

// Params configures a FileStore.
type Params struct {
	// Path is the primary config file. Defaults to DefaultPath.
	Path string

	// BackupPath overrides the backup file location. Defaults to the
	// primary path with a .backup extension inserted.
	BackupPath string

	// Clock stamps last_saved. Defaults to the system clock.
	Clock clock.Clock

	// Logger for store events. Defaults to a no-op logger.
	Logger logger.Logger

	// Events receives a Saved notification after each successful save.
	// Optional; publish failures are logged, never returned.
	Events events.Publisher
}

// FileStore is the JSON-file-backed Store implementation.
type FileStore struct {
	path       string
	backupPath string
	clock      clock.Clock
	logger     logger.Logger
	events     events.Publisher

	// rename is swapped out by tests to simulate a crash between
	// staging and publish.
	rename func(oldpath, newpath string) error

	mu    sync.RWMutex
	cache Document

	// writeMu serializes whole read-modify-write cycles so concurrent
	// writers cannot drop each other's updates.
	writeMu sync.Mutex

	// refreshMu keeps concurrent refreshes from interleaving their
	// invalidate and reload steps.
	refreshMu sync.Mutex
}

var _ Store = (*FileStore)(nil)

// New creates a FileStore. The config files are not touched until the
// first Load or Save.
func New(p Params) *FileStore {
	path := p.Path
	if path == "" {
		path = DefaultPath
	}
	backupPath := p.BackupPath
	if backupPath == "" {
		backupPath = BackupPathFor(path)
	}
	ck := p.Clock
	if ck == nil {
		ck = clock.System()
	}
	return &FileStore{
		path:       path,
		backupPath: backupPath,
		clock:      ck,
		logger:     p.Logger,
		events:     p.Events,
		rename:     os.Rename,
	}
}

// BackupPathFor derives the backup file name from the primary path:
// bot_config.json becomes bot_config.backup.json.
func BackupPathFor(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".backup" + ext
}

// Path returns the primary config file path.
func (s *FileStore) Path() string { return s.path }

// BackupPath returns the backup file path.
func (s *FileStore) BackupPath() string { return s.backupPath }

// Load implements the primary -> backup -> defaults fallback chain. A
// successfully parsed document replaces the cache; defaults are returned
// uncached so a later load can still pick up a repaired file.
func (s *FileStore) Load() LoadResult {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return LoadResult{Document: Defaults(), Source: SourceDefaults}
	}

	var doc Document
	if err == nil {
		doc, err = Parse(raw)
	}
	if err == nil {
		s.setCache(doc)
		return LoadResult{Document: doc, Source: SourcePrimary}
	}

	primaryErr := err
	s.log().WarnW("primary config unreadable, trying backup",
		"path", s.path,
		"error", err,
	)

	braw, berr := os.ReadFile(s.backupPath)
	if berr == nil {
		doc, berr = Parse(braw)
	}
	if berr != nil {
		s.log().ErrorW("config recovery failed, using defaults",
			"backup_path", s.backupPath,
			"error", berr,
		)
		return LoadResult{
			Document:   Defaults(),
			Source:     SourceDefaults,
			PrimaryErr: primaryErr,
			BackupErr:  berr,
		}
	}

	s.setCache(doc)
	s.log().InfoW("config recovered from backup", "backup_path", s.backupPath)
	return LoadResult{Document: doc, Source: SourceBackup, PrimaryErr: primaryErr}
}

// Save stamps last_saved on doc, backs up the previous on-disk state and
// atomically replaces the primary file. On error the primary keeps its
// previous contents and no staging file is left behind.
func (s *FileStore) Save(doc Document) (SaveResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.saveLocked(doc)
}

func (s *FileStore) saveLocked(doc Document) (SaveResult, error) {
	if doc == nil {
		return SaveResult{}, errors.New("nil config document")
	}

	now := s.clock.Now()
	stamp := now.Format(time.RFC3339Nano)
	doc[KeyLastSaved] = stamp
	res := SaveResult{SavedAt: now, LastSaved: stamp}

	res.BackupErr = s.writeBackup()

	data, err := doc.Encode()
	if err != nil {
		return res, fmt.Errorf("encode config: %w", err)
	}

	if err := s.writeAtomic(data); err != nil {
		s.log().ErrorW("config save failed, previous contents kept",
			"path", s.path,
			"error", err,
		)
		return res, err
	}

	s.setCache(doc)
	s.log().InfoW("config saved", "path", s.path, "last_saved", stamp)

	if s.events != nil {
		ev := events.Saved{Path: s.path, LastSaved: stamp, BackupOK: res.BackupErr == nil}
		if err := s.events.Publish(context.Background(), events.SubjectSaved, ev); err != nil {
			s.log().WarnW("event publish failed", "subject", events.SubjectSaved, "error", err)
		}
	}
	return res, nil
}

// writeBackup copies the primary file's current bytes to the backup
// location. An unparsable primary is never copied, so the last good
// backup survives whatever corrupted the primary.
func (s *FileStore) writeBackup() error {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		err = fmt.Errorf("read primary for backup: %w", err)
		s.log().DebugW("backup skipped", "error", err)
		return err
	}
	if _, err := Parse(raw); err != nil {
		err = fmt.Errorf("primary unparsable, backup kept: %w", err)
		s.log().DebugW("backup skipped", "error", err)
		return err
	}
	if err := os.WriteFile(s.backupPath, raw, 0o644); err != nil {
		err = fmt.Errorf("write backup: %w", err)
		s.log().DebugW("backup failed", "error", err)
		return err
	}
	return nil
}

// writeAtomic publishes data to the primary path via a same-directory
// temp file, fsync and rename. Any failure removes the temp file.
func (s *FileStore) writeAtomic(data []byte) (err error) {
	abs, err := filepath.Abs(s.path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), tempPrefix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = s.rename(tmpPath, abs); err != nil {
		return fmt.Errorf("publish config file: %w", err)
	}
	return nil
}

// Cached returns a copy of the cached document, loading from disk only
// when the cache is empty. Note the cache can be stale relative to
// external edits; Refresh picks those up.
func (s *FileStore) Cached() Document {
	s.mu.RLock()
	cached := s.cache
	s.mu.RUnlock()
	if cached != nil {
		return cached.Clone()
	}
	return s.Load().Document
}

// Refresh invalidates the cache and reloads from disk.
func (s *FileStore) Refresh() LoadResult {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()

	return s.Load()
}

// Update sets a single top-level key and saves the document. The whole
// load-modify-save cycle runs under the write lock.
func (s *FileStore) Update(key string, value any) (Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := s.Load().Document
	doc[key] = value
	if _, err := s.saveLocked(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GuildPrefix returns the guild's command prefix, reading the document
// fresh so external prefix changes apply without a restart.
func (s *FileStore) GuildPrefix(guildID string) string {
	doc := s.Load().Document
	if v, ok := doc.Map(KeyGuildPrefixes)[guildID].(string); ok {
		return v
	}
	return DefaultPrefix
}

// SetGuildPrefix stores prefix for guildID and saves.
func (s *FileStore) SetGuildPrefix(guildID, prefix string) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := s.Load().Document
	prefixes, ok := doc[KeyGuildPrefixes].(map[string]any)
	if !ok {
		prefixes = make(map[string]any)
		doc[KeyGuildPrefixes] = prefixes
	}
	prefixes[guildID] = prefix
	if _, err := s.saveLocked(doc); err != nil {
		return "", err
	}
	return prefix, nil
}

func (s *FileStore) setCache(doc Document) {
	s.mu.Lock()
	s.cache = doc.Clone()
	s.mu.Unlock()
}

func (s *FileStore) log() logger.Logger {
	if s.logger != nil {
		return s.logger
	}
	return nopLogger{}
}

// Parse decodes raw as a JSON object. A document whose root is
// not an object (null, array, scalar) counts as unparsable.
func Parse(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("config root is not a JSON object")
	}
	return doc, nil
}

type nopLogger struct{}

func (nopLogger) DebugW(string, ...any) {}
func (nopLogger) InfoW(string, ...any)  {}
func (nopLogger) WarnW(string, ...any)  {}
func (nopLogger) ErrorW(string, ...any) {}
func (nopLogger) Sync() error           { return nil }
