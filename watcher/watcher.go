// Package watcher polls the config file for edits made by external
// writers and drives the reactions: refresh the store's cache, record a
// revision, publish change events, update mirrors and alert operators
// when a load had to fall back.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/tnicklin/steward/events"
	"github.com/tnicklin/steward/history"
	"github.com/tnicklin/steward/logger"
	"github.com/tnicklin/steward/mirror"
	"github.com/tnicklin/steward/notify"
	"github.com/tnicklin/steward/store"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 30 * time.Second

// reactTimeout bounds one round of downstream reactions.
const reactTimeout = 30 * time.Second

// Watcher defines the interface for the config file watcher.
type Watcher interface {
	Start(ctx context.Context) error
	Stop()
}

// Recorder persists revisions of observed documents. *history.Log
// satisfies it.
type Recorder interface {
	Record(ctx context.Context, origin, savedAt string, document []byte) (int64, error)
}

// Config holds the watcher settings.
type Config struct {
	Interval time.Duration `yaml:"interval"`
}

// Defaults applies default values to the config.
func (c *Config) Defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
}

var _ Watcher = (*DefaultWatcher)(nil)

// DefaultWatcher detects changes by polling the file's mtime and size.
// Polling keeps the watcher working across editors, scp and bind mounts
// where inotify events are unreliable.
type DefaultWatcher struct {
	store    store.Store
	recorder Recorder
	events   events.Publisher
	mirrors  []mirror.Destination
	notifier notify.Notifier
	logger   logger.Logger
	interval time.Duration
	path     string

	cancel context.CancelFunc
	done   chan struct{}

	exists   bool
	lastMod  time.Time
	lastSize int64
}

// Params holds configuration for creating a new watcher.
type Params struct {
	Config Config

	// Store is refreshed when a change is detected. Required.
	Store store.Store

	// Recorder receives a revision per observed change. Optional.
	Recorder Recorder

	// Events receives change notifications. Defaults to a no-op
	// publisher.
	Events events.Publisher

	// Mirrors receive the full document after each change.
	Mirrors []mirror.Destination

	// Notifier is alerted when a load had to fall back. Defaults to a
	// no-op notifier.
	Notifier notify.Notifier

	// Logger for watcher events. Defaults to a no-op logger.
	Logger logger.Logger
}

// New creates a new DefaultWatcher with the given parameters.
func New(p Params) *DefaultWatcher {
	p.Config.Defaults()

	pub := p.Events
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	alerter := p.Notifier
	if alerter == nil {
		alerter = notify.Nop{}
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var path string
	if p.Store != nil {
		path = p.Store.Path()
	}

	return &DefaultWatcher{
		store:    p.Store,
		recorder: p.Recorder,
		events:   pub,
		mirrors:  p.Mirrors,
		notifier: alerter,
		logger:   log,
		interval: p.Config.Interval,
		path:     path,
	}
}

// Start primes the change detector against the file's current state and
// begins the poll loop. Only edits made after Start are reported.
func (w *DefaultWatcher) Start(ctx context.Context) error {
	if w.store == nil {
		return errors.New("watcher: store is required")
	}

	w.prime()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(runCtx)

	w.logger.InfoW("config watcher started",
		"path", w.path,
		"interval", w.interval.String(),
	)
	return nil
}

// Stop cancels the poll loop and waits for it to exit.
func (w *DefaultWatcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel = nil
}

func (w *DefaultWatcher) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// prime records the file's current mtime and size so the first sweep
// does not fire on pre-existing state.
func (w *DefaultWatcher) prime() {
	info, err := os.Stat(w.path)
	if err != nil {
		w.exists = false
		return
	}
	w.exists = true
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
}

// sweep performs one change check and, when the file changed, runs the
// downstream reactions.
func (w *DefaultWatcher) sweep(ctx context.Context) {
	info, err := os.Stat(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if w.exists {
				w.exists = false
				w.logger.WarnW("config file disappeared", "path", w.path)
			}
			return
		}
		w.logger.WarnW("config stat failed", "path", w.path, "error", err)
		return
	}

	changed := !w.exists || !info.ModTime().Equal(w.lastMod) || info.Size() != w.lastSize
	w.exists = true
	w.lastMod = info.ModTime()
	w.lastSize = info.Size()
	if !changed {
		return
	}

	rctx, cancel := context.WithTimeout(ctx, reactTimeout)
	defer cancel()
	w.react(rctx)
}

func (w *DefaultWatcher) react(ctx context.Context) {
	res := w.store.Refresh()
	lastSaved := res.Document.String(store.KeyLastSaved, "")

	w.logger.InfoW("config change detected",
		"path", w.path,
		"source", res.Source.String(),
		"last_saved", lastSaved,
	)

	if res.Degraded() {
		reason := res.PrimaryErr.Error()
		w.publish(ctx, events.SubjectRecovered, events.Recovered{
			Path:   w.path,
			Source: res.Source.String(),
			Reason: reason,
		})
		if err := w.notifier.Alert(ctx, "config degraded",
			fmt.Sprintf("load fell back to %s: %s", res.Source, reason)); err != nil {
			w.logger.DebugW("alert failed", "error", err)
		}
	} else {
		w.publish(ctx, events.SubjectChanged, events.Changed{
			Path:      w.path,
			Source:    res.Source.String(),
			LastSaved: lastSaved,
		})
	}

	// Defaults mean nothing usable is on disk; there is no document
	// worth recording or mirroring.
	if res.Source == store.SourceDefaults {
		return
	}

	data, err := res.Document.Encode()
	if err != nil {
		w.logger.ErrorW("encode document for replication", "error", err)
		return
	}

	if w.recorder != nil {
		if _, err := w.recorder.Record(ctx, history.OriginExternal, lastSaved, data); err != nil {
			w.logger.ErrorW("record revision failed", "error", err)
		}
	}
	for i, dest := range w.mirrors {
		if err := dest.Write(ctx, data); err != nil {
			w.logger.ErrorW("mirror write failed", "mirror", i, "error", err)
		}
	}
}

func (w *DefaultWatcher) publish(ctx context.Context, subject string, event any) {
	if err := w.events.Publish(ctx, subject, event); err != nil {
		w.logger.WarnW("event publish failed", "subject", subject, "error", err)
	}
}
