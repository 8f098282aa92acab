// Package events publishes config lifecycle notifications so other
// services (dashboards, moderation tooling) can react to configuration
// changes without polling the file themselves.
package events

import "context"

// Subject constants. SubjectAll matches every steward config event.
const (
	SubjectSaved     = "steward.config.saved"
	SubjectChanged   = "steward.config.changed"
	SubjectRecovered = "steward.config.recovered"

	SubjectAll = "steward.config.>"
)

// Saved is emitted after a successful save through the store.
type Saved struct {
	Path      string `json:"path"`
	LastSaved string `json:"last_saved"`
	BackupOK  bool   `json:"backup_ok"`
}

// Changed is emitted when the watcher notices the file was replaced by
// an external writer.
type Changed struct {
	Path      string `json:"path"`
	Source    string `json:"source"`
	LastSaved string `json:"last_saved,omitempty"`
}

// Recovered is emitted when a load could not use the primary file and
// fell back to the backup or to defaults.
type Recovered struct {
	Path   string `json:"path"`
	Source string `json:"source"`
	Reason string `json:"reason,omitempty"`
}

// Config holds the event bus settings. An empty URL disables publishing.
type Config struct {
	URL string `yaml:"url"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
	Close() error
}
