// Package notify delivers operator alerts about configuration problems
// (recovery from backup, failed saves noticed by the watcher) over a
// Discord webhook.
package notify

import "context"

// Notifier defines the interface for delivering alerts.
type Notifier interface {
	Alert(ctx context.Context, subject, detail string) error
}

// Config holds the notifier settings loaded from the config file. An
// empty webhook URL disables alerting unless the config document itself
// carries one under its webhook_url key.
type Config struct {
	WebhookURL string `yaml:"webhook_url"`
	Username   string `yaml:"username"`
}

// Nop is a Notifier that does nothing.
type Nop struct{}

var _ Notifier = Nop{}

func (Nop) Alert(ctx context.Context, subject, detail string) error { return nil }
