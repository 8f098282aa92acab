package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tnicklin/steward/logger"
)

var _ Notifier = (*Webhook)(nil)

const defaultUsername = "steward"

// Webhook posts alerts to a Discord webhook. Webhooks authenticate by
// URL, so no bot token is needed.
type Webhook struct {
	session  *discordgo.Session
	id       string
	token    string
	username string
	logger   logger.Logger
}

type Params struct {
	// WebhookURL is the full Discord webhook URL.
	WebhookURL string

	// Username overrides the webhook's display name. Defaults to
	// "steward".
	Username string

	// Logger for delivery events. Defaults to a no-op logger.
	Logger logger.Logger
}

func NewWebhook(p Params) (*Webhook, error) {
	id, token, err := ParseWebhookURL(p.WebhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	username := p.Username
	if username == "" {
		username = defaultUsername
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Webhook{
		session:  session,
		id:       id,
		token:    token,
		username: username,
		logger:   log,
	}, nil
}

// Alert posts the subject in bold with the detail underneath.
func (w *Webhook) Alert(ctx context.Context, subject, detail string) error {
	_, err := w.session.WebhookExecute(w.id, w.token, false, &discordgo.WebhookParams{
		Content:  formatContent(subject, detail),
		Username: w.username,
	}, discordgo.WithContext(ctx))
	if err != nil {
		w.logger.WarnW("alert delivery failed", "subject", subject, "error", err)
		return fmt.Errorf("execute webhook: %w", err)
	}
	w.logger.DebugW("alert delivered", "subject", subject)
	return nil
}

func formatContent(subject, detail string) string {
	content := "**" + subject + "**"
	if detail != "" {
		content += "\n" + detail
	}
	return content
}

// ParseWebhookURL extracts the webhook id and token from a Discord
// webhook URL. Error messages never echo the URL since the token is a
// credential.
func ParseWebhookURL(raw string) (id, token string, err error) {
	if raw == "" {
		return "", "", errors.New("webhook url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", errors.New("webhook url is malformed")
	}

	const marker = "/webhooks/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return "", "", errors.New("webhook url missing /webhooks/ segment")
	}
	rest := strings.Trim(u.Path[idx+len(marker):], "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("webhook url must end with /webhooks/<id>/<token>")
	}
	return parts[0], parts[1], nil
}
