package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tnicklin/steward/clock"
	"github.com/tnicklin/steward/config"
	"github.com/tnicklin/steward/events"
	"github.com/tnicklin/steward/history"
	"github.com/tnicklin/steward/logger"
	"github.com/tnicklin/steward/mirror"
	"github.com/tnicklin/steward/notify"
	"github.com/tnicklin/steward/store"
	"github.com/tnicklin/steward/watcher"
)

func main() {
	params, err := build()
	if err != nil {
		log.Fatal(err)
	}

	if err = run(params); err != nil {
		log.Fatal(err)
	}
}

func build() (runParams, error) {
	paths := []string{"config/config.yaml", "config/secrets.yaml"}
	if p := strings.TrimSpace(os.Getenv("STEWARD_CONFIG")); p != "" {
		paths = []string{p}
	}
	cfg, err := config.LoadWithDefaults(paths...)
	if err != nil {
		return runParams{}, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		return runParams{}, fmt.Errorf("initialize logger: %w", err)
	}

	var ntpClock *clock.NTPClock
	var ck clock.Clock = clock.System()
	if cfg.Clock.NTPServer != "" {
		ntpClock = clock.NewNTP(
			clock.WithServer(cfg.Clock.NTPServer),
			clock.WithInterval(cfg.Clock.SyncInterval),
			clock.WithLogger(appLogger),
		)
		ck = ntpClock
	}

	var pub events.Publisher = &events.NoopPublisher{}
	if cfg.Events.URL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.Events.URL)
		if err != nil {
			return runParams{}, fmt.Errorf("connect event bus: %w", err)
		}
		pub = natsPub
	}

	st := store.New(store.Params{
		Path:       cfg.Store.Path,
		BackupPath: cfg.Store.BackupPath,
		Clock:      ck,
		Logger:     appLogger,
		Events:     pub,
	})

	hist := history.NewLog(history.Params{
		Path:   cfg.History.Path,
		Keep:   cfg.History.Keep,
		Clock:  ck,
		Logger: appLogger,
	})

	var alerter notify.Notifier = notify.Nop{}
	webhookURL := cfg.Notify.WebhookURL
	if webhookURL == "" {
		// The document itself may carry a webhook under webhook_url.
		webhookURL = st.Load().Document.String(store.KeyWebhookURL, "")
	}
	if webhookURL != "" {
		wh, err := notify.NewWebhook(notify.Params{
			WebhookURL: webhookURL,
			Username:   cfg.Notify.Username,
			Logger:     appLogger,
		})
		if err != nil {
			appLogger.WarnW("alerting disabled", "error", err)
		} else {
			alerter = wh
		}
	}

	var mirrors []mirror.Destination
	if cfg.Mirror.Bucket != "" {
		mctx, mcancel := context.WithTimeout(context.Background(), 10*time.Second)
		s3dest, err := mirror.NewS3Destination(mctx, cfg.Mirror)
		mcancel()
		if err != nil {
			return runParams{}, fmt.Errorf("configure s3 mirror: %w", err)
		}
		mirrors = append(mirrors, s3dest)
	}
	if cfg.Mirror.Path != "" {
		fileDest, err := mirror.NewFileDestination(cfg.Mirror.Path)
		if err != nil {
			return runParams{}, fmt.Errorf("configure file mirror: %w", err)
		}
		mirrors = append(mirrors, fileDest)
	}

	w := watcher.New(watcher.Params{
		Config:   cfg.Watcher,
		Store:    st,
		Recorder: hist,
		Events:   pub,
		Mirrors:  mirrors,
		Notifier: alerter,
		Logger:   appLogger,
	})

	return runParams{
		Config:   cfg,
		Logger:   appLogger,
		Clock:    ntpClock,
		Store:    st,
		History:  hist,
		Events:   pub,
		Notifier: alerter,
		Watcher:  w,
	}, nil
}

type runParams struct {
	Config   *config.AppConfig
	Logger   logger.Logger
	Clock    *clock.NTPClock // nil when using the system clock
	Store    *store.FileStore
	History  *history.Log
	Events   events.Publisher
	Notifier notify.Notifier
	Watcher  watcher.Watcher
}

// run starts all components and runs the daemon until shutdown.
func run(p runParams) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer p.Logger.Sync()

	if p.Clock != nil {
		if err := p.Clock.Start(ctx); err != nil {
			return fmt.Errorf("start ntp clock: %w", err)
		}
		defer p.Clock.Stop()
	}

	if err := p.History.Open(ctx); err != nil {
		return fmt.Errorf("open history log: %w", err)
	}
	defer p.History.Close()

	res := p.Store.Load()
	p.Logger.InfoW("config loaded",
		"path", p.Store.Path(),
		"source", res.Source.String(),
		"last_saved", res.Document.String(store.KeyLastSaved, ""),
	)
	if res.Degraded() {
		reason := res.PrimaryErr.Error()
		if err := p.Events.Publish(ctx, events.SubjectRecovered, events.Recovered{
			Path:   p.Store.Path(),
			Source: res.Source.String(),
			Reason: reason,
		}); err != nil {
			p.Logger.WarnW("event publish failed", "error", err)
		}
		if err := p.Notifier.Alert(ctx, "config degraded at startup",
			fmt.Sprintf("load fell back to %s: %s", res.Source, reason)); err != nil {
			p.Logger.DebugW("alert failed", "error", err)
		}
	}

	if err := p.Watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	p.Watcher.Stop()
	cancel()

	if err := p.Events.Close(); err != nil {
		p.Logger.WarnW("close event publisher", "error", err)
	}

	return nil
}
