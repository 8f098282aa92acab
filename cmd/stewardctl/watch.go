package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream config events from the bus until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		if url == "" {
			url = cfg.Events.URL
		}
		if url == "" {
			return errors.New("no event bus configured (set events.url or pass --url)")
		}

		sub, err := events.NewNATSSubscriber(url)
		if err != nil {
			return err
		}
		defer sub.Close()

		msgs, cancel, err := sub.Subscribe(events.SubjectAll)
		if err != nil {
			return err
		}
		defer cancel()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Fprintf(os.Stderr, "watching %s on %s\n", events.SubjectAll, url)
		for {
			select {
			case <-ctx.Done():
				return nil
			case m, ok := <-msgs:
				if !ok {
					return nil
				}
				if err := printEvent(m); err != nil {
					fmt.Fprintf(os.Stderr, "skipping event: %v\n", err)
				}
			}
		}
	},
}

// printEvent writes one event per line so the stream stays greppable.
func printEvent(m events.Message) error {
	if !jsonOutput {
		fmt.Printf("%s %s\n", m.Subject, m.Data)
		return nil
	}
	out, err := json.Marshal(struct {
		Subject string          `json:"subject"`
		Event   json.RawMessage `json:"event"`
	}{m.Subject, json.RawMessage(m.Data)})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	watchCmd.Flags().String("url", "", "NATS server URL (overrides events.url from the config)")
}
