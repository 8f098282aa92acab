package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/config"
	"github.com/tnicklin/steward/events"
	"github.com/tnicklin/steward/store"
)

var (
	configPath string
	jsonOutput bool

	cfg *config.AppConfig
	st  *store.FileStore
	bus *events.NATSPublisher
)

// configFiles resolves the config file search list. The --config flag
// wins, then STEWARD_CONFIG, then the same defaults stewardd uses so
// both binaries operate on the same files.
func configFiles() []string {
	if configPath != "" {
		return []string{configPath}
	}
	if p := strings.TrimSpace(os.Getenv("STEWARD_CONFIG")); p != "" {
		return []string{p}
	}
	return []string{"config/config.yaml", "config/secrets.yaml"}
}

var rootCmd = &cobra.Command{
	Use:   "stewardctl",
	Short: "Inspect and edit the bot configuration store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadWithDefaults(configFiles()...)
		if errors.Is(err, os.ErrNotExist) {
			// No config file is fine for local use; fall back to the
			// built-in paths (bot_config.json in the working directory).
			cfg = config.Default()
		} else if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// Saves announce themselves on the bus so a running daemon and
		// its watchers hear about CLI edits promptly. Best-effort; the
		// CLI works without a reachable server.
		var pub events.Publisher
		if cfg.Events.URL != "" {
			bus, err = events.NewNATSPublisher(cfg.Events.URL)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: event bus unreachable: %v\n", err)
				bus = nil
			} else {
				pub = bus
			}
		}

		st = store.New(store.Params{
			Path:       cfg.Store.Path,
			BackupPath: cfg.Store.BackupPath,
			Events:     pub,
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if bus != nil {
			_ = bus.Flush()
			_ = bus.Close()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (overrides STEWARD_CONFIG and the default search list)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(prefixCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
