package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/store"
)

type fileStatus struct {
	Path      string `json:"path"`
	Status    string `json:"status"`
	LastSaved string `json:"last_saved,omitempty"`
	Error     string `json:"error,omitempty"`
}

// checkConfigFile classifies one config file the way a load would see
// it: missing, unreadable, corrupt or ok.
func checkConfigFile(path string) fileStatus {
	s := fileStatus{Path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.Status = "missing"
		return s
	}
	if err != nil {
		s.Status = "unreadable"
		s.Error = err.Error()
		return s
	}
	doc, err := store.Parse(raw)
	if err != nil {
		s.Status = "corrupt"
		s.Error = err.Error()
		return s
	}
	s.Status = "ok"
	s.LastSaved = doc.String(store.KeyLastSaved, "")
	return s
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the config and backup files parse",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		primary := checkConfigFile(st.Path())
		backup := checkConfigFile(st.BackupPath())

		if jsonOutput {
			if err := printJSON(map[string]fileStatus{
				"primary": primary,
				"backup":  backup,
			}); err != nil {
				return err
			}
		} else {
			printStatus("primary", primary)
			printStatus("backup", backup)
		}

		// A missing primary is a fresh install, not a failure. A
		// present-but-unusable one means the next load degrades.
		if primary.Status != "ok" && primary.Status != "missing" {
			return fmt.Errorf("primary config is %s", primary.Status)
		}
		return nil
	},
}

func printStatus(label string, s fileStatus) {
	line := fmt.Sprintf("%-8s %s: %s", label, s.Path, s.Status)
	if s.LastSaved != "" {
		line += fmt.Sprintf(" (last_saved %s)", s.LastSaved)
	}
	if s.Error != "" {
		line += fmt.Sprintf(" (%s)", s.Error)
	}
	fmt.Println(line)
}
