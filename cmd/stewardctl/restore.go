package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/history"
	"github.com/tnicklin/steward/store"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Save a recorded revision as the current config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid revision id %q", args[0])
		}

		log, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer log.Close()

		rev, err := log.Get(ctx, id)
		if err != nil {
			return err
		}
		doc, err := store.Parse(rev.Document)
		if err != nil {
			return fmt.Errorf("revision %d does not parse: %w", id, err)
		}

		res, err := st.Save(doc)
		if err != nil {
			return fmt.Errorf("save restored config: %w", err)
		}
		if res.BackupErr != nil {
			fmt.Fprintf(os.Stderr, "warning: backup not refreshed: %v\n", res.BackupErr)
		}

		// Save stamped a fresh last_saved, so record the document as it
		// now stands on disk.
		if data, err := doc.Encode(); err == nil {
			if _, rerr := log.Record(ctx, history.OriginRestore, res.LastSaved, data); rerr != nil {
				fmt.Fprintf(os.Stderr, "warning: revision not recorded: %v\n", rerr)
			}
		}

		fmt.Printf("Restored revision %d to %s (last_saved %s)\n", id, st.Path(), res.LastSaved)
		return nil
	},
}
