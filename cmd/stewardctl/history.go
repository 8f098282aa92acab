package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/history"
	"github.com/tnicklin/steward/store"
)

// openHistory opens the revision log using the configured location.
func openHistory(ctx context.Context) (*history.Log, error) {
	l := history.NewLog(history.Params{
		Path: cfg.History.Path,
		Keep: cfg.History.Keep,
	})
	if err := l.Open(ctx); err != nil {
		return nil, fmt.Errorf("open history log: %w", err)
	}
	return l, nil
}

// recordSave appends the just-saved document to the revision log so
// `history` shows CLI edits even when no daemon is running. Best-effort;
// the save itself already succeeded.
func recordSave(doc store.Document, savedAt string) {
	ctx := context.Background()

	log, err := openHistory(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: revision not recorded: %v\n", err)
		return
	}
	defer log.Close()

	data, err := doc.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: revision not recorded: %v\n", err)
		return
	}
	if _, err := log.Record(ctx, history.OriginSave, savedAt, data); err != nil {
		fmt.Fprintf(os.Stderr, "warning: revision not recorded: %v\n", err)
	}
}

type revisionView struct {
	ID         int64  `json:"id"`
	Origin     string `json:"origin"`
	SavedAt    string `json:"saved_at,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded config revisions, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		log, err := openHistory(ctx)
		if err != nil {
			return err
		}
		defer log.Close()

		if len(args) == 1 {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid revision id %q", args[0])
			}
			rev, err := log.Get(ctx, id)
			if err != nil {
				return err
			}
			doc := string(rev.Document)
			fmt.Print(doc)
			if !strings.HasSuffix(doc, "\n") {
				fmt.Println()
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		revs, err := log.List(ctx, limit)
		if err != nil {
			return err
		}

		if jsonOutput {
			views := make([]revisionView, 0, len(revs))
			for _, r := range revs {
				views = append(views, revisionView{
					ID:         r.ID,
					Origin:     r.Origin,
					SavedAt:    r.SavedAt,
					RecordedAt: r.RecordedAt,
				})
			}
			return printJSON(views)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tORIGIN\tSAVED AT\tRECORDED AT")
		for _, r := range revs {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.ID, r.Origin, r.SavedAt, r.RecordedAt)
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of revisions to list")
}
