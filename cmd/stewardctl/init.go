package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a fresh default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if _, err := os.Stat(st.Path()); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", st.Path())
		}

		doc := store.Defaults()
		res, err := st.Save(doc)
		if err != nil {
			return fmt.Errorf("write defaults: %w", err)
		}
		recordSave(doc, res.LastSaved)

		fmt.Printf("Wrote %s (last_saved %s)\n", st.Path(), res.LastSaved)
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
}
