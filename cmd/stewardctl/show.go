package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/store"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current config document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := st.Load()

		if jsonOutput {
			return printDocument(res.Document)
		}

		fmt.Printf("Path:       %s\n", st.Path())
		fmt.Printf("Source:     %s\n", res.Source)
		if ls := res.Document.String(store.KeyLastSaved, ""); ls != "" {
			fmt.Printf("Last saved: %s\n", ls)
		}
		if res.Degraded() {
			fmt.Fprintf(os.Stderr, "warning: primary unreadable: %v\n", res.PrimaryErr)
		}
		fmt.Println()
		return printDocument(res.Document)
	},
}
