package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one top-level config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]

		doc := st.Load().Document
		val, ok := doc[key]
		if !ok {
			return fmt.Errorf("key %q not set", key)
		}
		return printJSON(val)
	},
}
