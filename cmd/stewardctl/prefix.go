package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/store"
)

var prefixCmd = &cobra.Command{
	Use:   "prefix <guild-id> [prefix]",
	Short: "Get or set a guild's command prefix",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		guildID := args[0]

		if len(args) == 1 {
			fmt.Println(st.GuildPrefix(guildID))
			return nil
		}

		prefix, err := st.SetGuildPrefix(guildID, args[1])
		if err != nil {
			return fmt.Errorf("save prefix: %w", err)
		}

		doc := st.Cached()
		recordSave(doc, doc.String(store.KeyLastSaved, ""))

		fmt.Printf("guild %s prefix = %s\n", guildID, prefix)
		return nil
	},
}
