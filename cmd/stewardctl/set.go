package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tnicklin/steward/store"
)

// parseValue decodes raw as JSON when it parses, so numbers, booleans,
// null, arrays and objects keep their types. Anything else is stored as
// a plain string, which keeps `set webhook_url https://...` working
// without shell quoting games.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one top-level config value and save",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if key == store.KeyLastSaved {
			return fmt.Errorf("%s is maintained by the store", store.KeyLastSaved)
		}

		doc, err := st.Update(key, parseValue(args[1]))
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		recordSave(doc, doc.String(store.KeyLastSaved, ""))

		if jsonOutput {
			return printJSON(doc[key])
		}
		fmt.Printf("%s = %s (saved %s)\n", key, args[1], doc.String(store.KeyLastSaved, ""))
		return nil
	},
}
