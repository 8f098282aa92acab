package main

import (
	"encoding/json"
	"fmt"

	"github.com/tnicklin/steward/store"
)

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printDocument writes doc the same way the store lays it out on disk.
func printDocument(doc store.Document) error {
	return printJSON(doc)
}
