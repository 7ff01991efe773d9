package main

import (
	"encoding/json"
	"os"
)

// emit writes v to stdout as one JSON object: the shape every
// single-result command (sync, reply, resolve, ack, close, freeze, ...)
// uses (spec §6).
func emit(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(v)
}

// emitLines writes one JSON object per line, the JSONL batch mode spec §6
// names for list/worklist/actionable results.
func emitLines[T any](items []T) error {
	enc := json.NewEncoder(os.Stdout)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
