// Package report writes structured command outcomes as JSON, either to a
// stream (--json) or atomically to a file (--report).
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// Encode writes v to w as indented JSON followed by a newline.
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFile replaces path with the JSON encoding of v. Readers see either
// the previous report or the complete new one.
func WriteFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
