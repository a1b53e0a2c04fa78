package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/banshee-data/dlo-eval/internal/harness"
)

// ExportJSON writes run as indented JSON to w.
func ExportJSON(w io.Writer, run *harness.RunResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	return nil
}
