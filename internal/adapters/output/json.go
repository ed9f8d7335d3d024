package output

import (
	"encoding/json"
	"io"
	"os"
)

// JSONPrinter renders results as indented JSON. A zero value writes to
// stdout.
type JSONPrinter struct {
	W io.Writer
}

// Print encodes v as JSON.
func (p JSONPrinter) Print(v any) error {
	w := p.W
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
