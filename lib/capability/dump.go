package capability

import (
	"fmt"
	"io"
)

// Dump writes one line per entry, up to and including the terminator.
func (v Vector) Dump(w io.Writer) error {
	for i, e := range v {
		if _, err := fmt.Fprintf(w, "%2d  %-30s  %-6s  %s\n", i, e.Tag, e.Kind, e.value()); err != nil {
			return err
		}
		if e.Tag == Null {
			return nil
		}
	}
	return ErrMissingTerminator
}
