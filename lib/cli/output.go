package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/plugin"
)

// Report is what run prints.
type Report struct {
	Output       string             `json:"output"`
	OutputType   string             `json:"output_type"`
	Backends     []string           `json:"backends"`
	Inputs       []InputReport      `json:"inputs"`
	Added        []string           `json:"added_inputs,omitempty"`
	Libraries    []string           `json:"added_libraries,omitempty"`
	LibraryPaths []string           `json:"library_paths,omitempty"`
	Diagnostics  []DiagnosticReport `json:"diagnostics,omitempty"`
	Failed       bool               `json:"failed"`
}

// InputReport describes one offered input.
type InputReport struct {
	Path    string         `json:"path"`
	Claimed bool           `json:"claimed"`
	Backend string         `json:"backend,omitempty"`
	Symbols []SymbolReport `json:"symbols,omitempty"`

	handle handle.Handle
}

// SymbolReport is one contributed symbol and its resolution.
type SymbolReport struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Resolution string `json:"resolution"`
}

// DiagnosticReport is one message a backend reported.
type DiagnosticReport struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// collect copies everything the session recorded into r.
func (r *Report) collect(s *plugin.Session) {
	r.Backends = s.Backends()
	for i := range r.Inputs {
		in := &r.Inputs[i]
		if !in.Claimed {
			continue
		}
		syms, err := s.Symbols(in.handle)
		if err != nil {
			continue
		}
		for _, sym := range syms {
			in.Symbols = append(in.Symbols, SymbolReport{
				Name:       sym.Key(),
				Kind:       sym.Kind.String(),
				Resolution: sym.Resolution.String(),
			})
		}
	}
	r.Added = s.AddedInputFiles()
	r.Libraries = s.AddedLibraries()
	r.LibraryPaths = s.LibraryPaths()
	for _, d := range s.Diagnostics() {
		r.Diagnostics = append(r.Diagnostics, DiagnosticReport{Level: d.Level.String(), Text: d.Text})
	}
}

func writeReport(w io.Writer, format string, r *Report) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "output: %s (%s)\n", r.Output, r.OutputType)
	fmt.Fprintf(&b, "backends: %s\n", strings.Join(r.Backends, ", "))
	for _, in := range r.Inputs {
		if !in.Claimed {
			fmt.Fprintf(&b, "%s: native\n", in.Path)
			continue
		}
		fmt.Fprintf(&b, "%s: claimed by %s\n", in.Path, in.Backend)
		for _, sym := range in.Symbols {
			fmt.Fprintf(&b, "  %-20s %-9s %s\n", sym.Name, sym.Kind, sym.Resolution)
		}
	}
	for _, p := range r.Added {
		fmt.Fprintf(&b, "added input: %s\n", p)
	}
	for _, l := range r.Libraries {
		fmt.Fprintf(&b, "added library: %s\n", l)
	}
	for _, p := range r.LibraryPaths {
		fmt.Fprintf(&b, "library path: %s\n", p)
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(&b, "%s: %s\n", d.Level, d.Text)
	}
	if r.Failed {
		b.WriteString("link failed\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
