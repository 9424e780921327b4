package irscan

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Magic starts every IR file this backend understands.
var Magic = []byte("!IR")

var kinds = map[string]symbol.Kind{
	"def":       symbol.Def,
	"weakdef":   symbol.WeakDef,
	"undef":     symbol.Undef,
	"weakundef": symbol.WeakUndef,
	"common":    symbol.Common,
}

var visibilities = map[string]symbol.Visibility{
	"default":   symbol.Default,
	"protected": symbol.Protected,
	"internal":  symbol.Internal,
	"hidden":    symbol.Hidden,
}

// IsIR reports whether data starts with the IR magic.
func IsIR(data []byte) bool {
	return bytes.HasPrefix(data, Magic)
}

// Parse reads the symbol table of an IR file. After the magic line, each
// non-empty line not starting with '#' declares one symbol:
//
//	<kind> <name>[@version] [visibility] [size=N] [comdat=KEY]
func Parse(data []byte) ([]symbol.Symbol, error) {
	if !IsIR(data) {
		return nil, fmt.Errorf("missing %s magic", Magic)
	}

	var syms []symbol.Symbol
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Scan() // magic line
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sym, err := parseLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		syms = append(syms, sym)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan IR: %w", err)
	}
	return syms, nil
}

func parseLine(text string) (symbol.Symbol, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return symbol.Symbol{}, fmt.Errorf("expected kind and name, got %q", text)
	}

	kind, ok := kinds[fields[0]]
	if !ok {
		return symbol.Symbol{}, fmt.Errorf("unknown symbol kind %q", fields[0])
	}
	sym := symbol.Symbol{Kind: kind}
	sym.Name, sym.Version, _ = strings.Cut(fields[1], "@")
	if sym.Name == "" {
		return symbol.Symbol{}, fmt.Errorf("empty symbol name")
	}

	for _, attr := range fields[2:] {
		key, value, hasValue := strings.Cut(attr, "=")
		switch {
		case !hasValue:
			vis, ok := visibilities[key]
			if !ok {
				return symbol.Symbol{}, fmt.Errorf("%s: unknown attribute %q", sym.Name, key)
			}
			sym.Visibility = vis
		case key == "size":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return symbol.Symbol{}, fmt.Errorf("%s: bad size: %w", sym.Name, err)
			}
			sym.Size = n
		case key == "comdat":
			sym.ComdatKey = value
		default:
			return symbol.Symbol{}, fmt.Errorf("%s: unknown attribute %q", sym.Name, key)
		}
	}
	return sym, nil
}
