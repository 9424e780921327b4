package capability

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTerminator = errors.New("capability vector has no NULL terminator")
	ErrKindMismatch      = errors.New("capability entry payload does not match its tag")
	ErrTrailingData      = errors.New("capability vector has data after the terminator")
)

// Entry is one tagged element of a Vector.
type Entry struct {
	// Func holds one of the callable types in this package when Kind is
	// KindFunc. It is nil for an unbound slot.
	Func any
	Str  string
	Int  int64
	Tag  Tag
	Kind Kind
}

// IntEntry creates an integer entry.
func IntEntry(tag Tag, v int64) Entry {
	return Entry{Tag: tag, Kind: KindInt, Int: v}
}

// StringEntry creates a string entry.
func StringEntry(tag Tag, s string) Entry {
	return Entry{Tag: tag, Kind: KindString, Str: s}
}

// FuncEntry creates a callable entry.
func FuncEntry(tag Tag, fn any) Entry {
	return Entry{Tag: tag, Kind: KindFunc, Func: fn}
}

// Terminator returns the Null entry that ends every vector.
func Terminator() Entry {
	return Entry{Tag: Null, Kind: KindInt}
}

func (e Entry) value() string {
	switch e.Kind {
	case KindInt:
		if e.Tag == Null {
			return "-"
		}
		if e.Tag == TagLinkerOutput {
			return OutputType(e.Int).String()
		}
		return fmt.Sprintf("%d", e.Int)
	case KindString:
		return fmt.Sprintf("%q", e.Str)
	case KindFunc:
		if e.Func == nil {
			return "<unbound>"
		}
		return "<func>"
	}
	return "?"
}

// String formats the entry as TAG=value.
func (e Entry) String() string {
	return e.Tag.String() + "=" + e.value()
}

// Vector is a terminated list of entries.
type Vector []Entry

// Len returns the number of entries before the terminator, and false when
// there is no terminator.
func (v Vector) Len() (int, bool) {
	for i, e := range v {
		if e.Tag == Null {
			return i, true
		}
	}
	return len(v), false
}

// Entries returns the entries before the terminator.
func (v Vector) Entries() (Vector, error) {
	n, ok := v.Len()
	if !ok {
		return nil, ErrMissingTerminator
	}
	return v[:n], nil
}

// Lookup returns the first entry with tag before the terminator.
func (v Vector) Lookup(tag Tag) (Entry, bool) {
	for _, e := range v {
		if e.Tag == Null {
			break
		}
		if e.Tag == tag {
			return e, true
		}
	}
	return Entry{}, false
}

// Bind sets fn on every unbound callable entry with tag and returns how many
// entries it bound.
func (v Vector) Bind(tag Tag, fn any) int {
	n := 0
	for i := range v {
		if v[i].Tag == Null {
			break
		}
		if v[i].Tag == tag && v[i].Kind == KindFunc && v[i].Func == nil {
			v[i].Func = fn
			n++
		}
	}
	return n
}
