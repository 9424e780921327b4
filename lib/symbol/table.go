package symbol

import (
	"sync"

	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/status"
)

// FileSymbols is the contribution of one claimed file, in contribution order.
type FileSymbols struct {
	Symbols []Symbol
	Handle  handle.Handle
}

// Resolver computes a resolution for every symbol in files, in place.
type Resolver interface {
	Resolve(files []FileSymbols) error
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(files []FileSymbols) error

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(files []FileSymbols) error {
	return f(files)
}

// Table stores contributed symbols per handle and serves their resolutions.
type Table struct {
	files    map[handle.Handle][]Symbol
	order    []handle.Handle
	mu       sync.RWMutex
	resolved bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		files: make(map[handle.Handle][]Symbol),
	}
}

// Add appends copies of syms to the contribution of h. Calls are additive.
// Adding after Resolve fails with Err.
func (t *Table) Add(h handle.Handle, syms []Symbol) status.Status {
	if h == handle.Invalid {
		return status.BadHandle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return status.Err
	}

	prev, ok := t.files[h]
	if !ok {
		t.order = append(t.order, h)
		prev = make([]Symbol, 0, len(syms))
	}
	for _, s := range syms {
		s.Resolution = Unknown
		prev = append(prev, s)
	}
	t.files[h] = prev
	return status.OK
}

// Discard forgets every contribution for h.
func (t *Table) Discard(h handle.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.files[h]; !ok {
		return
	}
	delete(t.files, h)
	for i, o := range t.order {
		if o == h {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Has reports whether h has a recorded contribution.
func (t *Table) Has(h handle.Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.files[h]
	return ok
}

// Count returns the number of symbols contributed for h.
func (t *Table) Count(h handle.Handle) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files[h])
}

// Handles returns the handles with contributions in first-contribution order.
func (t *Table) Handles() []handle.Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]handle.Handle, len(t.order))
	copy(out, t.order)
	return out
}

// Resolved reports whether Resolve has completed.
func (t *Table) Resolved() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolved
}

// Resolve runs r over every contribution and stores the result. Symbols the
// resolver leaves Unknown become Undefined. Resolve succeeds at most once.
func (t *Table) Resolve(r Resolver) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return status.Errorf("resolve", status.Err, "symbols already resolved")
	}

	files := make([]FileSymbols, 0, len(t.order))
	for _, h := range t.order {
		syms := make([]Symbol, len(t.files[h]))
		copy(syms, t.files[h])
		files = append(files, FileSymbols{Handle: h, Symbols: syms})
	}

	if r != nil {
		if err := r.Resolve(files); err != nil {
			return status.Wrap("resolve", status.Err, err)
		}
	}

	for _, f := range files {
		stored := t.files[f.Handle]
		for i := range stored {
			res := Unknown
			if i < len(f.Symbols) {
				res = f.Symbols[i].Resolution
			}
			if res == Unknown {
				res = Undefined
			}
			stored[i].Resolution = res
		}
	}
	t.resolved = true
	return nil
}

// Get copies the resolutions of the first len(out) symbols contributed for h
// into out. It fails with NoSyms when h has no contribution, when the second
// pass has not run yet, or when out is longer than the contribution.
func (t *Table) Get(h handle.Handle, out []Symbol) status.Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored, ok := t.files[h]
	if !ok || !t.resolved || len(out) > len(stored) {
		return status.NoSyms
	}
	for i := range out {
		out[i].Resolution = stored[i].Resolution
	}
	return status.OK
}

// Symbols returns a copy of the contribution for h.
func (t *Table) Symbols(h handle.Handle) ([]Symbol, status.Status) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stored, ok := t.files[h]
	if !ok {
		return nil, status.NoSyms
	}
	out := make([]Symbol, len(stored))
	copy(out, stored)
	return out, status.OK
}
