package symbol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/status"
)

const (
	h1 = handle.Handle(1)
	h2 = handle.Handle(2)
)

func defs(names ...string) []Symbol {
	out := make([]Symbol, len(names))
	for i, n := range names {
		out[i] = Symbol{Name: n, Kind: Def}
	}
	return out
}

func TestTable_AddIsAdditive(t *testing.T) {
	tab := NewTable()

	require.Equal(t, status.OK, tab.Add(h1, defs("a", "b")))
	require.Equal(t, status.OK, tab.Add(h1, defs("c")))

	syms, st := tab.Symbols(h1)
	require.Equal(t, status.OK, st)
	require.Len(t, syms, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{syms[0].Name, syms[1].Name, syms[2].Name})
	assert.Equal(t, 3, tab.Count(h1))
	assert.Equal(t, []handle.Handle{h1}, tab.Handles())
}

func TestTable_AddCopiesAndClearsResolution(t *testing.T) {
	tab := NewTable()
	in := []Symbol{{Name: "a", Kind: Def, Resolution: PrevailingDef}}
	require.Equal(t, status.OK, tab.Add(h1, in))

	in[0].Name = "mutated"

	syms, _ := tab.Symbols(h1)
	assert.Equal(t, "a", syms[0].Name)
	assert.Equal(t, Unknown, syms[0].Resolution)
}

func TestTable_AddInvalidHandle(t *testing.T) {
	assert.Equal(t, status.BadHandle, NewTable().Add(handle.Invalid, defs("a")))
}

func TestTable_GetBeforeContribution(t *testing.T) {
	tab := NewTable()
	out := make([]Symbol, 1)
	assert.Equal(t, status.NoSyms, tab.Get(h1, out))

	_, st := tab.Symbols(h1)
	assert.Equal(t, status.NoSyms, st)
}

func TestTable_GetBeforeResolve(t *testing.T) {
	tab := NewTable()
	require.Equal(t, status.OK, tab.Add(h1, defs("a")))

	out := make([]Symbol, 1)
	assert.Equal(t, status.NoSyms, tab.Get(h1, out))
}

func TestTable_ResolveAndGet(t *testing.T) {
	tab := NewTable()
	require.Equal(t, status.OK, tab.Add(h1, defs("a", "b")))
	require.Equal(t, status.OK, tab.Add(h2, defs("c")))

	err := tab.Resolve(ResolverFunc(func(files []FileSymbols) error {
		require.Len(t, files, 2)
		assert.Equal(t, h1, files[0].Handle)
		files[0].Symbols[0].Resolution = PrevailingDef
		// files[0].Symbols[1] left Unknown on purpose.
		files[1].Symbols[0].Resolution = PreemptedIR
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, tab.Resolved())

	out := defs("a", "b")
	require.Equal(t, status.OK, tab.Get(h1, out))
	assert.Equal(t, PrevailingDef, out[0].Resolution)
	assert.Equal(t, Undefined, out[1].Resolution)

	again := defs("a", "b")
	require.Equal(t, status.OK, tab.Get(h1, again))
	assert.Equal(t, out, again)

	assert.Equal(t, status.NoSyms, tab.Get(h1, make([]Symbol, 3)))
	assert.Equal(t, status.Err, tab.Add(h1, defs("late")))
	assert.Error(t, tab.Resolve(nil))
}

func TestTable_ResolveError(t *testing.T) {
	tab := NewTable()
	require.Equal(t, status.OK, tab.Add(h1, defs("a")))

	err := tab.Resolve(ResolverFunc(func([]FileSymbols) error {
		return errors.New("boom")
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, status.ErrFailed)
	assert.False(t, tab.Resolved())
}

func TestTable_Discard(t *testing.T) {
	tab := NewTable()
	require.Equal(t, status.OK, tab.Add(h1, defs("a")))
	require.Equal(t, status.OK, tab.Add(h2, defs("b")))

	tab.Discard(h1)
	tab.Discard(h1)

	assert.False(t, tab.Has(h1))
	assert.True(t, tab.Has(h2))
	assert.Equal(t, []handle.Handle{h2}, tab.Handles())
}

func TestSymbol_Helpers(t *testing.T) {
	assert.True(t, Symbol{Kind: Common}.Defined())
	assert.False(t, Symbol{Kind: WeakUndef}.Defined())
	assert.True(t, WeakDef.Weak())
	assert.Equal(t, "f@V1", Symbol{Name: "f", Version: "V1"}.Key())
	assert.Equal(t, "prevailing_def_ironly", PrevailingDefIRonly.String())
	assert.Equal(t, "resolution(20)", Resolution(20).String())
	assert.True(t, PrevailingDef.Prevailing())
	assert.False(t, ResolvedIR.Prevailing())
	assert.Equal(t, "hidden", Hidden.String())
	assert.Equal(t, "common", Common.String())
}
