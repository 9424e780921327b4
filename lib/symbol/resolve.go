package symbol

import "github.com/snowmerak/ldplugin/lib/handle"

// Origin says where a native (non-plugin) symbol comes from.
type Origin int32

const (
	// OriginRegular is a regular object linked into the output.
	OriginRegular Origin = iota
	// OriginShared is a shared object the output links against.
	OriginShared
)

// NativeSymbol is a definition or reference the host found in a file no
// backend claimed.
type NativeSymbol struct {
	Name    string
	Version string
	Kind    Kind
	Origin  Origin
}

func (n NativeSymbol) key() string {
	return Symbol{Name: n.Name, Version: n.Version}.Key()
}

// GlobalResolver is a whole-program resolution pass over plugin
// contributions and native symbols.
//
// Strong definitions beat weak and common ones. Between definitions of the
// same strength a regular object beats IR, and IR files are ranked by
// contribution order. Shared-object definitions only satisfy references that
// nothing else defines. Within a comdat group the first file to define any
// member keeps the whole group.
type GlobalResolver struct {
	native map[string][]NativeSymbol

	// ExportDynamic marks default-visibility prevailing IR definitions as
	// referenced from outside the IR, as when producing a shared object.
	ExportDynamic bool
}

// NewGlobalResolver creates a resolver with no native symbols.
func NewGlobalResolver() *GlobalResolver {
	return &GlobalResolver{native: make(map[string][]NativeSymbol)}
}

// AddNative records a native symbol.
func (g *GlobalResolver) AddNative(syms ...NativeSymbol) {
	for _, s := range syms {
		k := s.key()
		g.native[k] = append(g.native[k], s)
	}
}

type irRef struct {
	file  int
	index int
}

type nameState struct {
	ir []irRef

	nativeStrong bool
	nativeWeak   bool
	sharedDef    bool
	regularRef   bool
}

func strength(k Kind) int {
	switch k {
	case Def:
		return 2
	case WeakDef, Common:
		return 1
	}
	return 0
}

// Resolve implements Resolver.
func (g *GlobalResolver) Resolve(files []FileSymbols) error {
	names := make(map[string]*nameState)
	get := func(k string) *nameState {
		st, ok := names[k]
		if !ok {
			st = &nameState{}
			names[k] = st
		}
		return st
	}

	for k, list := range g.native {
		st := get(k)
		for _, n := range list {
			switch {
			case n.Origin == OriginShared && n.Kind.Defined():
				st.sharedDef = true
			case n.Kind == Def:
				st.nativeStrong = true
			case n.Kind.Defined():
				st.nativeWeak = true
			case n.Origin == OriginRegular:
				st.regularRef = true
			}
		}
	}

	comdat := make(map[string]handle.Handle)
	lostComdat := make(map[irRef]bool)
	for fi, f := range files {
		for si, s := range f.Symbols {
			st := get(s.Key())
			st.ir = append(st.ir, irRef{file: fi, index: si})
			if s.ComdatKey == "" || !s.Defined() {
				continue
			}
			owner, ok := comdat[s.ComdatKey]
			if !ok {
				comdat[s.ComdatKey] = f.Handle
			} else if owner != f.Handle {
				lostComdat[irRef{file: fi, index: si}] = true
			}
		}
	}

	for _, st := range names {
		g.resolveName(files, st, lostComdat)
	}
	return nil
}

func (g *GlobalResolver) resolveName(files []FileSymbols, st *nameState, lostComdat map[irRef]bool) {
	// Pick the prevailing IR definition, if IR wins at all.
	winner := irRef{file: -1}
	best := 0
	for _, ref := range st.ir {
		if lostComdat[ref] {
			continue
		}
		if s := strength(files[ref.file].Symbols[ref.index].Kind); s > best {
			best = s
			winner = ref
		}
	}

	nativeWins := st.nativeStrong || (st.nativeWeak && best < 2)
	irWins := winner.file >= 0 && !nativeWins

	for _, ref := range st.ir {
		sym := &files[ref.file].Symbols[ref.index]
		switch {
		case sym.Defined() && irWins && ref == winner:
			if st.regularRef || st.nativeStrong || st.nativeWeak ||
				(g.ExportDynamic && sym.Visibility == Default) {
				sym.Resolution = PrevailingDef
			} else {
				sym.Resolution = PrevailingDefIRonly
			}
		case sym.Defined() && nativeWins:
			sym.Resolution = PreemptedReg
		case sym.Defined():
			sym.Resolution = PreemptedIR
		case irWins:
			sym.Resolution = ResolvedIR
		case nativeWins:
			sym.Resolution = ResolvedExec
		case st.sharedDef:
			sym.Resolution = ResolvedDyn
		default:
			sym.Resolution = Undefined
		}
	}
}
