package capability

import "fmt"

// Set is the typed view of a Vector.
type Set struct {
	RegisterClaimFile      RegisterClaimFileFunc
	RegisterAllSymbolsRead RegisterAllSymbolsReadFunc
	RegisterCleanup        RegisterCleanupFunc
	AddSymbols             AddSymbolsFunc
	GetSymbols             GetSymbolsFunc
	AddInputFile           AddInputFileFunc
	AddInputLibrary        AddInputLibraryFunc
	SetExtraLibraryPath    SetExtraLibraryPathFunc
	Message                MessageFunc
	GetInputFile           GetInputFileFunc
	ReleaseInputFile       ReleaseInputFileFunc

	OutputName string
	Options    []string

	APIVersion   int
	GoldVersion  int
	GNULDVersion int
	OutputType   OutputType

	// Unknown counts skipped entries with unrecognized tags.
	Unknown int

	seen uint64
}

// Has reports whether the decoded vector carried tag.
func (s *Set) Has(tag Tag) bool {
	return tag.Known() && s.seen&(1<<uint(tag)) != 0
}

// Supports reports whether tag may be relied on: the tag is known, present,
// and the announced API version is recent enough to define it.
func (s *Set) Supports(tag Tag) bool {
	return s.Has(tag) && s.APIVersion >= tagSince(tag)
}

// Encode builds the vector for s. API_VERSION and LINKER_OUTPUT are always
// present; other entries only when set.
func Encode(s Set) Vector {
	v := make(Vector, 0, 16+len(s.Options))

	v = append(v, IntEntry(TagAPIVersion, int64(s.APIVersion)))
	if s.GoldVersion != 0 {
		v = append(v, IntEntry(TagGoldVersion, int64(s.GoldVersion)))
	}
	if s.GNULDVersion != 0 {
		v = append(v, IntEntry(TagGNULDVersion, int64(s.GNULDVersion)))
	}
	v = append(v, IntEntry(TagLinkerOutput, int64(s.OutputType)))
	if s.OutputName != "" {
		v = append(v, StringEntry(TagOutputName, s.OutputName))
	}
	for _, opt := range s.Options {
		v = append(v, StringEntry(TagOption, opt))
	}

	fn := func(tag Tag, f any, present bool) {
		if present {
			v = append(v, FuncEntry(tag, f))
		}
	}
	fn(TagRegisterClaimFileHook, s.RegisterClaimFile, s.RegisterClaimFile != nil)
	fn(TagRegisterAllSymbolsReadHook, s.RegisterAllSymbolsRead, s.RegisterAllSymbolsRead != nil)
	fn(TagRegisterCleanupHook, s.RegisterCleanup, s.RegisterCleanup != nil)
	fn(TagAddSymbols, s.AddSymbols, s.AddSymbols != nil)
	fn(TagGetSymbols, s.GetSymbols, s.GetSymbols != nil)
	fn(TagAddInputFile, s.AddInputFile, s.AddInputFile != nil)
	fn(TagAddInputLibrary, s.AddInputLibrary, s.AddInputLibrary != nil)
	fn(TagSetExtraLibraryPath, s.SetExtraLibraryPath, s.SetExtraLibraryPath != nil)
	fn(TagMessage, s.Message, s.Message != nil)
	fn(TagGetInputFile, s.GetInputFile, s.GetInputFile != nil)
	fn(TagReleaseInputFile, s.ReleaseInputFile, s.ReleaseInputFile != nil)

	return append(v, Terminator())
}

// Decode reads v up to its terminator. Unknown tags are skipped. Options keep
// their order and may repeat; for any other repeated tag the last entry wins.
// Unbound callable slots decode as nil fields.
func Decode(v Vector) (Set, error) {
	var s Set

	entries, err := v.Entries()
	if err != nil {
		return Set{}, err
	}

	for i, e := range entries {
		if !e.Tag.Known() {
			s.Unknown++
			continue
		}
		if e.Kind != kindOf(e.Tag) || (e.Func != nil && !funcMatches(e.Tag, e.Func)) {
			return Set{}, fmt.Errorf("entry %d (%s, %s): %w", i, e.Tag, e.Kind, ErrKindMismatch)
		}
		s.seen |= 1 << uint(e.Tag)

		switch e.Tag {
		case TagAPIVersion:
			s.APIVersion = int(e.Int)
		case TagGoldVersion:
			s.GoldVersion = int(e.Int)
		case TagGNULDVersion:
			s.GNULDVersion = int(e.Int)
		case TagLinkerOutput:
			s.OutputType = OutputType(e.Int)
		case TagOption:
			s.Options = append(s.Options, e.Str)
		case TagOutputName:
			s.OutputName = e.Str
		default:
			s.bind(e.Tag, e.Func)
		}
	}
	return s, nil
}

func (s *Set) bind(tag Tag, fn any) {
	if fn == nil {
		return
	}
	switch tag {
	case TagRegisterClaimFileHook:
		s.RegisterClaimFile = fn.(RegisterClaimFileFunc)
	case TagRegisterAllSymbolsReadHook:
		s.RegisterAllSymbolsRead = fn.(RegisterAllSymbolsReadFunc)
	case TagRegisterCleanupHook:
		s.RegisterCleanup = fn.(RegisterCleanupFunc)
	case TagAddSymbols:
		s.AddSymbols = fn.(AddSymbolsFunc)
	case TagGetSymbols:
		s.GetSymbols = fn.(GetSymbolsFunc)
	case TagAddInputFile:
		s.AddInputFile = fn.(AddInputFileFunc)
	case TagMessage:
		s.Message = fn.(MessageFunc)
	case TagGetInputFile:
		s.GetInputFile = fn.(GetInputFileFunc)
	case TagReleaseInputFile:
		s.ReleaseInputFile = fn.(ReleaseInputFileFunc)
	case TagAddInputLibrary:
		s.AddInputLibrary = fn.(AddInputLibraryFunc)
	case TagSetExtraLibraryPath:
		s.SetExtraLibraryPath = fn.(SetExtraLibraryPathFunc)
	}
}
