package capability

import (
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Backend handlers, registered through the REGISTER_*_HOOK entries.
type (
	// ClaimFileHandler decides whether the backend takes file. The descriptor
	// in file is only valid for the duration of the call.
	ClaimFileHandler func(file handle.InputFile) (claimed bool, st status.Status)

	// AllSymbolsReadHandler runs once every input has been offered and every
	// contributed symbol is resolved.
	AllSymbolsReadHandler func() status.Status

	// CleanupHandler runs once, last.
	CleanupHandler func() status.Status
)

// Host operations handed to the backend.
type (
	RegisterClaimFileFunc      func(ClaimFileHandler) status.Status
	RegisterAllSymbolsReadFunc func(AllSymbolsReadHandler) status.Status
	RegisterCleanupFunc        func(CleanupHandler) status.Status

	// AddSymbolsFunc contributes symbols for a claimed file.
	AddSymbolsFunc func(h handle.Handle, syms []symbol.Symbol) status.Status

	// GetSymbolsFunc fills in the resolution of the first len(syms) symbols
	// contributed for h.
	GetSymbolsFunc func(h handle.Handle, syms []symbol.Symbol) status.Status

	AddInputFileFunc        func(path string) status.Status
	AddInputLibraryFunc     func(name string) status.Status
	SetExtraLibraryPathFunc func(path string) status.Status

	// MessageFunc reports a formatted diagnostic.
	MessageFunc func(level message.Level, format string, args ...any) status.Status

	// GetInputFileFunc re-acquires a descriptor for h; the caller owns it.
	GetInputFileFunc func(h handle.Handle) (handle.InputFile, status.Status)

	// ReleaseInputFileFunc releases a descriptor obtained by GetInputFileFunc.
	ReleaseInputFileFunc func(h handle.Handle) status.Status
)

// funcMatches reports whether fn has the Go type expected for tag.
func funcMatches(tag Tag, fn any) bool {
	var ok bool
	switch tag {
	case TagRegisterClaimFileHook:
		_, ok = fn.(RegisterClaimFileFunc)
	case TagRegisterAllSymbolsReadHook:
		_, ok = fn.(RegisterAllSymbolsReadFunc)
	case TagRegisterCleanupHook:
		_, ok = fn.(RegisterCleanupFunc)
	case TagAddSymbols:
		_, ok = fn.(AddSymbolsFunc)
	case TagGetSymbols:
		_, ok = fn.(GetSymbolsFunc)
	case TagAddInputFile:
		_, ok = fn.(AddInputFileFunc)
	case TagMessage:
		_, ok = fn.(MessageFunc)
	case TagGetInputFile:
		_, ok = fn.(GetInputFileFunc)
	case TagReleaseInputFile:
		_, ok = fn.(ReleaseInputFileFunc)
	case TagAddInputLibrary:
		_, ok = fn.(AddInputLibraryFunc)
	case TagSetExtraLibraryPath:
		_, ok = fn.(SetExtraLibraryPathFunc)
	}
	return ok
}
