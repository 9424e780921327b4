// Package plugin provides the host operations exposed to backends.
// This file contains the implementations behind the ADD_SYMBOLS, GET_SYMBOLS, MESSAGE and related vector entries.
package plugin

import (
	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// hostCall checks the conditions every host operation shares: it must run
// inside a handler and the session must still be live. It returns the
// current phase.
func (s *Session) hostCall(op string) (Phase, bool) {
	if !s.inHandler() {
		s.logger.Warn("host operation called outside a handler", zap.String("op", op))
		return s.Phase(), false
	}
	phase := s.Phase()
	if phase == PhaseTerminated {
		s.logger.Warn("host operation after termination", zap.String("op", op))
		return phase, false
	}
	return phase, true
}

// owned reports whether h is a live handle claimed (or being claimed) by p.
func (s *Session) owned(p *loadedPlugin, h handle.Handle) bool {
	s.mu.Lock()
	owner, ok := s.owners[h]
	s.mu.Unlock()
	return ok && owner == p && s.handles.Valid(h)
}

func (s *Session) addSymbols(p *loadedPlugin, h handle.Handle, syms []symbol.Symbol) status.Status {
	phase, ok := s.hostCall("add_symbols")
	if !ok {
		return status.Err
	}
	if phase != PhaseClaiming {
		s.logger.Warn("add_symbols outside the claim phase", zap.Stringer("phase", phase))
		return status.Err
	}
	if !s.owned(p, h) {
		return status.BadHandle
	}
	return s.symbols.Add(h, syms)
}

func (s *Session) getSymbols(p *loadedPlugin, h handle.Handle, syms []symbol.Symbol) status.Status {
	phase, ok := s.hostCall("get_symbols")
	if !ok {
		return status.Err
	}
	if !s.owned(p, h) {
		return status.BadHandle
	}
	if phase < PhaseSymbolsFinal {
		return status.NoSyms
	}
	return s.symbols.Get(h, syms)
}

// replacementPhase checks that a backend is adding generated inputs from
// inside its all-symbols-read handler.
func (s *Session) replacementPhase(op, arg string) bool {
	phase, ok := s.hostCall(op)
	if !ok {
		return false
	}
	if phase != PhaseSymbolsFinal {
		s.logger.Warn("generated input outside all-symbols-read",
			zap.String("op", op),
			zap.Stringer("phase", phase))
		return false
	}
	return arg != ""
}

func (s *Session) addInputFile(path string) status.Status {
	if !s.replacementPhase("add_input_file", path) {
		return status.Err
	}
	s.mu.Lock()
	s.addedFiles = append(s.addedFiles, path)
	s.mu.Unlock()
	s.logger.Debug("input file added", zap.String("path", path))
	return status.OK
}

func (s *Session) addInputLibrary(name string) status.Status {
	if !s.replacementPhase("add_input_library", name) {
		return status.Err
	}
	s.mu.Lock()
	s.addedLibs = append(s.addedLibs, name)
	s.mu.Unlock()
	return status.OK
}

func (s *Session) setExtraLibraryPath(path string) status.Status {
	if !s.replacementPhase("set_extra_library_path", path) {
		return status.Err
	}
	s.mu.Lock()
	s.libPaths = append(s.libPaths, path)
	s.mu.Unlock()
	return status.OK
}

func (s *Session) message(level message.Level, format string, args ...any) status.Status {
	if _, ok := s.hostCall("message"); !ok {
		return status.Err
	}
	st := s.channel.Reportf(level, format, args...)
	if st == status.OK && level == message.Error {
		s.markFailed()
	}
	return st
}

func (s *Session) getInputFile(p *loadedPlugin, h handle.Handle) (handle.InputFile, status.Status) {
	if _, ok := s.hostCall("get_input_file"); !ok {
		return handle.InputFile{}, status.Err
	}
	if !s.owned(p, h) {
		return handle.InputFile{}, status.BadHandle
	}
	return s.handles.Acquire(h)
}

func (s *Session) releaseInputFile(p *loadedPlugin, h handle.Handle) status.Status {
	if _, ok := s.hostCall("release_input_file"); !ok {
		return status.Err
	}
	if !s.owned(p, h) {
		return status.BadHandle
	}
	return s.handles.ReleaseDescriptor(h)
}
