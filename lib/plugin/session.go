// Package plugin provides read access to session state.
// This file contains accessors the host uses after or between driving calls.
package plugin

import (
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Failed reports whether a backend failed a handler or reported an error.
func (s *Session) Failed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Aborted reports whether a fatal message ended the session.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Backends returns the names of loaded backends in load order.
func (s *Session) Backends() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.plugins))
	for i, p := range s.plugins {
		out[i] = p.name
	}
	return out
}

// Owner returns the name of the backend that claimed h.
func (s *Session) Owner(h handle.Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.owners[h]
	if !ok {
		return "", false
	}
	return p.name, true
}

// Claimed returns every live claimed handle.
func (s *Session) Claimed() []handle.InputFile {
	var out []handle.InputFile
	s.handles.Each(func(h handle.Handle, f handle.InputFile) bool {
		if _, ok := s.Owner(h); ok {
			out = append(out, f)
		}
		return true
	})
	return out
}

// Symbols returns a copy of the symbols contributed for h with their
// current resolutions.
func (s *Session) Symbols(h handle.Handle) ([]symbol.Symbol, error) {
	syms, st := s.symbols.Symbols(h)
	if st != status.OK {
		return nil, status.Errorf("symbols", st, "handle %s", h)
	}
	return syms, nil
}

// Diagnostics returns every message backends reported.
func (s *Session) Diagnostics() []message.Diagnostic {
	return s.channel.Diagnostics()
}

// AddedInputFiles returns the compiled files backends added.
func (s *Session) AddedInputFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.addedFiles...)
}

// AddedLibraries returns the libraries backends asked to be searched.
func (s *Session) AddedLibraries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.addedLibs...)
}

// LibraryPaths returns the extra library search paths backends set.
func (s *Session) LibraryPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.libPaths...)
}
