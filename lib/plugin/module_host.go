// Package plugin provides host operation wrappers for Module.
//
// This file contains Go-style methods over the host operations in the
// capability vector. Mandatory operations that fail with ERR are escalated
// to a fatal report, which aborts the session on the host side.
package plugin

import (
	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// escalate reports a fatal message when a mandatory operation returned ERR.
func (m *Module) escalate(op string, st status.Status) error {
	if st == status.OK {
		return nil
	}
	if st == status.Err {
		m.Fatalf("%s: %s failed", m.name, op)
	}
	return status.Check(op, st)
}

func (m *Module) missing(op string, tag capability.Tag) error {
	return status.Errorf(op, status.Err, "host does not provide %s", tag)
}

// AddSymbols contributes syms for the claimed file h. It must be called from
// the claim-file handler that claims h.
func (m *Module) AddSymbols(h handle.Handle, syms []symbol.Symbol) error {
	const op = "add_symbols"
	if m.set.AddSymbols == nil {
		return m.missing(op, capability.TagAddSymbols)
	}
	return m.escalate(op, m.set.AddSymbols(h, syms))
}

// Resolutions returns the symbols contributed for h with the host's
// resolution filled in. Before all-symbols-read it fails with NO_SYMS.
func (m *Module) Resolutions(h handle.Handle, syms []symbol.Symbol) ([]symbol.Symbol, error) {
	const op = "get_symbols"
	if m.set.GetSymbols == nil {
		return nil, m.missing(op, capability.TagGetSymbols)
	}
	out := make([]symbol.Symbol, len(syms))
	copy(out, syms)
	if err := m.escalate(op, m.set.GetSymbols(h, out)); err != nil {
		return nil, err
	}
	return out, nil
}

// AddInputFile hands a compiled native object back to the host.
func (m *Module) AddInputFile(path string) error {
	const op = "add_input_file"
	if m.set.AddInputFile == nil {
		return m.missing(op, capability.TagAddInputFile)
	}
	return m.escalate(op, m.set.AddInputFile(path))
}

// AddInputLibrary asks the host to search library name.
func (m *Module) AddInputLibrary(name string) error {
	const op = "add_input_library"
	if m.set.AddInputLibrary == nil {
		return m.missing(op, capability.TagAddInputLibrary)
	}
	return status.Check(op, m.set.AddInputLibrary(name))
}

// SetExtraLibraryPath adds a directory to the host's library search path.
func (m *Module) SetExtraLibraryPath(path string) error {
	const op = "set_extra_library_path"
	if m.set.SetExtraLibraryPath == nil {
		return m.missing(op, capability.TagSetExtraLibraryPath)
	}
	return status.Check(op, m.set.SetExtraLibraryPath(path))
}

// OpenInput re-acquires a descriptor for the claimed file h. The returned
// release func must be called once the backend is done reading.
func (m *Module) OpenInput(h handle.Handle) (handle.InputFile, func() error, error) {
	const op = "get_input_file"
	if m.set.GetInputFile == nil || m.set.ReleaseInputFile == nil {
		return handle.InputFile{}, nil, m.missing(op, capability.TagGetInputFile)
	}
	f, st := m.set.GetInputFile(h)
	if st != status.OK {
		return handle.InputFile{}, nil, status.Check(op, st)
	}
	release := func() error {
		return status.Check("release_input_file", m.set.ReleaseInputFile(h))
	}
	return f, release, nil
}

func (m *Module) report(level message.Level, format string, args ...any) {
	if st := m.set.Message(level, format, args...); st != status.OK {
		m.logger.Sugar().Warnf("message rejected by host (%s): "+format, append([]any{st}, args...)...)
	}
}

// Infof reports an informational message.
func (m *Module) Infof(format string, args ...any) { m.report(message.Info, format, args...) }

// Warnf reports a warning.
func (m *Module) Warnf(format string, args ...any) { m.report(message.Warning, format, args...) }

// Errorf reports an error. The link continues but is marked failed.
func (m *Module) Errorf(format string, args ...any) { m.report(message.Error, format, args...) }

// Fatalf reports a fatal error. The host aborts the session.
func (m *Module) Fatalf(format string, args ...any) { m.report(message.Fatal, format, args...) }
