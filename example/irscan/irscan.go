// Package irscan is a sample optimization backend. It claims text IR files,
// contributes the symbols they declare and, once resolution is final, hands
// one compiled object per file with prevailing definitions back to the host.
package irscan

import (
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/plugin"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Name is the name irscan registers under.
const Name = "irscan"

type claimedFile struct {
	handle  handle.Handle
	name    string
	symbols []symbol.Symbol
}

type backend struct {
	m *plugin.Module

	objDir  string
	verbose bool

	mu    sync.Mutex
	files []claimedFile
}

// New returns the irscan backend. Recognised options are obj-dir=DIR, the
// directory compiled objects are named under, and verbose.
func New() plugin.Backend {
	return plugin.Serve(Name, func(m *plugin.Module) error {
		b := &backend{m: m, objDir: path.Dir(m.OutputName())}
		b.parseOptions()

		if err := m.OnClaimFile(b.claimFile); err != nil {
			return err
		}
		if err := m.OnAllSymbolsRead(b.allSymbolsRead); err != nil {
			return err
		}
		return m.OnCleanup(b.cleanup)
	})
}

func (b *backend) parseOptions() {
	for _, opt := range b.m.Options() {
		switch {
		case opt == "verbose":
			b.verbose = true
		case strings.HasPrefix(opt, "obj-dir="):
			b.objDir = strings.TrimPrefix(opt, "obj-dir=")
		default:
			b.m.Warnf("%s: ignoring unknown option %q", Name, opt)
		}
	}
}

func (b *backend) claimFile(f handle.InputFile) (bool, status.Status) {
	data, err := f.ReadContents()
	if err != nil {
		b.m.Errorf("%s: cannot read %s: %v", Name, f.Name, err)
		return false, status.Err
	}
	if !IsIR(data) {
		return false, status.OK
	}

	syms, err := Parse(data)
	if err != nil {
		b.m.Errorf("%s: %s: %v", Name, f.Name, err)
		return false, status.Err
	}
	if len(syms) > 0 {
		if err := b.m.AddSymbols(f.Handle, syms); err != nil {
			return false, status.Of(err)
		}
	}

	b.mu.Lock()
	b.files = append(b.files, claimedFile{handle: f.Handle, name: f.Name, symbols: syms})
	b.mu.Unlock()

	if b.verbose {
		b.m.Infof("%s: claimed %s with %d symbols", Name, f.Name, len(syms))
	}
	return true, status.OK
}

func (b *backend) allSymbolsRead() status.Status {
	b.mu.Lock()
	files := append([]claimedFile(nil), b.files...)
	b.mu.Unlock()

	for i, f := range files {
		if len(f.symbols) == 0 {
			continue
		}
		resolved, err := b.m.Resolutions(f.handle, f.symbols)
		if err != nil {
			return status.Of(err)
		}

		kept := 0
		for _, sym := range resolved {
			if sym.Resolution.Prevailing() {
				kept++
			}
			if b.verbose {
				b.m.Infof("%s: %s %s", Name, sym.Key(), sym.Resolution)
			}
		}
		if kept == 0 {
			continue
		}

		if st := b.compile(f); st != status.OK {
			return st
		}
		obj := path.Join(b.objDir, ltransName(f.name, i))
		if err := b.m.AddInputFile(obj); err != nil {
			return status.Of(err)
		}
	}
	return status.OK
}

// compile re-reads the claimed file through a fresh descriptor.
func (b *backend) compile(f claimedFile) status.Status {
	in, release, err := b.m.OpenInput(f.handle)
	if err != nil {
		b.m.Errorf("%s: cannot reopen %s: %v", Name, f.name, err)
		return status.Of(err)
	}
	defer func() {
		if err := release(); err != nil {
			b.m.Warnf("%s: releasing %s: %v", Name, f.name, err)
		}
	}()

	data, err := in.ReadContents()
	if err != nil || !IsIR(data) {
		b.m.Errorf("%s: %s changed since it was claimed", Name, f.name)
		return status.Err
	}
	return status.OK
}

func (b *backend) cleanup() status.Status {
	b.mu.Lock()
	b.files = nil
	b.mu.Unlock()
	return status.OK
}

func ltransName(input string, index int) string {
	base := strings.TrimSuffix(path.Base(input), path.Ext(input))
	return base + ".ltrans" + strconv.Itoa(index) + ".o"
}
