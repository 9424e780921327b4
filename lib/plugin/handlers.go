// Package plugin provides handler registration functionality.
// This file contains the register-hook entries a backend calls during Onload.
package plugin

import (
	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// registering returns true if p is the backend currently inside Onload.
func (s *Session) registering(p *loadedPlugin, hook string) bool {
	s.mu.Lock()
	ok := s.loading == p
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("handler registration outside onload rejected",
			zap.String("backend", p.name),
			zap.String("hook", hook))
	}
	return ok
}

func (s *Session) warnOverwrite(p *loadedPlugin, hook string) {
	s.logger.Warn("handler re-registered, previous registration replaced",
		zap.String("backend", p.name),
		zap.String("hook", hook))
}

// registerClaimFile records the claim-file handler of p. Registering again
// replaces the previous handler.
func (s *Session) registerClaimFile(p *loadedPlugin, h capability.ClaimFileHandler) status.Status {
	if h == nil || !s.registering(p, "claim_file") {
		return status.Err
	}
	if p.claimFile != nil {
		s.warnOverwrite(p, "claim_file")
	}
	p.claimFile = h
	return status.OK
}

// registerAllSymbolsRead records the all-symbols-read handler of p.
func (s *Session) registerAllSymbolsRead(p *loadedPlugin, h capability.AllSymbolsReadHandler) status.Status {
	if h == nil || !s.registering(p, "all_symbols_read") {
		return status.Err
	}
	if p.allSymbolsRead != nil {
		s.warnOverwrite(p, "all_symbols_read")
	}
	p.allSymbolsRead = h
	return status.OK
}

// registerCleanup records the cleanup handler of p.
func (s *Session) registerCleanup(p *loadedPlugin, h capability.CleanupHandler) status.Status {
	if h == nil || !s.registering(p, "cleanup") {
		return status.Err
	}
	if p.cleanup != nil {
		s.warnOverwrite(p, "cleanup")
	}
	p.cleanup = h
	return status.OK
}

// vector builds the capability vector handed to p. Operations taking a
// handle are bound to p so a backend only reaches the files it claimed.
func (s *Session) vector(p *loadedPlugin) capability.Vector {
	return capability.Encode(capability.Set{
		APIVersion:  capability.APIVersion,
		GoldVersion: s.options.HostVersion,
		OutputType:  s.options.OutputType,
		OutputName:  s.options.OutputName,
		Options:     s.options.PluginOptions,

		RegisterClaimFile: func(h capability.ClaimFileHandler) status.Status {
			return s.registerClaimFile(p, h)
		},
		RegisterAllSymbolsRead: func(h capability.AllSymbolsReadHandler) status.Status {
			return s.registerAllSymbolsRead(p, h)
		},
		RegisterCleanup: func(h capability.CleanupHandler) status.Status {
			return s.registerCleanup(p, h)
		},
		AddSymbols: func(h handle.Handle, syms []symbol.Symbol) status.Status {
			return s.addSymbols(p, h, syms)
		},
		GetSymbols: func(h handle.Handle, syms []symbol.Symbol) status.Status {
			return s.getSymbols(p, h, syms)
		},
		AddInputFile:        s.addInputFile,
		AddInputLibrary:     s.addInputLibrary,
		SetExtraLibraryPath: s.setExtraLibraryPath,
		Message:             s.message,
		GetInputFile: func(h handle.Handle) (handle.InputFile, status.Status) {
			return s.getInputFile(p, h)
		},
		ReleaseInputFile: func(h handle.Handle) status.Status {
			return s.releaseInputFile(p, h)
		},
	})
}
