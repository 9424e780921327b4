// Package plugin provides lifecycle management for a protocol session.
// This file contains functions for creating a session and driving it through load, claim, all-symbols-read and cleanup.
package plugin

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// NewSession creates a session in PhaseUnloaded. A nil opts uses DefaultSessionOptions.
func NewSession(opts *SessionOptions) *Session {
	opts = opts.withDefaults()
	id := generateSessionID()
	logger := opts.Logger.With(zap.String("session", id))

	resolver := opts.Resolver
	if resolver == nil {
		g := symbol.NewGlobalResolver()
		g.ExportDynamic = opts.OutputType == capability.OutputDyn
		resolver = g
	}

	return &Session{
		ID:       id,
		options:  opts,
		logger:   logger,
		channel:  message.NewChannel(logger.Named("backend")),
		handles:  handle.NewRegistry(opts.Fs, logger),
		symbols:  symbol.NewTable(),
		resolver: resolver,
		phase:    PhaseUnloaded,
		owners:   make(map[handle.Handle]*loadedPlugin),
	}
}

// Load hands the capability vector to backend and records the handlers it
// registers. Every backend must be loaded before the first file is offered.
// Backends are consulted in load order.
func (s *Session) Load(name string, backend Backend) error {
	const op = "onload"
	if err := s.enter(op); err != nil {
		return err
	}
	defer s.leave()

	if err := s.expectPhase(op, PhaseUnloaded, PhaseLoaded); err != nil {
		return err
	}
	if s.loaded(name) {
		return status.Errorf(op, status.Err, "backend %s already loaded", name)
	}

	p := &loadedPlugin{name: name, backend: backend}
	v := s.vector(p)

	s.mu.Lock()
	s.loading = p
	s.mu.Unlock()

	st := backend.Onload(v)

	s.mu.Lock()
	s.loading = nil
	s.mu.Unlock()

	if err := s.checkFatal(op); err != nil {
		return err
	}
	if st != status.OK {
		s.markFailed()
		return status.Errorf(op, st, "backend %s failed to load", name)
	}

	s.mu.Lock()
	s.plugins = append(s.plugins, p)
	s.mu.Unlock()
	s.setPhase(PhaseLoaded)

	s.logger.Info("backend loaded",
		zap.String("backend", name),
		zap.Bool("claim_file", p.claimFile != nil),
		zap.Bool("all_symbols_read", p.allSymbolsRead != nil),
		zap.Bool("cleanup", p.cleanup != nil))
	return nil
}

// Claim offers file to each loaded backend in load order until one claims
// it. It returns the handle of the claimed file, or handle.Invalid when no
// backend wanted it. file must carry an open descriptor, which is only lent
// for the call.
//
// A backend returning a status other than OK fails the link.
func (s *Session) Claim(file handle.InputFile) (handle.Handle, bool, error) {
	const op = "claim_file"
	if err := s.enter(op); err != nil {
		return handle.Invalid, false, err
	}
	defer s.leave()

	if err := s.expectPhase(op, PhaseLoaded, PhaseClaiming); err != nil {
		return handle.Invalid, false, err
	}
	if file.File == nil {
		return handle.Invalid, false, status.Errorf(op, status.Err, "no open descriptor for %s", file.Name)
	}
	s.setPhase(PhaseClaiming)

	s.mu.Lock()
	plugins := append([]*loadedPlugin(nil), s.plugins...)
	s.mu.Unlock()

	for _, p := range plugins {
		if p.claimFile == nil {
			continue
		}

		h, err := s.handles.Register(file)
		if err != nil {
			return handle.Invalid, false, status.Wrap(op, status.Err, err)
		}
		offered := file
		offered.Handle = h

		s.mu.Lock()
		s.claiming = h
		s.owners[h] = p
		s.mu.Unlock()

		claimed, st := p.claimFile(offered)

		s.mu.Lock()
		s.claiming = handle.Invalid
		if !claimed || st != status.OK {
			delete(s.owners, h)
		}
		s.mu.Unlock()

		if err := s.checkFatal(op); err != nil {
			s.forget(h)
			return handle.Invalid, false, err
		}
		if st != status.OK {
			s.forget(h)
			s.markFailed()
			return handle.Invalid, false, status.Errorf(op, st, "backend %s failed on %s", p.name, file.Name)
		}
		if claimed {
			s.logger.Debug("file claimed",
				zap.String("backend", p.name),
				zap.String("file", file.Name),
				zap.Stringer("handle", h),
				zap.Int("symbols", s.symbols.Count(h)))
			return h, true, nil
		}
		s.forget(h)
	}
	return handle.Invalid, false, nil
}

// loaded reports whether a backend named name was loaded.
func (s *Session) loaded(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plugins {
		if p.name == name {
			return true
		}
	}
	return false
}

// ClaimPath opens name through the session filesystem and offers the whole
// file for claiming.
func (s *Session) ClaimPath(name string) (handle.Handle, bool, error) {
	f, err := s.options.Fs.Open(name)
	if err != nil {
		return handle.Invalid, false, fmt.Errorf("failed to open input %s: %w", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return handle.Invalid, false, fmt.Errorf("failed to stat input %s: %w", name, err)
	}

	return s.Claim(handle.InputFile{
		File: f,
		Name: name,
		Size: info.Size(),
	})
}

// forget drops an unclaimed handle and whatever was contributed under it.
func (s *Session) forget(h handle.Handle) {
	s.symbols.Discard(h)
	s.handles.Drop(h)
}

// AllSymbolsRead runs the resolver over every contribution, then invokes
// each registered all-symbols-read handler once, in load order.
func (s *Session) AllSymbolsRead() error {
	const op = "all_symbols_read"
	if err := s.enter(op); err != nil {
		return err
	}
	defer s.leave()

	if err := s.expectPhase(op, PhaseLoaded, PhaseClaiming); err != nil {
		return err
	}

	if err := s.symbols.Resolve(s.resolver); err != nil {
		s.markFailed()
		return err
	}
	s.setPhase(PhaseSymbolsFinal)

	s.mu.Lock()
	plugins := append([]*loadedPlugin(nil), s.plugins...)
	s.mu.Unlock()

	for _, p := range plugins {
		if p.allSymbolsRead == nil {
			continue
		}
		st := p.allSymbolsRead()
		if err := s.checkFatal(op); err != nil {
			return err
		}
		if st != status.OK {
			s.markFailed()
			return status.Errorf(op, st, "backend %s failed", p.name)
		}
	}
	return nil
}

// Cleanup invokes each registered cleanup handler once, releases every
// handle and terminates the session. It may be called from any phase but
// only once; every handler runs even if an earlier one fails.
func (s *Session) Cleanup() error {
	const op = "cleanup"
	if err := s.enter(op); err != nil {
		return err
	}
	defer s.leave()

	s.mu.Lock()
	phase := s.phase
	plugins := append([]*loadedPlugin(nil), s.plugins...)
	s.mu.Unlock()

	if phase == PhaseCleaningUp || phase == PhaseTerminated {
		return status.Errorf(op, status.Err, "not valid in phase %s", phase)
	}
	s.setPhase(PhaseCleaningUp)

	var errs []error
	for _, p := range plugins {
		if p.cleanup == nil {
			continue
		}
		if st := p.cleanup(); st != status.OK {
			errs = append(errs, status.Errorf(op, st, "backend %s failed", p.name))
		}
	}

	if n := s.handles.Len(); n > 0 {
		s.logger.Debug("releasing claimed handles", zap.Int("count", n))
	}
	if err := s.handles.Close(); err != nil {
		errs = append(errs, err)
	}
	s.setPhase(PhaseTerminated)

	return errors.Join(errs...)
}
