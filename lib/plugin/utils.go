// Package plugin provides utility functions for the session.
// This file contains helpers for session ID generation, reentrancy guarding and fatal detection.
package plugin

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/status"
)

// generateSessionID returns a time-ordered identifier without dashes
func generateSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return strings.ReplaceAll(id.String(), "-", "")
}

// enter marks the start of a driving call. The session is single-caller:
// a driving call issued while another is running, including from inside a
// backend handler, fails.
func (s *Session) enter(op string) error {
	if !s.busy.CompareAndSwap(false, true) {
		return status.Errorf(op, status.Err, "reentrant call while a backend handler is running")
	}
	return nil
}

func (s *Session) leave() {
	s.busy.Store(false)
}

// inHandler reports whether a driving call is in progress, which is the only
// time a backend may call host operations.
func (s *Session) inHandler() bool {
	return s.busy.Load()
}

// checkFatal turns a fatal report made during a handler into an aborted
// session.
func (s *Session) checkFatal(op string) error {
	d, ok := s.channel.Fatal()
	if !ok {
		return nil
	}

	s.mu.Lock()
	first := !s.aborted
	s.aborted = true
	s.failed = true
	s.mu.Unlock()

	if first {
		s.logger.Error("session aborted by fatal message", zap.String("op", op), zap.String("message", d.Text))
	}
	return status.Errorf(op, status.Err, "aborted: %s", d.Text)
}

func (s *Session) markFailed() {
	s.mu.Lock()
	s.failed = true
	s.mu.Unlock()
}

// expectPhase checks the current phase against the allowed set.
func (s *Session) expectPhase(op string, allowed ...Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return status.Errorf(op, status.Err, "session aborted")
	}
	for _, p := range allowed {
		if s.phase == p {
			return nil
		}
	}
	return status.Errorf(op, status.Err, "not valid in phase %s", s.phase)
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()
	s.logger.Debug("phase transition", zap.Stringer("from", prev), zap.Stringer("to", p))
}
