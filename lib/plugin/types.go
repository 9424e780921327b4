// Package plugin provides core types for the host side of the plugin protocol.
// This file contains the phase enumeration, the Backend interface and the Session struct definition.
package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// Phase is the position of a session in the protocol state machine.
type Phase int32

const (
	PhaseUnloaded     Phase = iota // no backend loaded yet
	PhaseLoaded                    // at least one backend loaded, no file offered
	PhaseClaiming                  // input files are being offered
	PhaseSymbolsFinal              // resolution done, all-symbols-read handlers run
	PhaseCleaningUp                // cleanup handlers run
	PhaseTerminated                // nothing further is valid
)

// String returns the string representation of Phase
func (p Phase) String() string {
	switch p {
	case PhaseUnloaded:
		return "Unloaded"
	case PhaseLoaded:
		return "Loaded"
	case PhaseClaiming:
		return "Claiming"
	case PhaseSymbolsFinal:
		return "SymbolsFinal"
	case PhaseCleaningUp:
		return "CleaningUp"
	case PhaseTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("Phase(%d)", int32(p))
	}
}

// Backend is the load entry point of an optimization backend. Onload is
// called exactly once with the host's capability vector; the backend
// registers its handlers through the vector before returning.
type Backend interface {
	Onload(v capability.Vector) status.Status
}

// OnloadFunc is a convenience type for converting functions to Backend
type OnloadFunc func(v capability.Vector) status.Status

// Onload implements Backend interface
func (f OnloadFunc) Onload(v capability.Vector) status.Status {
	return f(v)
}

// loadedPlugin holds the handlers one backend registered during Onload.
type loadedPlugin struct {
	name    string
	backend Backend

	claimFile      capability.ClaimFileHandler
	allSymbolsRead capability.AllSymbolsReadHandler
	cleanup        capability.CleanupHandler
}

// Session owns one run of the protocol: the phase, the handle registry, the
// symbol table and every loaded backend's handlers.
type Session struct {
	ID string

	options  *SessionOptions
	logger   *zap.Logger
	channel  *message.Channel
	handles  *handle.Registry
	symbols  *symbol.Table
	resolver symbol.Resolver

	mu      sync.Mutex
	phase   Phase
	plugins []*loadedPlugin
	owners  map[handle.Handle]*loadedPlugin

	// Set only while a backend's Onload or claim handler is running.
	loading  *loadedPlugin
	claiming handle.Handle

	// busy is held for the dynamic extent of every driving call.
	busy    atomic.Bool
	failed  bool
	aborted bool

	addedFiles []string
	addedLibs  []string
	libPaths   []string
}
