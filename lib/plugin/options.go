// Package plugin provides session configuration.
// This file contains SessionOptions and its defaults.
package plugin

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/symbol"
)

// HostVersion is the product version the host announces in the GOLD_VERSION entry.
const HostVersion = 100

// SessionOptions defines options for creating a Session
type SessionOptions struct {
	// Fs is where claimed files are re-opened from. Defaults to the OS filesystem.
	Fs afero.Fs

	// Logger receives protocol and diagnostic output. Defaults to a no-op logger.
	Logger *zap.Logger

	// Resolver is the whole-program resolution pass run before
	// all-symbols-read. Defaults to a GlobalResolver with no native symbols.
	Resolver symbol.Resolver

	// OutputName is the path of the artifact being produced.
	OutputName string

	// PluginOptions are passed verbatim as OPTION entries.
	PluginOptions []string

	// OutputType is the kind of artifact being produced.
	OutputType capability.OutputType

	// HostVersion is announced to backends. Zero omits the entry.
	HostVersion int
}

// DefaultSessionOptions returns options producing an executable with no plugin options
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		Fs:          afero.NewOsFs(),
		Logger:      zap.NewNop(),
		OutputType:  capability.OutputExec,
		HostVersion: HostVersion,
	}
}

func (o *SessionOptions) withDefaults() *SessionOptions {
	out := DefaultSessionOptions()
	if o == nil {
		return out
	}
	*out = *o
	if out.Fs == nil {
		out.Fs = afero.NewOsFs()
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}
