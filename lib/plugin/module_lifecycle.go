// Package plugin provides lifecycle management for Module.
//
// This file contains functions for creating a Module from the vector passed to
// Onload and for adapting a setup function into a Backend.
package plugin

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/message"
	"github.com/snowmerak/ldplugin/lib/status"
)

// ErrUnsupportedHost is returned when the host's vector lacks an entry the
// backend cannot work without.
var ErrUnsupportedHost = errors.New("host does not provide a required capability")

// NewModule decodes v. The vector must announce API version 1 or later and
// provide the MESSAGE entry.
func NewModule(name string, v capability.Vector) (*Module, error) {
	set, err := capability.Decode(v)
	if err != nil {
		return nil, fmt.Errorf("failed to decode capability vector: %w", err)
	}
	if set.APIVersion < capability.APIVersion {
		return nil, fmt.Errorf("%w: api version %d", ErrUnsupportedHost, set.APIVersion)
	}
	if set.Message == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHost, capability.TagMessage)
	}

	m := &Module{
		name:   name,
		set:    set,
		logger: Logger().Named(name),
	}
	if set.Unknown > 0 {
		m.logger.Debug("ignored unknown capability entries", zap.Int("count", set.Unknown))
	}
	return m, nil
}

// Serve adapts setup into a Backend. Onload builds a Module from the vector
// and runs setup, which registers handlers. A setup error is reported to the
// host as an error message and fails the load.
func Serve(name string, setup func(m *Module) error) Backend {
	return OnloadFunc(func(v capability.Vector) status.Status {
		m, err := NewModule(name, v)
		if err != nil {
			// Without a usable vector there is no channel to report through.
			if set, derr := capability.Decode(v); derr == nil && set.Message != nil {
				set.Message(message.Error, "%s: %v", name, err)
			}
			Logger().Error("backend failed to start", zap.String("backend", name), zap.Error(err))
			return status.Err
		}
		if err := setup(m); err != nil {
			m.Errorf("%v", err)
			return status.Of(err)
		}
		return status.OK
	})
}
