// Package plugin provides types for the backend side of the protocol.
//
// This file contains the Module type, which wraps the capability vector a
// backend receives in Onload and exposes the host operations as Go methods.
package plugin

import (
	"sync"

	"go.uber.org/zap"

	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
)

// Module is a backend's view of one session.
type Module struct {
	name   string
	set    capability.Set
	logger *zap.Logger

	claimedLock sync.Mutex
	claimed     []handle.Handle
}

// Name returns the backend name given to NewModule.
func (m *Module) Name() string {
	return m.name
}

// Options returns the OPTION entries the host passed.
func (m *Module) Options() []string {
	return append([]string(nil), m.set.Options...)
}

// OutputName returns the path of the artifact being produced, if the host announced it.
func (m *Module) OutputName() string {
	return m.set.OutputName
}

// OutputType returns the kind of artifact being produced.
func (m *Module) OutputType() capability.OutputType {
	return m.set.OutputType
}

// APIVersion returns the protocol version the host announced.
func (m *Module) APIVersion() int {
	return m.set.APIVersion
}

// Supports reports whether the host offers tag at its announced version.
func (m *Module) Supports(tag capability.Tag) bool {
	return m.set.Supports(tag)
}

// Claimed returns the handles this backend claimed, in claim order.
func (m *Module) Claimed() []handle.Handle {
	m.claimedLock.Lock()
	defer m.claimedLock.Unlock()
	return append([]handle.Handle(nil), m.claimed...)
}

func (m *Module) recordClaim(h handle.Handle) {
	m.claimedLock.Lock()
	m.claimed = append(m.claimed, h)
	m.claimedLock.Unlock()
}
