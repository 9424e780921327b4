// Package plugin provides handler registration for Module.
//
// This file contains functions for registering the claim-file,
// all-symbols-read and cleanup handlers with the host.
package plugin

import (
	"github.com/snowmerak/ldplugin/lib/capability"
	"github.com/snowmerak/ldplugin/lib/handle"
	"github.com/snowmerak/ldplugin/lib/status"
)

// OnClaimFile registers handler as the claim-file hook. Claimed handles are
// remembered and returned by Claimed.
func (m *Module) OnClaimFile(handler capability.ClaimFileHandler) error {
	const op = "register_claim_file_hook"
	if m.set.RegisterClaimFile == nil {
		return status.Errorf(op, status.Err, "host does not provide %s", capability.TagRegisterClaimFileHook)
	}
	return status.Check(op, m.set.RegisterClaimFile(func(file handle.InputFile) (bool, status.Status) {
		claimed, st := handler(file)
		if claimed && st == status.OK {
			m.recordClaim(file.Handle)
		}
		return claimed, st
	}))
}

// OnAllSymbolsRead registers handler as the all-symbols-read hook.
func (m *Module) OnAllSymbolsRead(handler capability.AllSymbolsReadHandler) error {
	const op = "register_all_symbols_read_hook"
	if m.set.RegisterAllSymbolsRead == nil {
		return status.Errorf(op, status.Err, "host does not provide %s", capability.TagRegisterAllSymbolsReadHook)
	}
	return status.Check(op, m.set.RegisterAllSymbolsRead(handler))
}

// OnCleanup registers handler as the cleanup hook.
func (m *Module) OnCleanup(handler capability.CleanupHandler) error {
	const op = "register_cleanup_hook"
	if m.set.RegisterCleanup == nil {
		return status.Errorf(op, status.Err, "host does not provide %s", capability.TagRegisterCleanupHook)
	}
	return status.Check(op, m.set.RegisterCleanup(handler))
}
