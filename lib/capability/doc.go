// Package capability implements the transfer vector exchanged when a backend
// is loaded.
//
// A Vector is an ordered list of tagged entries ending at a Null entry. Each
// entry carries one payload variant: an integer, a string, or a callable.
//
//	v := capability.Encode(capability.Set{
//	    APIVersion: capability.APIVersion,
//	    OutputType: capability.OutputExec,
//	    Options:    []string{"-O2"},
//	    AddSymbols: addSymbols,
//	})
//
//	set, err := capability.Decode(v)
//
// # Decode contract
//
// Readers stop at the first Null entry and skip every entry whose tag they
// do not know. That is the only forward-compatibility mechanism: a host built
// against a newer protocol may send tags an older backend has never heard
// of, and the older backend must still load. A vector with no terminator is
// malformed.
//
// Tags introduced after version 1 must not be trusted unless the
// API_VERSION entry says the host speaks that version; see Set.Supports.
//
// # Wire form
//
// Vector.MarshalBinary produces a byte form of the vector built on protobuf
// wire primitives, for logging and for replaying a host's negotiation in
// tests. Callables cannot be serialized: they travel as empty slots and
// decode unbound.
package capability
