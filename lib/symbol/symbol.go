// Package symbol holds the symbol records a backend contributes for its
// claimed files and the resolutions the host assigns to them in the second
// pass.
package symbol

import "fmt"

// Kind says whether a symbol is a definition, a reference, or common, and
// whether it is weak.
type Kind int32

const (
	Def Kind = iota
	WeakDef
	Undef
	WeakUndef
	Common
)

func (k Kind) String() string {
	switch k {
	case Def:
		return "def"
	case WeakDef:
		return "weakdef"
	case Undef:
		return "undef"
	case WeakUndef:
		return "weakundef"
	case Common:
		return "common"
	default:
		return fmt.Sprintf("kind(%d)", int32(k))
	}
}

// Defined reports whether k provides a definition.
func (k Kind) Defined() bool {
	return k == Def || k == WeakDef || k == Common
}

// Weak reports whether k is a weak definition or reference.
func (k Kind) Weak() bool {
	return k == WeakDef || k == WeakUndef
}

// Visibility is the ELF-style visibility of a symbol.
type Visibility int32

const (
	Default Visibility = iota
	Protected
	Internal
	Hidden
)

func (v Visibility) String() string {
	switch v {
	case Default:
		return "default"
	case Protected:
		return "protected"
	case Internal:
		return "internal"
	case Hidden:
		return "hidden"
	default:
		return fmt.Sprintf("visibility(%d)", int32(v))
	}
}

// Resolution is the host's verdict on where a symbol comes from after
// whole-program resolution. It decides whether backend code for the symbol
// is emitted.
type Resolution int32

const (
	// Unknown is the unset value; it never survives the second pass.
	Unknown Resolution = iota
	// Undefined still undefined after resolution.
	Undefined
	// PrevailingDef is the prevailing definition and regular objects refer to it.
	PrevailingDef
	// PrevailingDefIRonly is the prevailing definition, referenced only from IR.
	PrevailingDefIRonly
	// PreemptedReg was pre-empted by a definition in a regular object.
	PreemptedReg
	// PreemptedIR was pre-empted by a definition in another IR file.
	PreemptedIR
	// ResolvedIR resolved to a definition in another IR file.
	ResolvedIR
	// ResolvedExec resolved to a regular object linked into the output.
	ResolvedExec
	// ResolvedDyn resolved to a definition in a shared object.
	ResolvedDyn
)

var resolutionNames = [...]string{
	Unknown:             "unknown",
	Undefined:           "undef",
	PrevailingDef:       "prevailing_def",
	PrevailingDefIRonly: "prevailing_def_ironly",
	PreemptedReg:        "preempted_reg",
	PreemptedIR:         "preempted_ir",
	ResolvedIR:          "resolved_ir",
	ResolvedExec:        "resolved_exec",
	ResolvedDyn:         "resolved_dyn",
}

func (r Resolution) String() string {
	if r >= 0 && int(r) < len(resolutionNames) {
		return resolutionNames[r]
	}
	return fmt.Sprintf("resolution(%d)", int32(r))
}

// Prevailing reports whether the backend must emit code for the symbol.
func (r Resolution) Prevailing() bool {
	return r == PrevailingDef || r == PrevailingDefIRonly
}

// Symbol is one symbol of a claimed file.
type Symbol struct {
	Name       string
	Version    string
	ComdatKey  string
	Size       uint64
	Kind       Kind
	Visibility Visibility
	Resolution Resolution
}

// Defined reports whether the symbol is a definition.
func (s Symbol) Defined() bool {
	return s.Kind.Defined()
}

// Key returns the name used for resolution: name, or name@version.
func (s Symbol) Key() string {
	if s.Version == "" {
		return s.Name
	}
	return s.Name + "@" + s.Version
}
